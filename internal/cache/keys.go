package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ProfileKeyPrefix = "profile:%s"
)

const (
	ProfileTTL = 2 * time.Minute
)

func ProfileKey(profileID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, profileID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateProfile(ctx context.Context, profileID string) {
	Invalidate(ctx, ProfileKey(profileID))
}
