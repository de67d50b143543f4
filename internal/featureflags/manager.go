// Package featureflags evaluates rollout flags for viewers.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Flags known to the server.
const (
	// LiveFeed gates the websocket feed session.
	LiveFeed = "live_feed"
)

// Manager evaluates feature flags defined in a key=value list such as
// "live_feed=on,other=25%".
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled reports whether name is on for viewer. Values on/true/1 and
// off/false/0 apply to everyone; "N%" rolls out to a stable N percent of
// signed-in viewers and never to anonymous ones.
func (m *Manager) Enabled(name string, viewer uuid.UUID) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if viewer == uuid.Nil {
		return false
	}
	return rolloutBucket(name, viewer) < pct
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one viewer.
func (m *Manager) Snapshot(viewer uuid.UUID) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, viewer)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, viewer uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + viewer.String()))
	return int(h.Sum32() % 100)
}
