// Package service contains the business logic of the community feed.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"quadra/internal/cache"
	"quadra/internal/models"
	"quadra/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthorLookup resolves author snapshots for profile ids.
type AuthorLookup interface {
	Author(ctx context.Context, id uuid.UUID) (models.Author, error)
	Authors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Author, error)
}

type ProfileService struct {
	profileRepo repository.ProfileRepository
	ttl         time.Duration
}

type UpdateProfileInput struct {
	Name      string   `json:"name"`
	Username  string   `json:"username"`
	Bio       string   `json:"bio"`
	Gender    string   `json:"gender"`
	Positions []string `json:"positions"`
	AvatarURL *string  `json:"avatar_url"`
}

func NewProfileService(profileRepo repository.ProfileRepository, ttl time.Duration) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, ttl: ttl}
}

func (s *ProfileService) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := cache.Aside(ctx, cache.ProfileKey(id.String()), &profile, s.ttl, func() error {
		p, err := s.profileRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		profile = *p
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", id)
		}
		return nil, models.NewRemoteFetchError("Não foi possível carregar o perfil", err)
	}
	return &profile, nil
}

// Author returns the snapshot for one profile.
func (s *ProfileService) Author(ctx context.Context, id uuid.UUID) (models.Author, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return models.UnknownAuthor(id), err
	}
	return p.Snapshot(), nil
}

// Authors resolves many profiles with one cache round trip and one query for
// the misses. Ids with no profile are absent from the result.
func (s *ProfileService) Authors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Author, error) {
	unique := dedupe(ids)
	out := make(map[uuid.UUID]models.Author, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	keys := make([]string, len(unique))
	for i, id := range unique {
		keys[i] = cache.ProfileKey(id.String())
	}

	var misses []uuid.UUID
	for i, raw := range cache.GetMulti(ctx, keys) {
		var p models.Profile
		if raw != nil && json.Unmarshal(raw, &p) == nil {
			out[unique[i]] = p.Snapshot()
			continue
		}
		misses = append(misses, unique[i])
	}
	if len(misses) == 0 {
		return out, nil
	}

	profiles, err := s.profileRepo.GetByIDs(ctx, misses)
	if err != nil {
		return out, err
	}
	for _, p := range profiles {
		out[p.ID] = p.Snapshot()
		cache.SetJSON(ctx, cache.ProfileKey(p.ID.String()), p, s.ttl)
	}
	return out, nil
}

// UpdateProfile writes the viewer's own profile and drops its cached copy.
// Feed items already assembled keep their old author snapshot.
func (s *ProfileService) UpdateProfile(ctx context.Context, viewerID uuid.UUID, in UpdateProfileInput) (*models.Profile, error) {
	if viewerID == uuid.Nil {
		return nil, models.NewUnauthorizedError("Login necessário")
	}
	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)
	if name == "" {
		return nil, models.NewValidationError("O nome é obrigatório")
	}
	if username == "" {
		return nil, models.NewValidationError("O nome de usuário é obrigatório")
	}

	var avatar *string
	if in.AvatarURL != nil {
		if a := strings.TrimSpace(*in.AvatarURL); a != "" {
			if !isWebURL(a) {
				return nil, models.NewValidationError(invalidURLMessage)
			}
			avatar = &a
		}
	}

	gender := strings.TrimSpace(in.Gender)
	if gender != "" && !models.ValidGender(gender) {
		return nil, models.NewValidationError("Gênero inválido")
	}

	positions := make([]string, 0, len(in.Positions))
	for _, p := range in.Positions {
		p = strings.TrimSpace(p)
		if p == "" || slices.Contains(positions, p) {
			continue
		}
		if !models.ValidPosition(p) {
			return nil, models.NewValidationError("Posição desconhecida: " + p)
		}
		positions = append(positions, p)
	}

	profile := &models.Profile{
		ID:        viewerID,
		Name:      name,
		Username:  username,
		Bio:       strings.TrimSpace(in.Bio),
		Gender:    gender,
		Positions: positions,
		AvatarURL: avatar,
	}
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, models.NewRemoteMutationError("Erro ao salvar perfil. Tente novamente.", err)
	}
	cache.InvalidateProfile(ctx, viewerID.String())
	return profile, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
