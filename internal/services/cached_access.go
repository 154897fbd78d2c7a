package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/cache"
)

// CachedAccessService caches each user's accessible workspace set. Every
// membership change must call InvalidateUser for the affected user after it
// commits.
//
// Entries are keyed by a per-user generation that InvalidateUser replaces, so
// a lookup that read the old membership before the change committed can only
// write to a generation nobody reads any more.
type CachedAccessService struct {
	AccessService
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedAccessService(inner AccessService, c cache.Cache, ttl time.Duration) *CachedAccessService {
	return &CachedAccessService{AccessService: inner, cache: c, ttl: ttl}
}

func generationKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_workspaces_gen:%s", userID)
}

func workspaceSetKey(userID uuid.UUID, generation string) string {
	return fmt.Sprintf("user_workspaces:%s:%s", userID, generation)
}

// generation returns the user's current cache generation. ok is false when
// the cache cannot be trusted for this lookup.
func (s *CachedAccessService) generation(ctx context.Context, userID uuid.UUID) (string, bool) {
	var gen string
	err := s.cache.Get(ctx, generationKey(userID), &gen)
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, cache.ErrCacheMiss):
		return "0", true
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("workspace set cache unavailable")
		return "", false
	}
}

func (s *CachedAccessService) AccessibleWorkspaceIDs(ctx context.Context, id access.Identity) ([]uuid.UUID, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	gen, ok := s.generation(ctx, id.UserID)
	if !ok {
		return s.AccessService.AccessibleWorkspaceIDs(ctx, id)
	}

	key := workspaceSetKey(id.UserID, gen)
	var ids []uuid.UUID
	if err := s.cache.Get(ctx, key, &ids); err == nil {
		return ids, nil
	}

	ids, err := s.AccessService.AccessibleWorkspaceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, ids, s.ttl); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache workspace set")
	}
	return ids, nil
}

func (s *CachedAccessService) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	next, err := uuid.NewV4()
	if err == nil {
		err = s.cache.Set(ctx, generationKey(userID), next.String(), 0)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate workspace set")
		_ = s.cache.DeletePattern(ctx, fmt.Sprintf("user_workspaces:%s:*", userID))
	}
}
