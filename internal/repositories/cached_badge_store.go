package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"petfolio/internal/cache"
	"petfolio/internal/models"
)

// DefaultBadgeCacheTTL bounds how long a per-pet entry is served.
const DefaultBadgeCacheTTL = 10 * time.Minute

// CachedBadgeStore is a read-through cache in front of a BadgeRepository.
// Entries hold every record of one pet; Upsert invalidates the pet's entry.
type CachedBadgeStore struct {
	inner  BadgeRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedBadgeStore wraps inner with c.
func NewCachedBadgeStore(inner BadgeRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedBadgeStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultBadgeCacheTTL
	}
	return &CachedBadgeStore{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func badgeCacheKey(petID uuid.UUID) string {
	return "badges:pet:" + petID.String()
}

// ListForPets serves cached pets from the cache and loads the rest from the
// inner store in one call.
func (s *CachedBadgeStore) ListForPets(ctx context.Context, petIDs []uuid.UUID) ([]models.BadgeRecord, error) {
	var (
		records []models.BadgeRecord
		misses  []uuid.UUID
	)

	for _, id := range petIDs {
		raw, ok := s.cache.Get(ctx, badgeCacheKey(id))
		if !ok {
			misses = append(misses, id)
			continue
		}
		var cached []models.BadgeRecord
		if err := json.Unmarshal(raw, &cached); err != nil {
			s.logger.Warn("Discarding unreadable badge cache entry",
				zap.String("pet_id", id.String()),
				zap.Error(err),
			)
			misses = append(misses, id)
			continue
		}
		records = append(records, cached...)
	}

	if len(misses) == 0 {
		return records, nil
	}

	loaded, err := s.inner.ListForPets(ctx, misses)
	if err != nil {
		return nil, err
	}
	records = append(records, loaded...)

	byPet := make(map[uuid.UUID][]models.BadgeRecord, len(misses))
	for _, id := range misses {
		byPet[id] = []models.BadgeRecord{}
	}
	for _, rec := range loaded {
		byPet[rec.PetID] = append(byPet[rec.PetID], rec)
	}
	for id, recs := range byPet {
		s.store(ctx, id, recs)
	}

	return records, nil
}

// Upsert writes through to the inner store, then drops the pet's entry.
func (s *CachedBadgeStore) Upsert(ctx context.Context, record models.BadgeRecord) error {
	if err := s.inner.Upsert(ctx, record); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, badgeCacheKey(record.PetID)); err != nil {
		s.logger.Warn("Failed to invalidate badge cache entry",
			zap.String("pet_id", record.PetID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *CachedBadgeStore) store(ctx context.Context, petID uuid.UUID, recs []models.BadgeRecord) {
	raw, err := json.Marshal(recs)
	if err != nil {
		s.logger.Warn("Failed to encode badge cache entry", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, badgeCacheKey(petID), raw, s.ttl); err != nil {
		s.logger.Warn("Failed to cache badges",
			zap.String("pet_id", petID.String()),
			zap.Error(err),
		)
	}
}
