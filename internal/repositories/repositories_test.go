package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"petfolio/internal/cache"
	"petfolio/internal/config"
	"petfolio/internal/database"
	"petfolio/internal/models"
)

func openTestDB(t *testing.T) *database.Manager {
	t.Helper()
	manager, err := database.Open(context.Background(), &config.DatabaseConfig{
		Driver:             database.DriverSQLite,
		URL:                ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		ConnMaxLifetime:    time.Minute,
		ConnectTimeout:     time.Second,
		MaxRetryAttempts:   1,
		RetryBackoff:       10 * time.Millisecond,
		SlowQueryThreshold: time.Second,
		AutoMigrate:        true,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func newID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func badge(petID uuid.UUID, typ models.BadgeType, tier models.BadgeTier, created, updated time.Time) models.BadgeRecord {
	return models.BadgeRecord{PetID: petID, Type: typ, Tier: tier, CreatedAt: created, LastUpdated: updated}
}

func TestBadgeRepositoryUpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())

	petA, petB, petC := newID(t), newID(t), newID(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, badge(petA, models.BadgeTypeLogActivity, models.TierFirst, created, created)))
	require.NoError(t, repo.Upsert(ctx, badge(petA, models.BadgeTypeDaysInApp, models.TierFirst, created, created)))
	require.NoError(t, repo.Upsert(ctx, badge(petB, models.BadgeTypeUploadPhoto, models.TierFirst, created, created)))

	records, err := repo.ListForPets(ctx, []uuid.UUID{petA, petC})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, petA, rec.PetID)
		assert.Equal(t, models.TierFirst, rec.Tier)
		assert.WithinDuration(t, created, rec.CreatedAt, time.Second)
	}

	records, err = repo.ListForPets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBadgeRepositoryUpsertAdvancesAndPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())

	pet := newID(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(48 * time.Hour)

	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeMakePost, models.TierFirst, created, created)))
	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeMakePost, models.TierTenth, later, later)))

	records, err := repo.ListForPets(ctx, []uuid.UUID{pet})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TierTenth, records[0].Tier)
	assert.WithinDuration(t, created, records[0].CreatedAt, time.Second)
	assert.WithinDuration(t, later, records[0].LastUpdated, time.Second)
}

func TestBadgeRepositoryNeverLowersTier(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())

	pet := newID(t)
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeLogActivity, models.TierFiftieth, now, now)))
	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeLogActivity, models.TierTenth, now, now.Add(time.Hour))))

	records, err := repo.ListForPets(ctx, []uuid.UUID{pet})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TierFiftieth, records[0].Tier)
}

func TestBadgeRepositorySameTierKeepsProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())

	pet := newID(t)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	again := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeDaysInApp, models.TierFirst, first, first)))
	require.NoError(t, repo.Upsert(ctx, badge(pet, models.BadgeTypeDaysInApp, models.TierFirst, again, again)))

	records, err := repo.ListForPets(ctx, []uuid.UUID{pet})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TierFirst, records[0].Tier)
	assert.WithinDuration(t, first, records[0].LastUpdated, time.Second)
	assert.WithinDuration(t, first, records[0].CreatedAt, time.Second)
}

func TestBadgeRepositoryRejectsInvalidRecords(t *testing.T) {
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())
	now := time.Now()

	err := repo.Upsert(context.Background(), badge(newID(t), models.BadgeTypeUploadPhoto, models.TierTenth, now, now))
	assert.ErrorIs(t, err, models.ErrInvalidBadgeTier)

	err = repo.Upsert(context.Background(), badge(uuid.Nil, models.BadgeTypeUploadPhoto, models.TierFirst, now, now))
	assert.Error(t, err)
}

func TestBadgeRepositoryListsAcrossBatches(t *testing.T) {
	ctx := context.Background()
	repo := NewBadgeRepository(openTestDB(t), zap.NewNop())
	now := time.Now().UTC()

	ids := make([]uuid.UUID, maxInListSize+3)
	for i := range ids {
		ids[i] = newID(t)
	}
	for _, id := range []uuid.UUID{ids[0], ids[maxInListSize+2]} {
		require.NoError(t, repo.Upsert(ctx, badge(id, models.BadgeTypeDaysInApp, models.TierFirst, now, now)))
	}

	records, err := repo.ListForPets(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	activities := NewActivityLogRepository(db, nil)
	posts := NewPostRepository(db, nil)

	pet, other := newID(t), newID(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, activities.Create(ctx, &models.ActivityLog{PetID: pet, ActivityType: "walk"}))
	}
	require.NoError(t, activities.Create(ctx, &models.ActivityLog{PetID: other, ActivityType: "meal"}))
	require.NoError(t, posts.Create(ctx, &models.Post{PetID: pet, Caption: "hello", IsPublic: true}))

	n, err := activities.CountByPet(ctx, pet)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = posts.CountByPet(ctx, pet)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = posts.CountByPet(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Error(t, activities.Create(ctx, &models.ActivityLog{}))
	assert.Error(t, posts.Create(ctx, &models.Post{}))
}

func TestPetRepository(t *testing.T) {
	ctx := context.Background()
	pets := NewPetRepository(openTestDB(t), zap.NewNop())

	owner, handler := newID(t), newID(t)
	first := &models.Pet{Name: "Rex", CreatorID: owner, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	second := &models.Pet{Name: "Fido", CreatorID: owner}
	require.NoError(t, pets.Create(ctx, first))
	require.NoError(t, pets.Create(ctx, second))
	require.NoError(t, pets.AddRelation(ctx, models.UserPetRelation{UserID: handler, PetID: second.ID, Relation: "handler"}))
	require.NoError(t, pets.AddRelation(ctx, models.UserPetRelation{UserID: handler, PetID: second.ID}))

	ids, err := pets.PetIDsForUser(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids)

	ids, err = pets.PetIDsForUser(ctx, handler)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID}, ids)

	ids, err = pets.PetIDsForUser(ctx, newID(t))
	require.NoError(t, err)
	assert.Empty(t, ids)

	got, err := pets.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rex", got.Name)

	_, err = pets.GetByID(ctx, newID(t))
	assert.ErrorIs(t, err, ErrPetNotFound)
}

// countingBadges counts calls that reach the wrapped repository.
type countingBadges struct {
	BadgeRepository
	lists int
}

func (c *countingBadges) ListForPets(ctx context.Context, petIDs []uuid.UUID) ([]models.BadgeRecord, error) {
	c.lists++
	return c.BadgeRepository.ListForPets(ctx, petIDs)
}

func TestCachedBadgeStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingBadges{BadgeRepository: NewBadgeRepository(openTestDB(t), nil)}
	mem := cache.NewMemoryCache(nil, nil)
	t.Cleanup(func() { _ = mem.Close() })
	store := NewCachedBadgeStore(inner, mem, time.Minute, nil)

	pet, empty := newID(t), newID(t)
	now := time.Now().UTC()
	require.NoError(t, store.Upsert(ctx, badge(pet, models.BadgeTypeMakePost, models.TierFirst, now, now)))

	records, err := store.ListForPets(ctx, []uuid.UUID{pet, empty})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, inner.lists)

	records, err = store.ListForPets(ctx, []uuid.UUID{pet, empty})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, inner.lists, "both pets served from cache")

	require.NoError(t, store.Upsert(ctx, badge(pet, models.BadgeTypeMakePost, models.TierTenth, now, now)))

	records, err = store.ListForPets(ctx, []uuid.UUID{pet})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TierTenth, records[0].Tier)
	assert.Equal(t, 2, inner.lists)
}

func TestCachedBadgeStoreIgnoresCorruptEntries(t *testing.T) {
	ctx := context.Background()
	inner := &countingBadges{BadgeRepository: NewBadgeRepository(openTestDB(t), nil)}
	mem := cache.NewMemoryCache(nil, nil)
	t.Cleanup(func() { _ = mem.Close() })
	store := NewCachedBadgeStore(inner, mem, 0, nil)

	pet := newID(t)
	require.NoError(t, mem.Set(ctx, badgeCacheKey(pet), []byte("not json"), time.Minute))

	records, err := store.ListForPets(ctx, []uuid.UUID{pet})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, inner.lists)
}

func TestCollection(t *testing.T) {
	db := openTestDB(t)

	_, err := NewCollection(nil, nil, nil)
	assert.Error(t, err)

	plain, err := NewCollection(db, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, plain.Badges)
	assert.True(t, plain.Healthy(context.Background()))

	mem := cache.NewMemoryCache(nil, nil)
	cached, err := NewCollection(db, nil, &RepositoryConfig{Cache: mem})
	require.NoError(t, err)
	assert.IsType(t, &CachedBadgeStore{}, cached.Badges)

	health := cached.HealthCheck(context.Background())
	assert.Contains(t, health, "database")
	assert.Contains(t, health, "cache")

	require.NoError(t, cached.Close())
	assert.False(t, cached.Healthy(context.Background()))
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3}}, chunk([]int{1, 2, 3}, 2))
	assert.Equal(t, "?, ?, ?", inPlaceholders(3))
	assert.Empty(t, inPlaceholders(0))
}
