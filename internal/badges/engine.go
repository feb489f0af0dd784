package badges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"petfolio/internal/events"
	"petfolio/internal/models"
)

var (
	// ErrEngineNotStarted is returned by operations issued before Start.
	ErrEngineNotStarted = errors.New("badge engine is not started")
	// ErrEngineStarted is returned by a second call to Start.
	ErrEngineStarted = errors.New("badge engine is already started")
	// ErrEngineStopped is returned by operations issued after Stop.
	ErrEngineStopped = errors.New("badge engine is stopped")
)

// Read failure sources reported to the Recorder.
const (
	SourceBadges       = "badges"
	SourceActivityLogs = "activity_logs"
	SourcePosts        = "posts"
	SourcePets         = "pets"
)

// ===============================
// COLLABORATORS
// ===============================

// BadgeStore is the persistent home of badge records.
type BadgeStore interface {
	ListForPets(ctx context.Context, petIDs []uuid.UUID) ([]models.BadgeRecord, error)
	// Upsert is keyed by (pet, type) and replaces tier and last_updated.
	Upsert(ctx context.Context, record models.BadgeRecord) error
}

// ActivityCounter counts logged activities for a pet.
type ActivityCounter interface {
	CountByPet(ctx context.Context, petID uuid.UUID) (int, error)
}

// PostCounter counts posts made for a pet.
type PostCounter interface {
	CountByPet(ctx context.Context, petID uuid.UUID) (int, error)
}

// PetSource resolves the pets a user owns or handles.
type PetSource interface {
	PetIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Publisher broadcasts domain events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Listener attaches a live subscription to domain events.
type Listener interface {
	Listen(bufferSize int, eventTypes ...string) *events.Subscription
}

// Recorder receives engine measurements.
type Recorder interface {
	Evaluation(badgeType models.BadgeType)
	TierChanged(badgeType models.BadgeType, tier models.BadgeTier)
	PersistFailure(badgeType models.BadgeType)
	ReadFailure(source string)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type nopRecorder struct{}

func (nopRecorder) Evaluation(models.BadgeType)                    {}
func (nopRecorder) TierChanged(models.BadgeType, models.BadgeTier) {}
func (nopRecorder) PersistFailure(models.BadgeType)                {}
func (nopRecorder) ReadFailure(string)                             {}

// Dependencies wires an Engine to the rest of the application. Store,
// Activities, Posts and Publisher are required.
type Dependencies struct {
	Store      BadgeStore
	Activities ActivityCounter
	Posts      PostCounter
	Pets       PetSource
	Publisher  Publisher
	// Listener is optional; without it the engine only reacts to direct calls.
	Listener Listener
	Clock    Clock
	Recorder Recorder
}

// ===============================
// CONFIGURATION
// ===============================

// Config holds engine tuning
type Config struct {
	Shards            int           `json:"shards" yaml:"shards"`
	QueueSize         int           `json:"queue_size" yaml:"queue_size"`
	ListenerBuffer    int           `json:"listener_buffer" yaml:"listener_buffer"`
	PublishTimeout    time.Duration `json:"publish_timeout" yaml:"publish_timeout"`
	OperationTimeout  time.Duration `json:"operation_timeout" yaml:"operation_timeout"`
	DaysCheckInterval time.Duration `json:"days_check_interval" yaml:"days_check_interval"`
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		Shards:            8,
		QueueSize:         256,
		ListenerBuffer:    256,
		PublishTimeout:    5 * time.Second,
		OperationTimeout:  10 * time.Second,
		DaysCheckInterval: 0,
	}
}

// ===============================
// ENGINE
// ===============================

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

// Engine evaluates badge rules for pets. Each pet is owned by one shard; all
// reads and writes of its cached badges happen on that shard's goroutine, so
// work for one pet is serialized and runs in submission order while
// different pets progress in parallel.
type Engine struct {
	store      BadgeStore
	activities ActivityCounter
	posts      PostCounter
	pets       PetSource
	publisher  Publisher
	listener   Listener
	clock      Clock
	recorder   Recorder
	config     *Config
	logger     *zap.Logger

	shards []*shard

	// mu guards state and is held shared while a job is queued, so Stop can
	// close the queues once it holds it exclusively.
	mu      sync.RWMutex
	state   engineState
	sub     *events.Subscription
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	workers sync.WaitGroup
}

type shard struct {
	id      int
	jobs    chan *job
	entries map[uuid.UUID]*entry
}

// entry is the cached view of one pet's badges.
type entry struct {
	records map[models.BadgeType]models.BadgeRecord
	loaded  bool
	// tracked pets were started or received an event. Only they are
	// kept between jobs and visited by Tick.
	tracked bool
}

type job struct {
	run  func(ctx context.Context, s *shard)
	done chan struct{}
}

// NewEngine creates a badge engine. It does nothing until Start.
func NewEngine(deps Dependencies, config *Config, logger *zap.Logger) (*Engine, error) {
	if deps.Store == nil || deps.Activities == nil || deps.Posts == nil || deps.Publisher == nil {
		return nil, fmt.Errorf("badge engine: store, activity counter, post counter and publisher are required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Shards <= 0 {
		config.Shards = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = DefaultConfig().OperationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}

	e := &Engine{
		store:      deps.Store,
		activities: deps.Activities,
		posts:      deps.Posts,
		pets:       deps.Pets,
		publisher:  deps.Publisher,
		listener:   deps.Listener,
		clock:      deps.Clock,
		recorder:   deps.Recorder,
		config:     config,
		logger:     logger.Named("badges"),
		shards:     make([]*shard, config.Shards),
	}
	for i := range e.shards {
		e.shards[i] = &shard{
			id:      i,
			jobs:    make(chan *job, config.QueueSize),
			entries: make(map[uuid.UUID]*entry),
		}
	}

	return e, nil
}

// Start loads the badges of petIDs, evaluates the days_in_app rule for each of
// them and begins reacting to live events. It returns once every startup
// evaluation has finished; for any pet, those evaluations run before work
// caused by a live event. Events published while the badges load are
// buffered and handled afterwards.
func (e *Engine) Start(ctx context.Context, petIDs []uuid.UUID) error {
	ids := uniquePetIDs(petIDs)

	// Startup jobs are placed on the fresh queues before anything else can
	// be, and hold their shard until the bulk load is done.
	ready := make(chan struct{})
	var (
		preloaded map[uuid.UUID][]models.BadgeRecord
		loadErr   error
	)

	e.mu.Lock()
	switch e.state {
	case stateRunning:
		e.mu.Unlock()
		return ErrEngineStarted
	case stateStopped:
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.state = stateRunning

	startup := make([]*job, 0, len(e.shards))
	for s, group := range e.groupByShard(ids) {
		group := group
		j := &job{done: make(chan struct{}), run: func(ctx context.Context, s *shard) {
			<-ready
			for _, petID := range group {
				ent := s.entry(petID)
				ent.tracked = true
				if loadErr == nil && !ent.loaded {
					ent.set(preloaded[petID])
				}
				e.withPet(ctx, s, petID, e.evaluateDaysInApp)
			}
		}}
		s.jobs <- j
		startup = append(startup, j)
	}
	for _, s := range e.shards {
		e.workers.Add(1)
		go e.runShard(s)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	if e.listener != nil {
		e.sub = e.listener.Listen(e.config.ListenerBuffer,
			events.TypePhotoUploaded,
			events.TypeActivityLogged,
			events.TypePostCreated,
		)
		e.loops.Add(1)
		go e.dispatch(e.sub)
	}
	if e.config.DaysCheckInterval > 0 {
		e.loops.Add(1)
		go e.tickLoop(runCtx, e.config.DaysCheckInterval)
	}
	e.mu.Unlock()

	e.logger.Info("Starting badge engine",
		zap.Int("pets", len(ids)),
		zap.Int("shards", len(e.shards)),
	)

	preloaded, loadErr = e.bulkLoad(ctx, ids)
	close(ready)

	for _, j := range startup {
		if err := await(ctx, j); err != nil {
			return err
		}
	}

	e.logger.Info("Badge engine started", zap.Int("pets", len(ids)))
	return nil
}

// StartForUser starts the engine for every pet related to userID. A failed
// lookup starts the engine with no pets.
func (e *Engine) StartForUser(ctx context.Context, userID uuid.UUID) error {
	var petIDs []uuid.UUID
	if e.pets == nil {
		e.logger.Warn("No pet source configured", zap.String("user_id", userID.String()))
	} else {
		ids, err := e.pets.PetIDsForUser(ctx, userID)
		if err != nil {
			e.logger.Error("Failed to load pets for user",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			e.recorder.ReadFailure(SourcePets)
		} else {
			petIDs = ids
		}
	}
	return e.Start(ctx, petIDs)
}

// OnPhotoUploaded creates the upload_photo badge if the pet has none.
func (e *Engine) OnPhotoUploaded(ctx context.Context, petID uuid.UUID) error {
	return e.runForPet(ctx, petID, e.evaluatePhoto)
}

// OnActivityLogged re-evaluates the log_activity badge.
func (e *Engine) OnActivityLogged(ctx context.Context, petID uuid.UUID) error {
	return e.runForPet(ctx, petID, e.evaluateActivities)
}

// OnPostCreated re-evaluates the make_post badge.
func (e *Engine) OnPostCreated(ctx context.Context, petID uuid.UUID) error {
	return e.runForPet(ctx, petID, e.evaluatePosts)
}

// CheckDaysInApp re-evaluates the days_in_app badge.
func (e *Engine) CheckDaysInApp(ctx context.Context, petID uuid.UUID) error {
	return e.runForPet(ctx, petID, e.evaluateDaysInApp)
}

// HandleEvent routes a domain event to its rule and waits for it. Events
// that no rule consumes are ignored.
func (e *Engine) HandleEvent(ctx context.Context, event events.Event) error {
	j, err := e.submit(event)
	if err != nil || j == nil {
		return err
	}
	return await(ctx, j)
}

// Badges returns the badges of a pet ordered by badge type. Reading a pet
// the engine does not track leaves nothing cached behind.
func (e *Engine) Badges(ctx context.Context, petID uuid.UUID) ([]models.BadgeRecord, error) {
	var out []models.BadgeRecord
	j, err := e.enqueue(e.shardFor(petID), func(ctx context.Context, s *shard) {
		e.withPet(ctx, s, petID, func(_ context.Context, _ uuid.UUID, ent *entry) {
			out = make([]models.BadgeRecord, 0, len(ent.records))
			for _, rec := range ent.records {
				out = append(out, rec)
			}
		})
		s.release(petID)
	})
	if err != nil {
		return nil, err
	}
	if err := await(ctx, j); err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b models.BadgeRecord) int {
		return slices.Index(models.BadgeTypes, a.Type) - slices.Index(models.BadgeTypes, b.Type)
	})
	return out, nil
}

// Tick runs the days_in_app rule for every tracked pet.
func (e *Engine) Tick(ctx context.Context) error {
	jobs := make([]*job, 0, len(e.shards))
	for _, s := range e.shards {
		j, err := e.enqueue(s, func(ctx context.Context, s *shard) {
			for petID, ent := range s.entries {
				if !ent.tracked {
					continue
				}
				e.withPet(ctx, s, petID, e.evaluateDaysInApp)
			}
		})
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
	}

	for _, j := range jobs {
		if err := await(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// Stop detaches from the event bus and drains queued work.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != stateRunning {
		e.state = stateStopped
		e.mu.Unlock()
		return nil
	}
	e.state = stateStopped
	sub, cancel := e.sub, e.cancel
	e.mu.Unlock()

	e.logger.Info("Stopping badge engine")

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}

	done := make(chan struct{})
	go func() {
		e.loops.Wait()
		for _, s := range e.shards {
			close(s.jobs)
		}
		e.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Badge engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("badge engine stop: %w", ctx.Err())
	}
}

// ===============================
// SCHEDULING
// ===============================

func (e *Engine) shardFor(petID uuid.UUID) *shard {
	return e.shards[xxhash.Sum64(petID.Bytes())%uint64(len(e.shards))]
}

func (e *Engine) groupByShard(petIDs []uuid.UUID) map[*shard][]uuid.UUID {
	groups := make(map[*shard][]uuid.UUID)
	for _, petID := range petIDs {
		s := e.shardFor(petID)
		groups[s] = append(groups[s], petID)
	}
	return groups
}

func (e *Engine) enqueue(s *shard, run func(ctx context.Context, s *shard)) (*job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch e.state {
	case stateIdle:
		return nil, ErrEngineNotStarted
	case stateStopped:
		return nil, ErrEngineStopped
	}

	j := &job{run: run, done: make(chan struct{})}
	s.jobs <- j
	return j, nil
}

func (e *Engine) runForPet(ctx context.Context, petID uuid.UUID, fn func(ctx context.Context, petID uuid.UUID, ent *entry)) error {
	j, err := e.enqueue(e.shardFor(petID), func(ctx context.Context, s *shard) {
		s.entry(petID).tracked = true
		e.withPet(ctx, s, petID, fn)
	})
	if err != nil {
		return err
	}
	return await(ctx, j)
}

// submit queues the rule for event without waiting. It returns a nil job for
// events no rule consumes.
func (e *Engine) submit(event events.Event) (*job, error) {
	var fn func(ctx context.Context, petID uuid.UUID, ent *entry)
	switch event.(type) {
	case *events.PhotoUploadedEvent:
		fn = e.evaluatePhoto
	case *events.ActivityLoggedEvent:
		fn = e.evaluateActivities
	case *events.PostCreatedEvent:
		fn = e.evaluatePosts
	default:
		return nil, nil
	}

	petID := event.GetPetID()
	if petID == uuid.Nil {
		e.logger.Warn("Ignoring event without pet",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
		)
		return nil, nil
	}

	return e.enqueue(e.shardFor(petID), func(ctx context.Context, s *shard) {
		s.entry(petID).tracked = true
		e.withPet(ctx, s, petID, fn)
	})
}

func await(ctx context.Context, j *job) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) runShard(s *shard) {
	defer e.workers.Done()
	for j := range s.jobs {
		e.runJob(s, j)
	}
}

func (e *Engine) runJob(s *shard, j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Badge job panicked",
				zap.Int("shard", s.id),
				zap.Any("panic", r),
			)
		}
	}()
	j.run(context.Background(), s)
}

// withPet runs fn against the loaded entry of petID. It must only be called
// from the shard that owns petID.
func (e *Engine) withPet(ctx context.Context, s *shard, petID uuid.UUID, fn func(ctx context.Context, petID uuid.UUID, ent *entry)) {
	ctx, cancel := context.WithTimeout(ctx, e.config.OperationTimeout)
	defer cancel()

	ent := s.entry(petID)
	if !ent.loaded {
		records, err := e.store.ListForPets(ctx, []uuid.UUID{petID})
		if err != nil {
			e.logger.Warn("Failed to load badges, evaluating with cached view",
				zap.String("pet_id", petID.String()),
				zap.Error(err),
			)
			e.recorder.ReadFailure(SourceBadges)
		} else {
			ent.set(records)
		}
	}

	fn(ctx, petID, ent)
}

func (e *Engine) dispatch(sub *events.Subscription) {
	defer e.loops.Done()
	for event := range sub.Events() {
		if _, err := e.submit(event); err != nil {
			if errors.Is(err, ErrEngineStopped) {
				continue
			}
			e.logger.Error("Failed to queue event",
				zap.String("event_id", event.GetEventID()),
				zap.String("event_type", event.GetEventType()),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) tickLoop(ctx context.Context, interval time.Duration) {
	defer e.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil && !errors.Is(err, ErrEngineStopped) && !errors.Is(err, context.Canceled) {
				e.logger.Error("Days in app check failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) bulkLoad(ctx context.Context, petIDs []uuid.UUID) (map[uuid.UUID][]models.BadgeRecord, error) {
	out := make(map[uuid.UUID][]models.BadgeRecord, len(petIDs))
	if len(petIDs) == 0 {
		return out, nil
	}

	records, err := e.store.ListForPets(ctx, petIDs)
	if err != nil {
		e.logger.Error("Failed to load badges at startup", zap.Error(err))
		e.recorder.ReadFailure(SourceBadges)
		return out, err
	}
	for _, rec := range records {
		out[rec.PetID] = append(out[rec.PetID], rec)
	}
	return out, nil
}

// ===============================
// RULES
// ===============================

func (e *Engine) evaluatePhoto(ctx context.Context, petID uuid.UUID, ent *entry) {
	e.recorder.Evaluation(models.BadgeTypeUploadPhoto)
	if _, ok := ent.records[models.BadgeTypeUploadPhoto]; ok {
		return
	}
	e.advance(ctx, petID, ent, models.BadgeTypeUploadPhoto, models.TierFirst)
}

func (e *Engine) evaluateActivities(ctx context.Context, petID uuid.UUID, ent *entry) {
	e.evaluateCounter(ctx, petID, ent, models.BadgeTypeLogActivity, SourceActivityLogs, e.activities.CountByPet)
}

func (e *Engine) evaluatePosts(ctx context.Context, petID uuid.UUID, ent *entry) {
	e.evaluateCounter(ctx, petID, ent, models.BadgeTypeMakePost, SourcePosts, e.posts.CountByPet)
}

func (e *Engine) evaluateCounter(
	ctx context.Context,
	petID uuid.UUID,
	ent *entry,
	badgeType models.BadgeType,
	source string,
	count func(ctx context.Context, petID uuid.UUID) (int, error),
) {
	e.recorder.Evaluation(badgeType)

	n, err := count(ctx, petID)
	if err != nil {
		e.logger.Warn("Failed to count, evaluating with zero",
			zap.String("pet_id", petID.String()),
			zap.String("source", source),
			zap.Error(err),
		)
		e.recorder.ReadFailure(source)
		n = 0
	}

	tier, ok := NextCounterTier(ent.records[badgeType].Tier, n)
	if !ok {
		return
	}
	e.advance(ctx, petID, ent, badgeType, tier)
}

func (e *Engine) evaluateDaysInApp(ctx context.Context, petID uuid.UUID, ent *entry) {
	e.recorder.Evaluation(models.BadgeTypeDaysInApp)

	current, exists := ent.records[models.BadgeTypeDaysInApp]
	elapsed := 0
	if exists {
		elapsed = ElapsedWholeDays(current.LastUpdated, e.clock.Now())
	}

	tier, ok := NextTimeTier(current.Tier, elapsed)
	if !ok {
		return
	}
	e.advance(ctx, petID, ent, models.BadgeTypeDaysInApp, tier)
}

// advance persists the new tier and only then updates the cache and
// announces it.
func (e *Engine) advance(ctx context.Context, petID uuid.UUID, ent *entry, badgeType models.BadgeType, tier models.BadgeTier) {
	now := e.clock.Now().UTC()
	record := models.BadgeRecord{
		PetID:       petID,
		Type:        badgeType,
		Tier:        tier,
		LastUpdated: now,
		CreatedAt:   now,
	}
	if prev, ok := ent.records[badgeType]; ok && !prev.CreatedAt.IsZero() {
		record.CreatedAt = prev.CreatedAt
		if record.LastUpdated.Before(record.CreatedAt) {
			record.LastUpdated = record.CreatedAt
		}
	}

	if err := e.store.Upsert(ctx, record); err != nil {
		e.logger.Error("Failed to persist badge",
			zap.String("pet_id", petID.String()),
			zap.String("badge_type", string(badgeType)),
			zap.String("tier", string(tier)),
			zap.Error(err),
		)
		e.recorder.PersistFailure(badgeType)
		return
	}

	ent.records[badgeType] = record
	e.recorder.TierChanged(badgeType, tier)
	e.logger.Info("Badge earned",
		zap.String("pet_id", petID.String()),
		zap.String("badge_type", string(badgeType)),
		zap.String("tier", string(tier)),
	)

	pubCtx, cancel := context.WithTimeout(context.Background(), e.config.PublishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, events.NewBadgeEarnedEvent(petID, badgeType, tier)); err != nil {
		e.logger.Warn("Failed to publish badge earned event",
			zap.String("pet_id", petID.String()),
			zap.String("badge_type", string(badgeType)),
			zap.Error(err),
		)
	}
}

// ===============================
// CACHE ENTRIES
// ===============================

func (s *shard) entry(petID uuid.UUID) *entry {
	ent, ok := s.entries[petID]
	if !ok {
		ent = &entry{records: make(map[models.BadgeType]models.BadgeRecord)}
		s.entries[petID] = ent
	}
	return ent
}

// release drops the entry of petID unless the pet is tracked.
func (s *shard) release(petID uuid.UUID) {
	if ent, ok := s.entries[petID]; ok && !ent.tracked {
		delete(s.entries, petID)
	}
}

// set replaces the cached records, keeping the highest tier per type.
func (ent *entry) set(records []models.BadgeRecord) {
	ent.records = make(map[models.BadgeType]models.BadgeRecord, len(records))
	for _, rec := range records {
		if prev, ok := ent.records[rec.Type]; ok && prev.Rank() >= rec.Rank() {
			continue
		}
		ent.records[rec.Type] = rec
	}
	ent.loaded = true
}

func uniquePetIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
