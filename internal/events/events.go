package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop.
var ErrBusStopped = errors.New("event bus is stopped")

// ===============================
// EVENT BUS INTERFACE
// ===============================

// EventBus defines the event publishing and subscription interface
type EventBus interface {
	// Publishing
	Publish(ctx context.Context, event Event) error

	// Handler subscription
	Subscribe(eventType string, handler EventHandler) error
	SubscribePattern(pattern string, handler EventHandler) error
	Unsubscribe(eventType string, handler EventHandler) error

	// Live listeners
	Listen(bufferSize int, eventTypes ...string) *Subscription

	// Management
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health() error
	Stats() *EventBusStats
}

// EventHandler represents an event handler function
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	GetHandlerID() string
}

// EventHandlerFunc is a function type that implements EventHandler
type EventHandlerFunc struct {
	ID   string
	Func func(ctx context.Context, event Event) error
}

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Func(ctx, event)
}

// GetHandlerID implements EventHandler
func (f EventHandlerFunc) GetHandlerID() string {
	return f.ID
}

// NewEventHandlerFunc creates an EventHandler from a function
func NewEventHandlerFunc(id string, fn func(ctx context.Context, event Event) error) EventHandler {
	return EventHandlerFunc{ID: id, Func: fn}
}

// TypedEventHandler is a generic handler for specific event types
type TypedEventHandler[T Event] struct {
	ID      string
	Handler func(ctx context.Context, event T) error
}

// Handle implements EventHandler
func (h TypedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	if typedEvent, ok := event.(T); ok {
		return h.Handler(ctx, typedEvent)
	}
	return fmt.Errorf("event type mismatch: expected %T, got %T", *new(T), event)
}

// GetHandlerID implements EventHandler
func (h TypedEventHandler[T]) GetHandlerID() string {
	return h.ID
}

// NewTypedEventHandler creates a typed event handler
func NewTypedEventHandler[T Event](id string, handler func(ctx context.Context, event T) error) EventHandler {
	return TypedEventHandler[T]{ID: id, Handler: handler}
}

// EventBusStats represents event bus statistics
type EventBusStats struct {
	EventsPublished int64         `json:"events_published"`
	EventsDelivered int64         `json:"events_delivered"`
	EventsDropped   int64         `json:"events_dropped"`
	EventsFailed    int64         `json:"events_failed"`
	HandlersCount   int           `json:"handlers_count"`
	ListenersCount  int           `json:"listeners_count"`
	Uptime          time.Duration `json:"uptime"`
}

// EventBusConfig holds configuration for the event bus
type EventBusConfig struct {
	HandlerTimeout   time.Duration `json:"handler_timeout" yaml:"handler_timeout"`
	ListenerBuffer   int           `json:"listener_buffer" yaml:"listener_buffer"`
	BacklogThreshold int           `json:"backlog_threshold" yaml:"backlog_threshold"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		HandlerTimeout:   30 * time.Second,
		ListenerBuffer:   256,
		BacklogThreshold: 80,
	}
}

// ===============================
// LIVE SUBSCRIPTIONS
// ===============================

// Subscription is a live, unbuffered-history view of the bus. It only sees
// events published after Listen returned.
type Subscription struct {
	id     uint64
	types  map[string]struct{}
	ch     chan Event
	bus    *inMemoryEventBus
	once   sync.Once
	closed chan struct{}

	// sendMu is held shared by publishers while sending on ch and exclusively
	// while closing it.
	sendMu   sync.RWMutex
	chClosed bool
}

// Events returns the receive side of the subscription. It is closed when the
// subscription or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the bus.
func (s *Subscription) Close() {
	s.bus.removeListener(s)
}

func (s *Subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// ===============================
// IN-MEMORY EVENT BUS
// ===============================

// inMemoryEventBus implements EventBus in process
type inMemoryEventBus struct {
	mu              sync.RWMutex
	handlers        map[string][]EventHandler
	patternHandlers map[string][]EventHandler
	listeners       map[uint64]*Subscription
	nextListenerID  uint64
	logger          *zap.Logger
	config          *EventBusConfig
	startTime       time.Time
	stopped         atomic.Bool

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	if config == nil {
		config = DefaultEventBusConfig()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &inMemoryEventBus{
		handlers:        make(map[string][]EventHandler),
		patternHandlers: make(map[string][]EventHandler),
		listeners:       make(map[uint64]*Subscription),
		logger:          logger,
		config:          config,
		startTime:       time.Now(),
	}
}

// NewEventBus creates a new event bus instance
func NewEventBus(config *EventBusConfig, logger *zap.Logger) EventBus {
	return NewInMemoryEventBus(config, logger)
}

// Publish runs matching handlers and then hands the event to every live
// listener, in call order. A listener with a full buffer blocks the publisher
// until there is room or ctx is done.
func (b *inMemoryEventBus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if b.stopped.Load() {
		return ErrBusStopped
	}

	b.logger.Debug("Publishing event",
		zap.String("event_id", event.GetEventID()),
		zap.String("event_type", event.GetEventType()),
	)
	b.published.Add(1)

	handlerErr := b.processEvent(ctx, event)
	if handlerErr != nil {
		b.failed.Add(1)
		b.logger.Error("Failed to process event",
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Error(handlerErr),
		)
	}

	b.deliver(ctx, event)
	return handlerErr
}

// Subscribe subscribes to events of a specific type
func (b *inMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Info("Handler subscribed",
		zap.String("event_type", eventType),
		zap.String("handler_id", handler.GetHandlerID()),
	)

	return nil
}

// SubscribePattern subscribes to events matching a pattern
func (b *inMemoryEventBus) SubscribePattern(pattern string, handler EventHandler) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.patternHandlers[pattern] = append(b.patternHandlers[pattern], handler)

	b.logger.Info("Pattern handler subscribed",
		zap.String("pattern", pattern),
		zap.String("handler_id", handler.GetHandlerID()),
	)

	return nil
}

// Unsubscribe removes a handler for a specific event type
func (b *inMemoryEventBus) Unsubscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h.GetHandlerID() == handler.GetHandlerID() {
			b.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)

			b.logger.Info("Handler unsubscribed",
				zap.String("event_type", eventType),
				zap.String("handler_id", handler.GetHandlerID()),
			)
			return nil
		}
	}

	return fmt.Errorf("handler not found")
}

// Listen attaches a live listener. With no event types every event is seen.
func (b *inMemoryEventBus) Listen(bufferSize int, eventTypes ...string) *Subscription {
	if bufferSize <= 0 {
		bufferSize = b.config.ListenerBuffer
	}

	sub := &Subscription{
		types:  make(map[string]struct{}, len(eventTypes)),
		ch:     make(chan Event, bufferSize),
		bus:    b,
		closed: make(chan struct{}),
	}
	for _, t := range eventTypes {
		sub.types[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextListenerID++
	sub.id = b.nextListenerID
	if b.stopped.Load() {
		b.closeListener(sub)
		return sub
	}
	b.listeners[sub.id] = sub

	b.logger.Debug("Listener attached",
		zap.Uint64("listener_id", sub.id),
		zap.Strings("event_types", eventTypes),
		zap.Int("buffer_size", bufferSize),
	)

	return sub
}

// Start marks the bus as accepting events
func (b *inMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("Event bus started")
	return nil
}

// Stop rejects further publishes and closes every listener
func (b *inMemoryEventBus) Stop(ctx context.Context) error {
	b.logger.Info("Stopping event bus")
	b.stopped.Store(true)

	b.mu.Lock()
	listeners := make([]*Subscription, 0, len(b.listeners))
	for _, sub := range b.listeners {
		listeners = append(listeners, sub)
	}
	b.listeners = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, sub := range listeners {
		b.closeListener(sub)
	}

	b.logger.Info("Event bus stopped successfully")
	return nil
}

// Health checks the health of the event bus
func (b *inMemoryEventBus) Health() error {
	if b.stopped.Load() {
		return ErrBusStopped
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.listeners {
		capacity := cap(sub.ch)
		if capacity == 0 {
			continue
		}
		if len(sub.ch)*100/capacity > b.config.BacklogThreshold {
			return fmt.Errorf("listener %d backlog is %d%% full", id, len(sub.ch)*100/capacity)
		}
	}

	return nil
}

// Stats returns event bus statistics
func (b *inMemoryEventBus) Stats() *EventBusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := 0
	for _, hs := range b.handlers {
		handlers += len(hs)
	}
	for _, hs := range b.patternHandlers {
		handlers += len(hs)
	}

	return &EventBusStats{
		EventsPublished: b.published.Load(),
		EventsDelivered: b.delivered.Load(),
		EventsDropped:   b.dropped.Load(),
		EventsFailed:    b.failed.Load(),
		HandlersCount:   handlers,
		ListenersCount:  len(b.listeners),
		Uptime:          time.Since(b.startTime),
	}
}

// processEvent runs every handler registered for the event
func (b *inMemoryEventBus) processEvent(ctx context.Context, event Event) error {
	b.mu.RLock()
	eventType := event.GetEventType()
	var allHandlers []EventHandler

	if handlers, exists := b.handlers[eventType]; exists {
		allHandlers = append(allHandlers, handlers...)
	}

	for pattern, handlers := range b.patternHandlers {
		if matchesPattern(eventType, pattern) {
			allHandlers = append(allHandlers, handlers...)
		}
	}
	b.mu.RUnlock()

	if len(allHandlers) == 0 {
		return nil
	}

	var errs []error
	for _, handler := range allHandlers {
		if err := b.executeHandler(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", handler.GetHandlerID(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to execute %d out of %d handlers: %w", len(errs), len(allHandlers), errors.Join(errs...))
	}

	return nil
}

// executeHandler executes a single handler with timeout and recovery
func (b *inMemoryEventBus) executeHandler(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("handler_id", handler.GetHandlerID()),
				zap.String("event_type", event.GetEventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	handlerCtx, cancel := context.WithTimeout(ctx, b.config.HandlerTimeout)
	defer cancel()

	return handler.Handle(handlerCtx, event)
}

// deliver pushes the event to every interested listener
func (b *inMemoryEventBus) deliver(ctx context.Context, event Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.listeners))
	for _, sub := range b.listeners {
		if sub.wants(event.GetEventType()) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.send(ctx, sub, event)
	}
}

func (b *inMemoryEventBus) send(ctx context.Context, sub *Subscription, event Event) {
	sub.sendMu.RLock()
	defer sub.sendMu.RUnlock()

	if sub.chClosed {
		return
	}

	select {
	case sub.ch <- event:
		b.delivered.Add(1)
	case <-sub.closed:
	case <-ctx.Done():
		b.dropped.Add(1)
		b.logger.Warn("Dropped event for listener",
			zap.Uint64("listener_id", sub.id),
			zap.String("event_id", event.GetEventID()),
			zap.String("event_type", event.GetEventType()),
			zap.Error(ctx.Err()),
		)
	}
}

func (b *inMemoryEventBus) removeListener(sub *Subscription) {
	b.mu.Lock()
	delete(b.listeners, sub.id)
	b.mu.Unlock()

	b.closeListener(sub)
}

// closeListener signals closure first so blocked publishers return, then
// closes the channel once no publisher is sending on it.
func (b *inMemoryEventBus) closeListener(sub *Subscription) {
	sub.once.Do(func() {
		close(sub.closed)

		sub.sendMu.Lock()
		sub.chClosed = true
		close(sub.ch)
		sub.sendMu.Unlock()

		b.logger.Debug("Listener detached", zap.Uint64("listener_id", sub.id))
	})
}

// matchesPattern checks if an event type matches a pattern
func matchesPattern(eventType, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(eventType) >= len(prefix) && eventType[:len(prefix)] == prefix
	}

	return eventType == pattern
}
