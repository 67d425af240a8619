// Package notifications is the event bus used for configuration lifecycle
// hooks. The bus is passed explicitly to the runtime; a nil *Bus is a valid
// no-op bus.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Configuration lifecycle events
const (
	RelationRegistered  = "configuration.relations.object.registered"
	SchemaSet           = "configuration.relations.schema.set"
	DatasetAllocated    = "configuration.relations.dataset.allocated"
	CommandsBeforeBuild = "configuration.commands.before_build"
	GatewayConnected    = "configuration.gateways.connected"
)

// ConfigurationEvents lists every lifecycle event registered by the runtime
var ConfigurationEvents = []string{
	RelationRegistered,
	SchemaSet,
	DatasetAllocated,
	CommandsBeforeBuild,
	GatewayConnected,
}

// ErrUnknownEvent is returned when triggering or subscribing to an event
// that was never registered
var ErrUnknownEvent = errors.New("unknown event")

// Event is delivered to listeners
type Event struct {
	ID      uuid.UUID
	Name    string
	Payload map[string]any
	At      time.Time
}

// Get returns a payload value
func (e Event) Get(key string) any {
	return e.Payload[key]
}

// ListenerFunc handles an event. Payload values may be mutated to pass data
// back to the trigger site.
//
// Events fired while a component is being built carry the build context.
// Listeners that call back into the registry must pass that ctx along: a
// fetch of the component under construction then fails with a cycle error,
// while a fresh context blocks until the build it is waiting on finishes,
// which never happens.
type ListenerFunc func(ctx context.Context, event Event) error

// Listener subscribes a function to an event. Source names the plugin that
// contributed it; global listeners leave it empty. Fn must reuse the ctx it
// receives for registry calls (see ListenerFunc).
type Listener struct {
	Event  string
	Source string
	Fn     ListenerFunc
}

// Bus dispatches events synchronously in subscription order
type Bus struct {
	mu        sync.RWMutex
	events    map[string]struct{}
	listeners map[string][]Listener
	logger    *zap.Logger
}

// NewBus creates a bus; a nil logger disables logging
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		events:    make(map[string]struct{}),
		listeners: make(map[string][]Listener),
		logger:    logger,
	}
}

// RegisterEvent declares events that can be triggered
func (b *Bus) RegisterEvent(names ...string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range names {
		b.events[name] = struct{}{}
	}
}

// Registered reports whether an event was declared
func (b *Bus) Registered(name string) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.events[name]
	return ok
}

// Subscribe attaches a listener
func (b *Bus) Subscribe(l Listener) error {
	if b == nil {
		return nil
	}
	if l.Fn == nil {
		return fmt.Errorf("listener for %s has no function", l.Event)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.events[l.Event]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, l.Event)
	}
	b.listeners[l.Event] = append(b.listeners[l.Event], l)
	return nil
}

// Listeners returns the listeners attached to an event
func (b *Bus) Listeners(name string) []Listener {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Listener(nil), b.listeners[name]...)
}

// Events returns registered event names, sorted
func (b *Bus) Events() []string {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.events))
	for name := range b.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trigger delivers an event to its listeners. Listener failures and panics
// are logged and do not reach the caller; only an unregistered event name
// is an error.
func (b *Bus) Trigger(ctx context.Context, name string, payload map[string]any) error {
	if b == nil {
		return nil
	}
	if !b.Registered(name) {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, name)
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	event := Event{
		ID:      uuid.New(),
		Name:    name,
		Payload: payload,
		At:      time.Now(),
	}

	for _, l := range b.Listeners(name) {
		b.deliver(ctx, l, event)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked",
				zap.String("event", event.Name),
				zap.String("source", l.Source),
				zap.Any("panic", r),
			)
		}
	}()

	if err := l.Fn(ctx, event); err != nil {
		b.logger.Warn("listener failed",
			zap.String("event", event.Name),
			zap.String("source", l.Source),
			zap.Error(err),
		)
	}
}
