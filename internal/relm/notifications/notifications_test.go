package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBus_TriggerOrder(t *testing.T) {
	bus := NewBus(nil)
	bus.RegisterEvent(ConfigurationEvents...)

	var calls []string
	for _, src := range []string{"", "timestamps"} {
		src := src
		require.NoError(t, bus.Subscribe(Listener{
			Event:  RelationRegistered,
			Source: src,
			Fn: func(_ context.Context, e Event) error {
				calls = append(calls, src+":"+e.Get("relation").(string))
				return nil
			},
		}))
	}

	require.NoError(t, bus.Trigger(context.Background(), RelationRegistered, map[string]any{"relation": "users"}))
	assert.Equal(t, []string{":users", "timestamps:users"}, calls)
}

func TestBus_PayloadMutation(t *testing.T) {
	bus := NewBus(nil)
	bus.RegisterEvent(SchemaSet)
	require.NoError(t, bus.Subscribe(Listener{
		Event: SchemaSet,
		Fn: func(_ context.Context, e Event) error {
			e.Payload["seen"] = true
			return nil
		},
	}))

	payload := map[string]any{}
	require.NoError(t, bus.Trigger(context.Background(), SchemaSet, payload))
	assert.Equal(t, true, payload["seen"])
}

func TestBus_UnknownEvent(t *testing.T) {
	bus := NewBus(nil)

	err := bus.Trigger(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownEvent)

	err = bus.Subscribe(Listener{Event: "nope", Fn: func(context.Context, Event) error { return nil }})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus

	assert.NoError(t, bus.Trigger(context.Background(), GatewayConnected, nil))
	assert.NoError(t, bus.Subscribe(Listener{Event: GatewayConnected}))
	assert.Nil(t, bus.Events())
	assert.False(t, bus.Registered(GatewayConnected))
}

func TestBus_ListenerFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bus := NewBus(zap.New(core))
	bus.RegisterEvent(GatewayConnected)

	require.NoError(t, bus.Subscribe(Listener{
		Event:  GatewayConnected,
		Source: "broken",
		Fn:     func(context.Context, Event) error { return errors.New("boom") },
	}))
	require.NoError(t, bus.Subscribe(Listener{
		Event:  GatewayConnected,
		Source: "panicky",
		Fn:     func(context.Context, Event) error { panic("oops") },
	}))

	ran := false
	require.NoError(t, bus.Subscribe(Listener{
		Event: GatewayConnected,
		Fn: func(context.Context, Event) error {
			ran = true
			return nil
		},
	}))

	require.NoError(t, bus.Trigger(context.Background(), GatewayConnected, nil))

	assert.True(t, ran)
	assert.Equal(t, 1, logs.FilterMessage("listener failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("listener panicked").Len())
}

func TestBus_Events(t *testing.T) {
	bus := NewBus(nil)
	bus.RegisterEvent(GatewayConnected, RelationRegistered)
	assert.Equal(t, []string{GatewayConnected, RelationRegistered}, bus.Events())
}
