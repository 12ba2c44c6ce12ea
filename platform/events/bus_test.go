package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"crm_pipeline_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublish_DispatchesToSubscribers(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	var calls atomic.Int32
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	bus.Drain()

	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 handler calls, got %d", got)
	}
}

func TestPublish_OnlyMatchingSubscribers(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	var calls atomic.Int32
	bus.Subscribe("other.event", HandlerFunc(func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	bus.Drain()

	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no handler calls, got %d", got)
	}
}

func TestPublishSync_JoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	wantErr := errors.New("handler failed")
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		return wantErr
	}))
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
}

func TestPublishSync_RecoversHandlerPanic(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		panic("boom")
	}))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestDrain_WaitsForInFlightHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	release := make(chan struct{})
	var done atomic.Bool
	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		<-release
		done.Store(true)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	close(release)
	bus.Drain()

	// Shutdown relies on Drain returning only after every dispatched
	// handler has finished.
	if !done.Load() {
		t.Fatal("Drain returned before the handler completed")
	}
}

func TestPublish_HandlerErrorDoesNotReachPublisher(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	bus.Subscribe("thing.happened", HandlerFunc(func(ctx context.Context, event Event) error {
		return errors.New("async failure")
	}))

	// Must not panic or block; the error is logged, not propagated.
	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "thing.happened"})
	bus.Drain()
}
