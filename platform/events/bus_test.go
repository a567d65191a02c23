package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lead_routing_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
}

func (testEvent) EventName() string { return "test.event" }

func TestPublishRunsHandlersAfterCallerCancels(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	var calls atomic.Int32

	bus.Subscribe("test.event", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, testEvent{BaseEvent: NewBaseEvent()})
	cancel()
	bus.Wait()

	if calls.Load() != 1 {
		t.Fatalf("handler calls = %d, want 1", calls.Load())
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	errA := errors.New("a")
	errB := errors.New("b")
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { return errA }))
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { return errB }))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("PublishSync() error = %v, want both handler errors", err)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	bus := NewInMemoryBus(logger.Nop())
	bus.Subscribe("test.event", HandlerFunc(func(context.Context, Event) error { panic("boom") }))

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent()})
		bus.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not complete")
	}
}
