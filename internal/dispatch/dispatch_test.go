package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhodes/barrierscreen/internal/dispatch"
	"github.com/jrhodes/barrierscreen/internal/wire"
)

// TestOrdering is the §8 "Dispatcher ordering" property: M1..Mn enqueued in
// order are handled in that same order.
func TestOrdering(t *testing.T) {
	d := dispatch.New()

	var (
		mu   sync.Mutex
		seen []uint32
	)

	d.Handle("DKDN", func(msg wire.Message) error {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, uint32(msg.(*wire.KeyDown).KeyID))

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_ = d.Run(ctx)
	}()

	for i := uint16(0); i < 50; i++ {
		require.NoError(t, d.Enqueue(ctx, &wire.KeyDown{KeyID: i}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(seen) == 50
	}, time.Second, time.Millisecond)

	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	for i, v := range seen {
		assert.Equal(t, uint32(i), v)
	}
}

func TestUnknownCodeFallsBackToDefault(t *testing.T) {
	d := dispatch.New()

	called := make(chan wire.Message, 1)
	d.OnUnknown(func(msg wire.Message) error {
		called <- msg

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = d.Run(ctx) }()

	skip := &wire.Skip{SkipCode: "ZZZZ"}
	require.NoError(t, d.Enqueue(ctx, skip))

	select {
	case got := <-called:
		assert.Equal(t, skip, got)
	case <-time.After(time.Second):
		t.Fatal("default handler was not invoked")
	}
}

func TestHandlerErrorReportedNotFatal(t *testing.T) {
	d := dispatch.New()

	wantErr := errors.New("injector rejected event")
	d.Handle("DMDN", func(wire.Message) error { return wantErr })

	errs := make(chan error, 1)
	d.OnError(func(_ string, err error) { errs <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = d.Run(ctx) }()

	require.NoError(t, d.Enqueue(ctx, &wire.MouseDown{Button: 1}))

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, wantErr)
	case <-time.After(time.Second):
		t.Fatal("handler error was not reported")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	d := dispatch.New()
	d.Handle("DMUP", func(wire.Message) error { panic("boom") })

	errs := make(chan error, 1)
	d.OnError(func(_ string, err error) { errs <- err })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = d.Run(ctx) }()

	require.NoError(t, d.Enqueue(ctx, &wire.MouseUp{Button: 1}))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(time.Second):
		t.Fatal("panic was not recovered and reported")
	}

	// The worker goroutine must still be alive after recovering.
	require.NoError(t, d.Enqueue(ctx, &wire.MouseUp{Button: 2}))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(time.Second):
		t.Fatal("worker did not handle a message after recovering")
	}
}

// TestDrainOnShutdown: messages already enqueued before cancellation are
// still delivered (so a COUT/CBYE enqueued just before shutdown still drains
// pressed sets).
func TestDrainOnShutdown(t *testing.T) {
	d := dispatch.New()

	var (
		mu    sync.Mutex
		count int
	)

	d.Handle("CNOP", func(wire.Message) error {
		mu.Lock()
		defer mu.Unlock()

		count++

		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(ctx, &wire.Noop{}))
	}

	cancel()

	require.NoError(t, d.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}

func TestLenReportsQueueDepth(t *testing.T) {
	d := dispatch.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Equal(t, 0, d.Len())

	require.NoError(t, d.Enqueue(ctx, &wire.Noop{}))
	require.NoError(t, d.Enqueue(ctx, &wire.Noop{}))

	assert.Equal(t, 2, d.Len())
}
