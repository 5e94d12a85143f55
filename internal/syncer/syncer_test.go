package syncer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwatch/internal/engine"
	"calwatch/internal/models"
	"calwatch/internal/store"
)

type fakeSource struct {
	calls  int
	events []models.Event
	err    error
}

func (f *fakeSource) Fetch(ctx context.Context) ([]models.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeReconciler struct {
	calls   atomic.Int32
	changes []models.Change
	err     error
	onCall  func()
}

func (f *fakeReconciler) Reconcile(ctx context.Context, group string, events []models.Event, filter engine.Filter) ([]models.Change, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	return f.changes, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSync_EndToEndWithEngine(t *testing.T) {
	ctx := context.Background()
	begin := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{events: []models.Event{{UID: "a", Name: "Standup", Begin: begin, End: begin.Add(15 * time.Minute)}}}
	st := store.NewMemory()
	eng := engine.New(discardLogger(), st, nil)

	s := NewSyncer(discardLogger(), src, eng, Options{Group: "team", FeedURL: "https://example.com/cal.ics"})
	require.NoError(t, s.Sync(ctx))

	got, err := st.FindByKey(ctx, "team", "a")
	require.NoError(t, err)
	assert.Equal(t, "Standup", got.Name)
}

func TestSync_FetchErrorSkipsReconcile(t *testing.T) {
	src := &fakeSource{err: &models.FetchError{URL: "https://example.com/...(redacted)", Err: errors.New("timeout")}}
	rec := &fakeReconciler{}

	err := NewSyncer(discardLogger(), src, rec, Options{Group: "team"}).Sync(context.Background())
	require.Error(t, err)

	var fe *models.FetchError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, "fetch", errorKind(err))
	assert.Zero(t, rec.calls.Load())
}

func TestSync_StoreErrorPropagates(t *testing.T) {
	src := &fakeSource{events: []models.Event{{UID: "a"}}}
	rec := &fakeReconciler{
		changes: []models.Change{{Kind: models.Created}},
		err:     &models.StoreError{Op: "update", Err: errors.New("connection reset")},
	}

	err := NewSyncer(discardLogger(), src, rec, Options{Group: "team"}).Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, "store", errorKind(err))
	assert.Contains(t, err.Error(), "after 1 changes")
}

func TestSync_CacheWindow(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{events: []models.Event{{UID: "a"}}}
	rec := &fakeReconciler{}
	now := time.Date(2024, 1, 1, 9, 1, 0, 0, time.UTC)

	s := NewSyncer(discardLogger(), src, rec, Options{Group: "team", FeedURL: "u", CacheWindow: 10 * time.Minute})
	s.now = func() time.Time { return now }

	require.NoError(t, s.Sync(ctx))
	now = now.Add(5 * time.Minute)
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 1, src.calls)

	now = now.Add(5 * time.Minute)
	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 2, src.calls)
	assert.EqualValues(t, 3, rec.calls.Load())
}

func TestRun_StopsOnCancelAndSurvivesPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{events: []models.Event{{UID: "a"}}}
	rec := &fakeReconciler{}
	rec.onCall = func() {
		if rec.calls.Load() == 1 {
			panic("boom")
		}
		cancel()
	}

	s := NewSyncer(discardLogger(), src, rec, Options{Group: "team"})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Second) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, rec.calls.Load(), int32(2))
}

// blockingReconciler holds the second pass for hold and records how many
// passes ran at the same time.
type blockingReconciler struct {
	hold     time.Duration
	cancel   context.CancelFunc
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (b *blockingReconciler) Reconcile(ctx context.Context, group string, events []models.Event, filter engine.Filter) ([]models.Change, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		seen := b.maxSeen.Load()
		if n <= seen || b.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	switch b.calls.Add(1) {
	case 2:
		time.Sleep(b.hold)
	case 3:
		b.cancel()
	}
	return nil, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_SkipsPassWhilePreviousIsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	src := &fakeSource{events: []models.Event{{UID: "a"}}}
	rec := &blockingReconciler{hold: 2500 * time.Millisecond, cancel: cancel}
	s := NewSyncer(logger, src, rec, Options{Group: "team"})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Second) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.EqualValues(t, 1, rec.maxSeen.Load(), "passes overlapped")
	assert.EqualValues(t, 3, rec.calls.Load())
	assert.Contains(t, logs.String(), "Previous sync still running, skipping this one.")
}
