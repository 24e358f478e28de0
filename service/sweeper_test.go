package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/tollgate/adapters/store"
	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/metrics"
)

// stubReaper serves a fixed expired list and fails revokes for chosen tokens
type stubReaper struct {
	mu      sync.Mutex
	expired []string
	failing map[string]bool
	revoked []string
	listErr error
	lists   atomic.Int32
}

func (r *stubReaper) ListExpired(context.Context, time.Time) ([]string, error) {
	r.lists.Add(1)
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.expired...), nil
}

func (r *stubReaper) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing[token] {
		return core.ErrStoreUnavailable
	}
	r.revoked = append(r.revoked, token)
	return nil
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	reaper := &stubReaper{
		expired: []string{"a", "b", "c"},
		failing: map[string]bool{"b": true},
	}
	sweeper := NewSweeper(reaper, time.Minute, WithSweepMetrics(metrics.New(prometheus.NewRegistry())))

	removed, err := sweeper.Sweep(context.Background())
	assert.Equal(t, 2, removed)
	assert.ErrorIs(t, err, core.ErrSweepPartialFailure)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	sort.Strings(reaper.revoked)
	assert.Equal(t, []string{"a", "c"}, reaper.revoked)
}

func TestSweepListFailure(t *testing.T) {
	reaper := &stubReaper{listErr: core.ErrStoreUnavailable}
	sweeper := NewSweeper(reaper, time.Minute)

	removed, err := sweeper.Sweep(context.Background())
	assert.Zero(t, removed)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, core.ErrSweepPartialFailure)
}

func TestSweepStopsOnCancel(t *testing.T) {
	reaper := &stubReaper{expired: []string{"a", "b"}}
	sweeper := NewSweeper(reaper, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	removed, err := sweeper.Sweep(ctx)
	assert.Zero(t, removed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reaper.revoked)
}

func TestRunSweepsOnEveryTickAndStops(t *testing.T) {
	reaper := &stubReaper{}
	sweeper := NewSweeper(reaper, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool { return reaper.lists.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	// no further sweeps after Run has returned
	stopped := reaper.lists.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, reaper.lists.Load())
}

func TestRunKeepsGoingAfterFailedSweep(t *testing.T) {
	reaper := &stubReaper{listErr: errors.New("disk full")}
	sweeper := NewSweeper(reaper, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool { return reaper.lists.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRunRejectsBadInterval(t *testing.T) {
	err := NewSweeper(&stubReaper{}, 0).Run(context.Background())
	assert.Error(t, err)
}

func TestSweeperAgainstLevelDB(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	st, err := store.NewLevelDBStore(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	short := newService(t, st, WithTTL(time.Second), WithClock(clock.Now))
	long := newService(t, st, WithTTL(time.Hour), WithClock(clock.Now))
	sweeper := NewSweeper(short, time.Minute, WithSweepClock(clock.Now))

	var expiring []string
	for i := 0; i < 50; i++ {
		s, err := short.Issue(ctx, "short")
		require.NoError(t, err)
		expiring = append(expiring, s.Token)
	}
	kept, err := long.Issue(ctx, "long")
	require.NoError(t, err)

	clock.Advance(time.Minute)

	removed, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, removed)

	for _, tok := range expiring {
		_, err := st.Get(ctx, tok)
		assert.ErrorIs(t, err, core.ErrTokenNotFound)
	}
	_, err = long.Validate(ctx, kept.Token)
	assert.NoError(t, err)

	// a second cycle has nothing left to do
	removed, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "***", fingerprint("abc"))
	assert.Equal(t, "abcdef***", fingerprint("abcdefghijkl"))
}
