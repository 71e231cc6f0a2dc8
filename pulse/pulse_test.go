package pulse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/internal/util"
	mwtest "github.com/lamassu-labs/mentowatch/internal/testing"
	"github.com/lamassu-labs/mentowatch/snapshot"
)

type fakeCollector struct {
	snaps []*snapshot.Snapshot
	errs  []error
	calls int
}

func (f *fakeCollector) Collect(ctx context.Context) (*snapshot.Snapshot, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.snaps) {
		return f.snaps[i], nil
	}
	return f.snaps[len(f.snaps)-1], nil
}

type captureBroadcast struct {
	snaps []*snapshot.Snapshot
}

func (c *captureBroadcast) NotifySnapshot(s *snapshot.Snapshot) { c.snaps = append(c.snaps, s) }

func testSnapshot(id string, ratio float64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:              id,
		TakenAt:         time.Now().UTC(),
		BlockNumber:     100,
		TotalSupplyUSD:  util.Ptr(1000.0),
		ReserveValueUSD: util.Ptr(1000.0 * ratio),
		ReserveRatio:    util.Ptr(ratio),
	}
}

func testPulse(t *testing.T, collector Collector, cast Broadcaster) (*Pulse, *db.DB) {
	t.Helper()
	d := mwtest.CreateTestDB(t)
	snaps := snapshot.NewStore(d)
	runs := NewRunStore(d)
	engine := alert.NewEngine(am.AlertsConfig{
		MinReserveRatio: 1.5,
		RecoveryMargin:  0.1,
		FailureStreak:   2,
	}, alert.NewStore(d), nil)

	p := New(am.PulseConfig{
		IntervalSeconds:       60,
		Workers:               2,
		FailureBackoffMaxSecs: 600,
	}, collector, snaps, runs, engine, d, cast, 24*time.Hour)
	return p, d
}

func TestCyclePersistsAndBroadcasts(t *testing.T) {
	cast := &captureBroadcast{}
	p, d := testPulse(t, &fakeCollector{snaps: []*snapshot.Snapshot{testSnapshot("snap-1", 2.0)}}, cast)

	require.NoError(t, p.Cycle(context.Background()))

	got, err := snapshot.NewStore(d).Latest()
	require.NoError(t, err)
	assert.Equal(t, "snap-1", got.ID)

	require.Len(t, cast.snaps, 1)
	assert.Equal(t, "snap-1", cast.snaps[0].ID)

	runs, err := NewRunStore(d).Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK)
	assert.Equal(t, "snap-1", runs[0].SnapshotID)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestCycleRecordsFailure(t *testing.T) {
	p, d := testPulse(t, &fakeCollector{errs: []error{errors.ErrRPCUnavailable}}, nil)

	err := p.Cycle(context.Background())
	require.Error(t, err)

	runs, err := NewRunStore(d).Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].OK)
	assert.NotEmpty(t, runs[0].Error)
}

func TestFailureStreakFiresAlert(t *testing.T) {
	p, d := testPulse(t, &fakeCollector{
		errs: []error{errors.ErrRPCUnavailable, errors.ErrRPCUnavailable},
	}, nil)

	require.Error(t, p.Cycle(context.Background()))
	require.Error(t, p.Cycle(context.Background()))

	open, err := alert.NewStore(d).OpenAlerts()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, alert.RuleFailureStreak, open[0].Rule)
}

func TestLowRatioAlertFromCycle(t *testing.T) {
	p, d := testPulse(t, &fakeCollector{snaps: []*snapshot.Snapshot{testSnapshot("snap-1", 1.1)}}, nil)

	require.NoError(t, p.Cycle(context.Background()))

	open, err := alert.NewStore(d).OpenAlerts()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, alert.RuleReserveRatio, open[0].Rule)
}

func TestRunStopsOnCancel(t *testing.T) {
	p, _ := testPulse(t, &fakeCollector{snaps: []*snapshot.Snapshot{testSnapshot("snap-1", 2.0)}}, nil)

	ticks := make(chan time.Time)
	p.after = func(d time.Duration) <-chan time.Time { return ticks }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately; then the loop blocks on the timer.
	cancel()
	close(ticks)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pulse did not stop on cancel")
	}
}

// blockingCollector parks inside Collect until released, so tests can
// cancel the loop while a cycle is in flight.
type blockingCollector struct {
	started chan struct{}
	release chan struct{}
	snap    *snapshot.Snapshot
}

func (b *blockingCollector) Collect(ctx context.Context) (*snapshot.Snapshot, error) {
	close(b.started)
	select {
	case <-b.release:
		return b.snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRunDrainsInFlightCycleOnCancel(t *testing.T) {
	collector := &blockingCollector{
		started: make(chan struct{}),
		release: make(chan struct{}),
		snap:    testSnapshot("snap-1", 2.0),
	}
	p, d := testPulse(t, collector, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-collector.started
	cancel()
	close(collector.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pulse did not stop after draining")
	}

	// The in-flight snapshot landed despite the shutdown.
	got, err := snapshot.NewStore(d).Latest()
	require.NoError(t, err)
	assert.Equal(t, "snap-1", got.ID)

	runs, err := NewRunStore(d).Recent(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].OK)
	assert.Empty(t, runs[0].Error)
}

func TestRunIntervalHotReload(t *testing.T) {
	p, _ := testPulse(t, &fakeCollector{snaps: []*snapshot.Snapshot{
		testSnapshot("snap-1", 2.0),
		testSnapshot("snap-2", 2.0),
	}}, nil)

	waits := make(chan time.Duration, 4)
	ticks := make(chan time.Time)
	p.after = func(d time.Duration) <-chan time.Time {
		waits <- d
		return ticks
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// First cycle runs immediately, then the loop sleeps the
	// configured interval.
	assert.Equal(t, time.Minute, <-waits)

	p.SetConfig(am.PulseConfig{IntervalSeconds: 5, Workers: 2, FailureBackoffMaxSecs: 600})
	ticks <- time.Time{}

	// The next sleep reflects the reloaded interval.
	assert.Equal(t, 5*time.Second, <-waits)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pulse did not stop on cancel")
	}
}

func TestRunStoreFailureStreak(t *testing.T) {
	d := mwtest.CreateTestDB(t)
	runs := NewRunStore(d)

	base := time.Unix(1700000000, 0)
	add := func(id string, at time.Time, ok bool) {
		require.NoError(t, runs.Begin(id, at))
		require.NoError(t, runs.Finish(id, at.Add(time.Second), ok, "", ""))
	}

	streak, err := runs.FailureStreak()
	require.NoError(t, err)
	assert.Zero(t, streak)

	add("r1", base, true)
	add("r2", base.Add(time.Minute), false)
	add("r3", base.Add(2*time.Minute), false)

	streak, err = runs.FailureStreak()
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	add("r4", base.Add(3*time.Minute), true)
	streak, err = runs.FailureStreak()
	require.NoError(t, err)
	assert.Zero(t, streak)
}

func TestBackoff(t *testing.T) {
	interval := time.Minute
	max := 10 * time.Minute

	assert.Equal(t, time.Minute, backoff(interval, 1, max))
	assert.Equal(t, 2*time.Minute, backoff(interval, 2, max))
	assert.Equal(t, 8*time.Minute, backoff(interval, 4, max))
	assert.Equal(t, max, backoff(interval, 5, max))
	assert.Equal(t, max, backoff(interval, 50, max))
	// Zero max degrades to the plain interval.
	assert.Equal(t, interval, backoff(interval, 3, 0))
}
