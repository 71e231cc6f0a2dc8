package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/internal/util"
	mwtest "github.com/lamassu-labs/mentowatch/internal/testing"
	"github.com/lamassu-labs/mentowatch/snapshot"
)

func testEngine(t *testing.T) (*Engine, *Store, *[]Event) {
	t.Helper()
	d := mwtest.CreateTestDB(t)
	store := NewStore(d)
	// Fired alerts reference this snapshot; it must exist to satisfy
	// the alerts.snapshot_id foreign key, as in production where the
	// snapshot is persisted before evaluation.
	require.NoError(t, snapshot.NewStore(d).Save(&snapshot.Snapshot{
		ID:      "snap-1",
		TakenAt: time.Now().UTC(),
	}))
	var notified []Event
	e := NewEngine(am.AlertsConfig{
		MinReserveRatio:     1.5,
		RecoveryMargin:      0.1,
		SupplyChangePercent: 10.0,
		FailureStreak:       3,
	}, store, NotifierFunc(func(ev Event) { notified = append(notified, ev) }))
	return e, store, &notified
}

func snapWithRatio(ratio *float64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		ID:           "snap-1",
		TakenAt:      time.Now().UTC(),
		ReserveRatio: ratio,
	}
}

func TestRatioFiresAndDedupes(t *testing.T) {
	e, store, notified := testEngine(t)

	events, err := e.Evaluate(snapWithRatio(util.Ptr(1.2)), nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventFired, events[0].Kind)
	assert.Equal(t, RuleReserveRatio, events[0].Alert.Rule)
	assert.Equal(t, SeverityCritical, events[0].Alert.Severity)
	assert.Len(t, *notified, 1)

	// Still below threshold: no duplicate.
	events, err = e.Evaluate(snapWithRatio(util.Ptr(1.3)), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	open, err := store.OpenAlerts()
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestRatioHysteresis(t *testing.T) {
	e, store, _ := testEngine(t)

	_, err := e.Evaluate(snapWithRatio(util.Ptr(1.2)), nil, 0)
	require.NoError(t, err)

	// Above threshold but inside the recovery margin: stays open.
	events, err := e.Evaluate(snapWithRatio(util.Ptr(1.55)), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Clears threshold + margin: resolves.
	events, err = e.Evaluate(snapWithRatio(util.Ptr(1.65)), nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventResolved, events[0].Kind)
	assert.NotNil(t, events[0].Alert.ResolvedAt)

	open, err := store.OpenAlerts()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestNilRatioIsInconclusive(t *testing.T) {
	e, _, _ := testEngine(t)

	_, err := e.Evaluate(snapWithRatio(util.Ptr(1.2)), nil, 0)
	require.NoError(t, err)

	// Unvalued reserve must not resolve the open alert.
	events, err := e.Evaluate(snapWithRatio(nil), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSupplySwing(t *testing.T) {
	e, _, _ := testEngine(t)

	deltas := []snapshot.SupplyDelta{
		{Symbol: "cUSD", Percent: 12.5, From: time.Now().Add(-24 * time.Hour)},
		{Symbol: "cEUR", Percent: -3.0},
	}
	events, err := e.Evaluate(snapWithRatio(util.Ptr(2.0)), deltas, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, RuleSupplySwing, events[0].Alert.Rule)
	assert.Equal(t, "cUSD", events[0].Alert.Subject)
	assert.Equal(t, SeverityWarning, events[0].Alert.Severity)

	// Swing drops back inside the band: resolves.
	deltas[0].Percent = 2.0
	events, err = e.Evaluate(snapWithRatio(util.Ptr(2.0)), deltas, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventResolved, events[0].Kind)
}

func TestNegativeSwingFires(t *testing.T) {
	e, _, _ := testEngine(t)

	deltas := []snapshot.SupplyDelta{{Symbol: "cKES", Percent: -15.0}}
	events, err := e.Evaluate(snapWithRatio(util.Ptr(2.0)), deltas, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cKES", events[0].Alert.Subject)
}

func TestFailureStreak(t *testing.T) {
	e, store, _ := testEngine(t)

	events, err := e.EvaluateFailures(2)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = e.EvaluateFailures(3)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, RuleFailureStreak, events[0].Alert.Rule)

	// Streak continues: no duplicate.
	events, err = e.EvaluateFailures(4)
	require.NoError(t, err)
	assert.Empty(t, events)

	// First success resolves.
	events, err = e.EvaluateFailures(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventResolved, events[0].Kind)

	open, err := store.OpenAlerts()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDisabledRules(t *testing.T) {
	store := NewStore(mwtest.CreateTestDB(t))
	e := NewEngine(am.AlertsConfig{}, store, nil)

	events, err := e.Evaluate(snapWithRatio(util.Ptr(0.5)),
		[]snapshot.SupplyDelta{{Symbol: "cUSD", Percent: 50}}, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecentOrdering(t *testing.T) {
	e, store, _ := testEngine(t)

	base := time.Unix(1700000000, 0)
	e.now = func() time.Time { return base }
	_, err := e.Evaluate(snapWithRatio(util.Ptr(1.2)), nil, 0)
	require.NoError(t, err)

	e.now = func() time.Time { return base.Add(time.Hour) }
	_, err = e.EvaluateFailures(5)
	require.NoError(t, err)

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, RuleFailureStreak, recent[0].Rule)
}
