// Package pulse runs the periodic collection loop: read chain state,
// persist the snapshot, evaluate alerts, notify listeners.
package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamassu-labs/mentowatch/alert"
	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Broadcaster receives every persisted snapshot. The dashboard hub
// implements this; a nil broadcaster is allowed.
type Broadcaster interface {
	NotifySnapshot(*snapshot.Snapshot)
}

// Collector produces one snapshot per call. *snapshot.Collector
// satisfies it.
type Collector interface {
	Collect(ctx context.Context) (*snapshot.Snapshot, error)
}

// cycleTimeout bounds a single collection cycle. The loop context does
// not cancel an in-flight cycle, so this is also the shutdown drain cap.
const cycleTimeout = 2 * time.Minute

// Pulse drives the collection cycle on a fixed interval, backing off
// after repeated failures.
type Pulse struct {
	mu        sync.RWMutex
	cfg       am.PulseConfig
	collector Collector
	snapshots *snapshot.Store
	runs      *RunStore
	engine    *alert.Engine
	database  *db.DB
	broadcast Broadcaster

	window time.Duration // supply delta window for alerting

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New assembles a pulse. window is the supply-swing comparison window.
func New(cfg am.PulseConfig, collector Collector, snapshots *snapshot.Store,
	runs *RunStore, engine *alert.Engine, database *db.DB, broadcast Broadcaster,
	window time.Duration) *Pulse {
	return &Pulse{
		cfg:       cfg,
		collector: collector,
		snapshots: snapshots,
		runs:      runs,
		engine:    engine,
		database:  database,
		broadcast: broadcast,
		window:    window,
		now:       time.Now,
		after:     time.After,
	}
}

// SetConfig swaps the scheduling knobs. The loop picks the new interval
// up on its next iteration, so config reloads take effect without a
// restart.
func (p *Pulse) SetConfig(cfg am.PulseConfig) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Pulse) config() am.PulseConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Run executes cycles until ctx is cancelled. The first cycle runs
// immediately. After each failure the wait doubles, capped by
// failure_backoff_max_secs; any success restores the configured
// interval.
func (p *Pulse) Run(ctx context.Context) error {
	logger.Infow(sym.PulseOpen+" pulse started",
		"interval", time.Duration(p.config().IntervalSeconds)*time.Second)
	defer logger.Info(sym.PulseClose + " pulse stopped")

	wait := time.Duration(0)
	failures := 0
	for {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.after(wait):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Re-read each iteration so SetConfig takes effect live.
		cfg := p.config()
		interval := time.Duration(cfg.IntervalSeconds) * time.Second
		maxBackoff := time.Duration(cfg.FailureBackoffMaxSecs) * time.Second

		// Detach the cycle from loop cancellation: shutdown waits for
		// the in-flight snapshot instead of abandoning it and logging
		// a spurious failed run.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cycleTimeout)
		err := p.Cycle(cctx)
		cancel()
		if err != nil {
			failures++
			wait = backoff(interval, failures, maxBackoff)
			logger.Warnw(sym.Pulse+" cycle failed",
				logger.FieldError, err,
				"failures", failures,
				"next_attempt_in", wait,
			)
			continue
		}
		failures = 0
		wait = interval
	}
}

// Cycle runs one collection attempt end to end. Alert evaluation and
// broadcasting happen only for persisted snapshots; a failed collection
// still records the run and re-evaluates the failure-streak rule.
func (p *Pulse) Cycle(ctx context.Context) error {
	runID := uuid.NewString()
	start := p.now()
	if err := p.runs.Begin(runID, start); err != nil {
		return err
	}

	snap, err := p.collector.Collect(ctx)
	if err != nil {
		if ferr := p.runs.Finish(runID, p.now(), false, "", err.Error()); ferr != nil {
			logger.Errorw("recording failed run", logger.FieldRunID, runID, logger.FieldError, ferr)
		}
		p.checkFailureStreak()
		return err
	}

	if err := p.snapshots.Save(snap); err != nil {
		if ferr := p.runs.Finish(runID, p.now(), false, "", err.Error()); ferr != nil {
			logger.Errorw("recording failed run", logger.FieldRunID, runID, logger.FieldError, ferr)
		}
		p.checkFailureStreak()
		return err
	}

	if err := p.runs.Finish(runID, p.now(), true, snap.ID, ""); err != nil {
		logger.Errorw("recording run outcome", logger.FieldRunID, runID, logger.FieldError, err)
	}

	deltas, err := p.snapshots.Deltas(p.window)
	if err != nil {
		logger.Warnw("computing supply deltas", logger.FieldError, err)
	}
	if _, err := p.engine.Evaluate(snap, deltas, 0); err != nil {
		logger.Warnw("evaluating alerts", logger.FieldError, err)
	}

	if p.broadcast != nil {
		p.broadcast.NotifySnapshot(snap)
	}

	p.maybePrune()
	return nil
}

func (p *Pulse) checkFailureStreak() {
	streak, err := p.runs.FailureStreak()
	if err != nil {
		logger.Warnw("reading failure streak", logger.FieldError, err)
		return
	}
	if _, err := p.engine.EvaluateFailures(streak); err != nil {
		logger.Warnw("evaluating failure streak", logger.FieldError, err)
	}
}

// maybePrune drops snapshots past the retention window.
func (p *Pulse) maybePrune() {
	retention := p.config().RetentionDays
	if retention <= 0 {
		return
	}
	if _, err := p.database.Prune(time.Duration(retention) * 24 * time.Hour); err != nil {
		logger.Warnw("pruning snapshots", logger.FieldError, err)
	}
}

// backoff doubles the interval per consecutive failure, capped at max.
func backoff(interval time.Duration, failures int, max time.Duration) time.Duration {
	if max <= 0 {
		max = interval
	}
	d := interval
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
