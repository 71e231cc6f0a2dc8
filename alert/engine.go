package alert

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/internal/util"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/snapshot"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Engine evaluates alert rules after each collection cycle and records
// state changes. Each (rule, subject) pair holds at most one open
// alert; re-evaluating an already-firing condition is a no-op.
type Engine struct {
	mu     sync.RWMutex
	cfg    am.AlertsConfig
	store  *Store
	notify Notifier

	now func() time.Time
}

// NewEngine builds an engine. notify may be nil.
func NewEngine(cfg am.AlertsConfig, store *Store, notify Notifier) *Engine {
	return &Engine{cfg: cfg, store: store, notify: notify, now: time.Now}
}

// SetConfig swaps the rule thresholds, applied from the next
// evaluation on. Used by config hot reload.
func (e *Engine) SetConfig(cfg am.AlertsConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) config() am.AlertsConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Evaluate runs all rules against the latest snapshot, the supply
// deltas, and the current consecutive-failure count. It returns the
// state changes it produced.
func (e *Engine) Evaluate(snap *snapshot.Snapshot, deltas []snapshot.SupplyDelta, failureStreak int) ([]Event, error) {
	var events []Event

	evs, err := e.evaluateRatio(snap)
	if err != nil {
		return events, err
	}
	events = append(events, evs...)

	evs, err = e.evaluateSwings(snap, deltas)
	if err != nil {
		return events, err
	}
	events = append(events, evs...)

	evs, err = e.EvaluateFailures(failureStreak)
	if err != nil {
		return events, err
	}
	events = append(events, evs...)

	return events, nil
}

// evaluateRatio fires when the reserve ratio drops below the
// configured minimum. Recovery requires the ratio to clear the
// threshold plus the recovery margin, so a ratio oscillating around
// the threshold does not flap.
//
// A nil ratio (unvalued reserve) neither fires nor resolves: without a
// valuation there is no evidence either way.
func (e *Engine) evaluateRatio(snap *snapshot.Snapshot) ([]Event, error) {
	cfg := e.config()
	if cfg.MinReserveRatio <= 0 || snap.ReserveRatio == nil {
		return nil, nil
	}
	ratio := *snap.ReserveRatio

	if ratio < cfg.MinReserveRatio {
		a := &Alert{
			ID:       uuid.NewString(),
			Rule:     RuleReserveRatio,
			Subject:  SubjectReserve,
			Severity: SeverityCritical,
			Message: fmt.Sprintf("reserve ratio %.3f below minimum %.3f",
				ratio, cfg.MinReserveRatio),
			Value:      util.Ptr(ratio),
			Threshold:  util.Ptr(cfg.MinReserveRatio),
			SnapshotID: snap.ID,
		}
		return e.fire(a)
	}

	if ratio >= cfg.MinReserveRatio+cfg.RecoveryMargin {
		return e.resolve(RuleReserveRatio, SubjectReserve)
	}
	return nil, nil
}

// evaluateSwings fires per token whose supply moved more than the
// configured percentage over the delta window, in either direction.
func (e *Engine) evaluateSwings(snap *snapshot.Snapshot, deltas []snapshot.SupplyDelta) ([]Event, error) {
	cfg := e.config()
	if cfg.SupplyChangePercent <= 0 {
		return nil, nil
	}

	var events []Event
	for _, d := range deltas {
		if math.Abs(d.Percent) > cfg.SupplyChangePercent {
			a := &Alert{
				ID:       uuid.NewString(),
				Rule:     RuleSupplySwing,
				Subject:  d.Symbol,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("%s supply changed %+.2f%% since %s",
					d.Symbol, d.Percent, d.From.Format(time.RFC3339)),
				Value:      util.Ptr(d.Percent),
				Threshold:  util.Ptr(cfg.SupplyChangePercent),
				SnapshotID: snap.ID,
			}
			evs, err := e.fire(a)
			if err != nil {
				return events, err
			}
			events = append(events, evs...)
		} else {
			evs, err := e.resolve(RuleSupplySwing, d.Symbol)
			if err != nil {
				return events, err
			}
			events = append(events, evs...)
		}
	}
	return events, nil
}

// EvaluateFailures fires when consecutive collection failures reach
// the configured streak, and resolves on the first success (streak 0).
// It is exported because it must also run on failed cycles, when no
// snapshot exists to evaluate the other rules against.
func (e *Engine) EvaluateFailures(streak int) ([]Event, error) {
	cfg := e.config()
	if cfg.FailureStreak <= 0 {
		return nil, nil
	}

	if streak >= cfg.FailureStreak {
		a := &Alert{
			ID:       uuid.NewString(),
			Rule:     RuleFailureStreak,
			Subject:  SubjectReserve,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d consecutive collection failures", streak),
			Value:    util.Ptr(float64(streak)),
			Threshold: util.Ptr(float64(cfg.FailureStreak)),
		}
		return e.fire(a)
	}
	if streak == 0 {
		return e.resolve(RuleFailureStreak, SubjectReserve)
	}
	return nil, nil
}

// fire opens an alert unless one is already open for the pair.
func (e *Engine) fire(a *Alert) ([]Event, error) {
	open, err := e.store.Open(a.Rule, a.Subject)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, nil
	}

	a.FiredAt = e.now().UTC()
	if err := e.store.Insert(a); err != nil {
		return nil, err
	}

	logger.Warnw(sym.Alert+" alert fired",
		logger.FieldAlertID, a.ID,
		"rule", a.Rule,
		"subject", a.Subject,
		"message", a.Message,
	)
	ev := Event{Kind: EventFired, Alert: a}
	if e.notify != nil {
		e.notify.NotifyAlert(ev)
	}
	return []Event{ev}, nil
}

// resolve closes the open alert for the pair if any.
func (e *Engine) resolve(rule, subject string) ([]Event, error) {
	resolved, err := e.store.Resolve(rule, subject, e.now())
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, nil
	}

	logger.Infow(sym.Alert+" alert resolved",
		logger.FieldAlertID, resolved.ID,
		"rule", rule,
		"subject", subject,
	)
	ev := Event{Kind: EventResolved, Alert: resolved}
	if e.notify != nil {
		e.notify.NotifyAlert(ev)
	}
	return []Event{ev}, nil
}
