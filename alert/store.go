package alert

import (
	"database/sql"
	"time"

	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/errors"
)

// Store persists alerts to SQLite.
type Store struct {
	db *db.DB
}

// NewStore wraps the database for alert persistence.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Insert writes a newly fired alert. The partial unique index on open
// (rule, subject) pairs rejects a second open alert for the same pair.
func (s *Store) Insert(a *Alert) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO alerts (id, rule, subject, severity, message, value, threshold, fired_at, resolved_at, snapshot_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		a.ID, a.Rule, a.Subject, a.Severity, a.Message, a.Value, a.Threshold,
		a.FiredAt.Unix(), nullable(a.SnapshotID),
	)
	return errors.Wrapf(err, "inserting alert %s/%s", a.Rule, a.Subject)
}

// Resolve closes the open alert for (rule, subject) if one exists and
// returns it, or nil when nothing was open.
func (s *Store) Resolve(rule, subject string, at time.Time) (*Alert, error) {
	open, err := s.Open(rule, subject)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}

	_, err = s.db.Conn().Exec(
		"UPDATE alerts SET resolved_at = ? WHERE id = ?",
		at.Unix(), open.ID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving alert %s", open.ID)
	}
	t := at.UTC()
	open.ResolvedAt = &t
	return open, nil
}

// Open returns the open alert for (rule, subject), or nil.
func (s *Store) Open(rule, subject string) (*Alert, error) {
	row := s.db.Conn().QueryRow(
		`SELECT id, rule, subject, severity, message, value, threshold, fired_at, resolved_at, snapshot_id
		 FROM alerts WHERE rule = ? AND subject = ? AND resolved_at IS NULL`,
		rule, subject,
	)
	a, err := scanAlert(row)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// OpenAlerts returns all currently firing alerts, newest first.
func (s *Store) OpenAlerts() ([]*Alert, error) {
	return s.query(
		`SELECT id, rule, subject, severity, message, value, threshold, fired_at, resolved_at, snapshot_id
		 FROM alerts WHERE resolved_at IS NULL ORDER BY fired_at DESC`)
}

// Recent returns the most recent alerts (open and resolved), newest
// first, capped at limit.
func (s *Store) Recent(limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(
		`SELECT id, rule, subject, severity, message, value, threshold, fired_at, resolved_at, snapshot_id
		 FROM alerts ORDER BY fired_at DESC LIMIT ?`, limit)
}

func (s *Store) query(q string, args ...any) ([]*Alert, error) {
	rows, err := s.db.Conn().Query(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying alerts")
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterating alerts")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	var firedAt int64
	var resolvedAt sql.NullInt64
	var snapshotID sql.NullString
	err := row.Scan(&a.ID, &a.Rule, &a.Subject, &a.Severity, &a.Message,
		&a.Value, &a.Threshold, &firedAt, &resolvedAt, &snapshotID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scanning alert")
	}
	a.FiredAt = time.Unix(firedAt, 0).UTC()
	if resolvedAt.Valid {
		t := time.Unix(resolvedAt.Int64, 0).UTC()
		a.ResolvedAt = &t
	}
	a.SnapshotID = snapshotID.String
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
