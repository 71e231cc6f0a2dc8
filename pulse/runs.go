package pulse

import (
	"database/sql"
	"time"

	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/errors"
)

// Run is one collection attempt.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	OK         bool       `json:"ok"`
	SnapshotID string     `json:"snapshot_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunStore persists the pulse run log.
type RunStore struct {
	db *db.DB
}

// NewRunStore wraps the database for run logging.
func NewRunStore(d *db.DB) *RunStore {
	return &RunStore{db: d}
}

// Begin records the start of a run.
func (s *RunStore) Begin(id string, at time.Time) error {
	_, err := s.db.Conn().Exec(
		"INSERT INTO pulse_runs (id, started_at, ok) VALUES (?, ?, 0)",
		id, at.Unix(),
	)
	return errors.Wrapf(err, "recording run start %s", id)
}

// Finish records the outcome of a run. snapshotID and errMsg may be
// empty.
func (s *RunStore) Finish(id string, at time.Time, ok bool, snapshotID, errMsg string) error {
	_, err := s.db.Conn().Exec(
		"UPDATE pulse_runs SET finished_at = ?, ok = ?, snapshot_id = NULLIF(?, ''), error = NULLIF(?, '') WHERE id = ?",
		at.Unix(), boolInt(ok), snapshotID, errMsg, id,
	)
	return errors.Wrapf(err, "recording run outcome %s", id)
}

// FailureStreak counts consecutive failed runs, newest backward,
// stopping at the first success. Unfinished runs are skipped.
func (s *RunStore) FailureStreak() (int, error) {
	rows, err := s.db.Conn().Query(
		"SELECT ok FROM pulse_runs WHERE finished_at IS NOT NULL ORDER BY started_at DESC, id DESC LIMIT 100")
	if err != nil {
		return 0, errors.Wrap(err, "querying run outcomes")
	}
	defer rows.Close()

	streak := 0
	for rows.Next() {
		var ok int
		if err := rows.Scan(&ok); err != nil {
			return 0, errors.Wrap(err, "scanning run outcome")
		}
		if ok != 0 {
			break
		}
		streak++
	}
	return streak, errors.Wrap(rows.Err(), "iterating run outcomes")
}

// Recent returns the latest runs, newest first.
func (s *RunStore) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Conn().Query(
		`SELECT id, started_at, finished_at, ok, snapshot_id, error
		 FROM pulse_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var r Run
		var startedAt int64
		var finishedAt sql.NullInt64
		var ok int
		var snapID, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &ok, &snapID, &errMsg); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0).UTC()
			r.FinishedAt = &t
		}
		r.OK = ok != 0
		r.SnapshotID = snapID.String
		r.Error = errMsg.String
		out = append(out, &r)
	}
	return out, errors.Wrap(rows.Err(), "iterating runs")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
