package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/sym"
)

// DB wraps the SQLite connection used by all mentowatch storage.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at path and
// runs any pending migrations. WAL mode keeps the pulse daemon's writes
// from blocking dashboard reads.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating database directory for %s", path)
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database %s", path)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under the busy timeout.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "pinging database %s", path)
	}

	db := &DB{conn: conn, path: path}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debugw(sym.DB+" database ready", logger.FieldPath, path)
	return db, nil
}

// OpenInMemory opens a fresh in-memory database, used by tests.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory database")
	}
	conn.SetMaxOpenConns(1)
	db := &DB{conn: conn, path: ":memory:"}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// WrapConn wraps an existing connection without running migrations.
// Tests use it to inject sqlmock connections.
func WrapConn(conn *sql.DB, path string) *DB {
	return &DB{conn: conn, path: path}
}

// Conn exposes the underlying connection for the storage packages.
func (d *DB) Conn() *sql.DB { return d.conn }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Stats summarizes the database contents for `mentowatch db stats`.
type Stats struct {
	Path             string
	SizeBytes        int64
	Snapshots        int64
	TokenSnapshots   int64
	ReserveSnapshots int64
	Alerts           int64
	OpenAlerts       int64
	PulseRuns        int64
	OldestSnapshot   *time.Time
	NewestSnapshot   *time.Time
}

// CollectStats gathers row counts and file size.
func (d *DB) CollectStats() (*Stats, error) {
	s := &Stats{Path: d.path}

	if fi, err := os.Stat(d.path); err == nil {
		s.SizeBytes = fi.Size()
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM snapshots", &s.Snapshots},
		{"SELECT COUNT(*) FROM token_snapshots", &s.TokenSnapshots},
		{"SELECT COUNT(*) FROM reserve_snapshots", &s.ReserveSnapshots},
		{"SELECT COUNT(*) FROM alerts", &s.Alerts},
		{"SELECT COUNT(*) FROM alerts WHERE resolved_at IS NULL", &s.OpenAlerts},
		{"SELECT COUNT(*) FROM pulse_runs", &s.PulseRuns},
	}
	for _, c := range counts {
		if err := d.conn.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, errors.Wrapf(err, "counting rows: %s", c.query)
		}
	}

	var oldest, newest sql.NullInt64
	err := d.conn.QueryRow("SELECT MIN(taken_at), MAX(taken_at) FROM snapshots").Scan(&oldest, &newest)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot time range")
	}
	if oldest.Valid {
		t := time.Unix(oldest.Int64, 0).UTC()
		s.OldestSnapshot = &t
	}
	if newest.Valid {
		t := time.Unix(newest.Int64, 0).UTC()
		s.NewestSnapshot = &t
	}

	return s, nil
}

// Prune deletes snapshots (and their token/reserve rows via cascade)
// older than the retention window. Returns the number of snapshots
// removed.
func (d *DB) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := d.conn.Exec("DELETE FROM snapshots WHERE taken_at < ?", cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "pruning old snapshots")
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Infow(sym.DB+" pruned old snapshots", logger.FieldCount, n)
	}
	return n, nil
}
