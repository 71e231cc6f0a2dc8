package snapshot

import (
	"database/sql"
	"math/big"
	"time"

	"github.com/lamassu-labs/mentowatch/db"
	"github.com/lamassu-labs/mentowatch/errors"
)

// Store persists snapshots to SQLite.
type Store struct {
	db *db.DB
}

// NewStore wraps the database for snapshot persistence.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Save writes the snapshot and all its detail rows in one transaction.
func (s *Store) Save(snap *Snapshot) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return errors.Wrap(err, "beginning snapshot transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO snapshots (id, taken_at, block_number, total_supply_usd, reserve_value_usd, reserve_ratio, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.TakenAt.Unix(), snap.BlockNumber,
		snap.TotalSupplyUSD, snap.ReserveValueUSD, snap.ReserveRatio,
		snap.Duration.Milliseconds(),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting snapshot %s", snap.ID)
	}

	for _, t := range snap.Tokens {
		_, err = tx.Exec(
			`INSERT INTO token_snapshots (snapshot_id, symbol, address, total_supply, decimals, supply, peg_usd, supply_usd)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, t.Symbol, t.Address, t.TotalSupply.String(), t.Decimals, t.Supply, t.PegUSD, t.SupplyUSD,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting token row %s", t.Symbol)
		}
	}

	for _, h := range snap.Reserve {
		_, err = tx.Exec(
			`INSERT INTO reserve_snapshots (snapshot_id, symbol, address, balance_raw, decimals, balance, price_usd, value_usd)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, h.Symbol, h.Address, h.Balance.String(), h.Decimals, h.Amount, h.PriceUSD, h.ValueUSD,
		)
		if err != nil {
			return errors.Wrapf(err, "inserting reserve row %s", h.Symbol)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing snapshot %s", snap.ID)
	}
	return nil
}

// Latest returns the most recent snapshot, or ErrNoSnapshot when the
// database is empty.
func (s *Store) Latest() (*Snapshot, error) {
	row := s.db.Conn().QueryRow(
		`SELECT id, taken_at, block_number, total_supply_usd, reserve_value_usd, reserve_ratio, duration_ms
		 FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Get returns the snapshot with the given ID including detail rows.
func (s *Store) Get(id string) (*Snapshot, error) {
	row := s.db.Conn().QueryRow(
		`SELECT id, taken_at, block_number, total_supply_usd, reserve_value_usd, reserve_ratio, duration_ms
		 FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// History returns snapshot headers (no detail rows) newest first, taken
// at or after since, capped at limit.
func (s *Store) History(since time.Time, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Conn().Query(
		`SELECT id, taken_at, block_number, total_supply_usd, reserve_value_usd, reserve_ratio, duration_ms
		 FROM snapshots WHERE taken_at >= ? ORDER BY taken_at DESC, id DESC LIMIT ?`,
		since.Unix(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshot history")
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, errors.Wrap(rows.Err(), "iterating snapshot history")
}

// Deltas computes each token's supply change between the latest
// snapshot and the closest snapshot at or before the window start.
// Tokens without a baseline reading are omitted.
func (s *Store) Deltas(window time.Duration) ([]SupplyDelta, error) {
	latest, err := s.Latest()
	if err != nil {
		if errors.Is(err, errors.ErrNoSnapshot) {
			return nil, nil
		}
		return nil, err
	}

	cutoff := latest.TakenAt.Add(-window)
	var baseID string
	var baseAt int64
	err = s.db.Conn().QueryRow(
		`SELECT id, taken_at FROM snapshots WHERE taken_at <= ? ORDER BY taken_at DESC, id DESC LIMIT 1`,
		cutoff.Unix(),
	).Scan(&baseID, &baseAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding baseline snapshot")
	}

	baseline := map[string]float64{}
	rows, err := s.db.Conn().Query(
		`SELECT symbol, supply FROM token_snapshots WHERE snapshot_id = ?`, baseID)
	if err != nil {
		return nil, errors.Wrap(err, "reading baseline supplies")
	}
	defer rows.Close()
	for rows.Next() {
		var sym string
		var supply float64
		if err := rows.Scan(&sym, &supply); err != nil {
			return nil, errors.Wrap(err, "scanning baseline supply")
		}
		baseline[sym] = supply
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating baseline supplies")
	}

	var deltas []SupplyDelta
	from := time.Unix(baseAt, 0).UTC()
	for _, t := range latest.Tokens {
		base, ok := baseline[t.Symbol]
		if !ok || base == 0 {
			continue
		}
		deltas = append(deltas, SupplyDelta{
			Symbol:     t.Symbol,
			From:       from,
			To:         latest.TakenAt,
			FromSupply: base,
			ToSupply:   t.Supply,
			Percent:    (t.Supply - base) / base * 100,
		})
	}
	return deltas, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var takenAt int64
	var durationMS int64
	err := row.Scan(&snap.ID, &takenAt, &snap.BlockNumber,
		&snap.TotalSupplyUSD, &snap.ReserveValueUSD, &snap.ReserveRatio, &durationMS)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrap(err, "scanning snapshot")
	}
	snap.TakenAt = time.Unix(takenAt, 0).UTC()
	snap.Duration = time.Duration(durationMS) * time.Millisecond
	return &snap, nil
}

func (s *Store) loadDetails(snap *Snapshot) error {
	rows, err := s.db.Conn().Query(
		`SELECT symbol, address, total_supply, decimals, supply, peg_usd, supply_usd
		 FROM token_snapshots WHERE snapshot_id = ? ORDER BY symbol`, snap.ID)
	if err != nil {
		return errors.Wrap(err, "querying token rows")
	}
	defer rows.Close()
	for rows.Next() {
		var t TokenSupply
		var raw string
		if err := rows.Scan(&t.Symbol, &t.Address, &raw, &t.Decimals, &t.Supply, &t.PegUSD, &t.SupplyUSD); err != nil {
			return errors.Wrap(err, "scanning token row")
		}
		t.TotalSupply, _ = new(big.Int).SetString(raw, 10)
		snap.Tokens = append(snap.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterating token rows")
	}

	rrows, err := s.db.Conn().Query(
		`SELECT symbol, address, balance_raw, decimals, balance, price_usd, value_usd
		 FROM reserve_snapshots WHERE snapshot_id = ? ORDER BY symbol`, snap.ID)
	if err != nil {
		return errors.Wrap(err, "querying reserve rows")
	}
	defer rrows.Close()
	for rrows.Next() {
		var h ReserveHolding
		var raw string
		if err := rrows.Scan(&h.Symbol, &h.Address, &raw, &h.Decimals, &h.Amount, &h.PriceUSD, &h.ValueUSD); err != nil {
			return errors.Wrap(err, "scanning reserve row")
		}
		h.Balance, _ = new(big.Int).SetString(raw, 10)
		snap.Reserve = append(snap.Reserve, h)
	}
	return errors.Wrap(rrows.Err(), "iterating reserve rows")
}
