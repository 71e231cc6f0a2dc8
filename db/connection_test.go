package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemoryMigrates(t *testing.T) {
	d, err := OpenInMemory()
	require.NoError(t, err)
	defer d.Close()

	var n int
	err = d.Conn().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)

	for _, table := range []string{"snapshots", "token_snapshots", "reserve_snapshots", "alerts", "pulse_runs"} {
		var count int
		err := d.Conn().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenInMemory()
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Migrate())
	require.NoError(t, d.Migrate())
}

func TestCollectStatsEmpty(t *testing.T) {
	d, err := OpenInMemory()
	require.NoError(t, err)
	defer d.Close()

	stats, err := d.CollectStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Snapshots)
	assert.Zero(t, stats.OpenAlerts)
	assert.Nil(t, stats.OldestSnapshot)
	assert.Nil(t, stats.NewestSnapshot)
}

func TestPruneRemovesOldSnapshots(t *testing.T) {
	d, err := OpenInMemory()
	require.NoError(t, err)
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).Unix()
	recent := time.Now().Unix()
	_, err = d.Conn().Exec(
		"INSERT INTO snapshots (id, taken_at, block_number) VALUES (?, ?, 100), (?, ?, 200)",
		"snap-old", old, "snap-new", recent,
	)
	require.NoError(t, err)
	_, err = d.Conn().Exec(
		"INSERT INTO token_snapshots (snapshot_id, symbol, address, total_supply, decimals, supply, peg_usd, supply_usd) VALUES (?, 'cUSD', '0x0', '1', 18, 0, 1, 0)",
		"snap-old",
	)
	require.NoError(t, err)

	n, err := d.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Cascade removed the detail row too.
	var tokenRows int
	require.NoError(t, d.Conn().QueryRow("SELECT COUNT(*) FROM token_snapshots").Scan(&tokenRows))
	assert.Zero(t, tokenRows)

	stats, err := d.CollectStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Snapshots)
}
