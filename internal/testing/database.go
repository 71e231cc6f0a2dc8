// Package mwtest holds shared test helpers.
package mwtest

import (
	"testing"

	"github.com/lamassu-labs/mentowatch/db"
)

// CreateTestDB opens a migrated in-memory database that is closed when
// the test finishes.
func CreateTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}
