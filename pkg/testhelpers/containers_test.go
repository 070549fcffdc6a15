//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_FixtureSchema(t *testing.T) {
	testDB := GetTestDB(t)

	var tableCount int
	err := testDB.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public'").
		Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}

	if tableCount != 3 {
		t.Errorf("expected 3 tables in fixture schema, got %d", tableCount)
	}
}
