package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmr-b5/powerwatch/pkg/storage"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_GetStatus_Empty(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetStatus(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_SetStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)

	rec, err := db.SetStatus(ctx, "down", at)
	require.NoError(t, err)
	assert.False(t, rec.IsOn)
	assert.Equal(t, at.Truncate(time.Millisecond), rec.LastUpdated)

	got, err := db.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, *rec, *got)
}

func TestSQLite_SetStatus_Overwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.SetStatus(ctx, "down", first)
	require.NoError(t, err)
	_, err = db.SetStatus(ctx, "up", first.Add(5*time.Minute))
	require.NoError(t, err)

	got, err := db.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "up", got.Status)
	assert.True(t, got.IsOn)
	assert.Equal(t, first.Add(5*time.Minute), got.LastUpdated)
}

func TestSQLite_SetStatus_ConvertsToUTC(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	wib := time.FixedZone("WIB", 7*60*60)

	_, err := db.SetStatus(ctx, "up", time.Date(2024, 1, 1, 7, 0, 0, 0, wib))
	require.NoError(t, err)

	got, err := db.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got.LastUpdated)
}

func TestSQLite_MigrationIdempotency(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db1, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	_, err = db1.SetStatus(context.Background(), "up", time.Now())
	require.NoError(t, err)
	db1.Close()

	db2, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "up", got.Status)
}
