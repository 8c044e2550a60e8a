package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlcustomizer/syndicator/internal/database/migrations"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_AppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	var tables []string
	err := db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('feeds', 'customers', 'customer_selections') ORDER BY name`)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_selections", "customers", "feeds"}, tables)

	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)

	files, err := migrations.LoadMigrations(migrations.Files)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	require.NoError(t, migrations.RunMigrations(db.DB.DB, files))

	var applied int
	require.NoError(t, db.Get(&applied, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, len(files), applied)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO feeds (name, url) VALUES ('a', 'http://a')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM feeds"))
	assert.Zero(t, count)
}
