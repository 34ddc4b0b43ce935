package database

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, q, Rebind(SQLite, q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", Rebind(Postgres, q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", Placeholders(0))
	assert.Equal(t, "?", Placeholders(1))
	assert.Equal(t, "?, ?, ?", Placeholders(3))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestMigrate_EmbeddedIsIdempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	n, err := NewMigrationManager(db).RunMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = NewMigrationManager(db).RunMigrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, table := range []string{"trail_chunks", "observations", "trail_observation_counts"} {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count), table)
	}
}

func TestLoadMigrations_SortsAndSkipsInvalid(t *testing.T) {
	source := fstest.MapFS{
		"m/010_later.sql":  {Data: []byte("SELECT 1;")},
		"m/002_first.sql":  {Data: []byte("SELECT 2;")},
		"m/readme.md":      {Data: []byte("notes")},
		"m/oops_named.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigrationManagerFS(openMemory(t), source, "m").LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "002_first", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	_, err := db.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY)")
	require.NoError(t, err)

	err = db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO kv (k) VALUES ('a')"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Zero(t, count)
}
