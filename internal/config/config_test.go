package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trailbloom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
db:
  driver: SQLite
  dsn: ":memory:"
regions:
  - code: ca
    place_id: 14
  - code: OR
    place_id: 10
refresh:
  write_batch_size: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 7, cfg.Refresh.WindowDays)
	assert.Equal(t, 0.01, cfg.Refresh.CellSizeDeg)
	assert.Equal(t, 50.0, cfg.Refresh.BufferMeters)
	assert.Equal(t, 250, cfg.Refresh.WriteBatchSize)
	assert.Equal(t, 1000, cfg.Refresh.DeletePageSize)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"CA", "OR"}, cfg.RegionCodes())

	region, ok := cfg.Region("ca")
	require.True(t, ok)
	assert.Equal(t, int64(14), region.PlaceID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRAILBLOOM_REFRESH_WINDOW_DAYS", "14")
	t.Setenv("TRAILBLOOM_DB_DSN", "file:test.db")
	t.Setenv("TRAILBLOOM_REGION_CODES", "wa:46, id")

	cfg, err := Load(writeConfig(t, "port: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, 14, cfg.Refresh.WindowDays)
	assert.Equal(t, "file:test.db", cfg.DB.DSN)
	require.Len(t, cfg.Regions, 2)
	assert.Equal(t, Region{Code: "WA", PlaceID: 46}, cfg.Regions[0])
	assert.Equal(t, Region{Code: "ID"}, cfg.Regions[1])
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		DB:       DBConfig{Driver: "mysql"},
		Refresh:  RefreshConfig{WindowDays: 0, CellSizeDeg: 2, BufferMeters: 50, ReadPageSize: 1, TrailChunkPageSize: 1, WriteBatchSize: 1, DeletePageSize: 1, Concurrency: 1},
		Provider: ProviderConfig{PerPage: 1, MaxPages: 1},
		Regions:  []Region{{Code: "CA"}, {Code: "CA"}},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"db.driver", "db.dsn", "window_days", "cell_size_deg", "duplicate region CA"} {
		assert.Contains(t, err.Error(), want)
	}
}
