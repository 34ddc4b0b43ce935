package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
)

func TestBuildRunRequest(t *testing.T) {
	req, err := buildRunRequest("backfill", []string{"CA"}, "2024-03-01", "2024-03-31", "")
	require.NoError(t, err)
	assert.Equal(t, analysis.ModeBackfill, req.Mode)
	assert.Equal(t, 31, req.Range.Days())

	_, err = buildRunRequest("backfill", nil, "2024-03-31", "2024-03-01", "")
	assert.Error(t, err)

	req, err = buildRunRequest("", nil, "", "", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, analysis.ModeIncremental, req.Mode)
	assert.Equal(t, "2024-05-10", req.Range.End.String())
	assert.True(t, req.Range.Start.IsZero())

	_, err = buildRunRequest("weekly", nil, "", "", "")
	assert.Error(t, err)
}

func TestMigrateAndImportCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "trailbloom.yaml")
	dbPath := filepath.Join(dir, "trailbloom.db")
	require.NoError(t, os.WriteFile(cfgPath, []byte("db:\n  dsn: "+dbPath+"\nregions:\n  - code: CA\n    place_id: 14\n"), 0o600))

	trails := filepath.Join(dir, "trails.geojson")
	require.NoError(t, os.WriteFile(trails, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"Ridge"},"geometry":{"type":"LineString","coordinates":[[-122,37],[-121.99,37]]}}
	]}`), 0o600))

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := rootCommand()
		cmd.SetOut(&out)
		cmd.SetArgs(append(args, "--config", cfgPath, "--log-level", "error"))
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	assert.Contains(t, run("migrate"), "applied 3 migration(s)")
	assert.Contains(t, run("migrate"), "applied 0 migration(s)")
	assert.Contains(t, run("import-trails", "--region", "ca", "--file", trails), `"trails": 1`)
	assert.Contains(t, run("refresh", "--mode", "backfill", "--from", "2024-05-01", "--to", "2024-05-31"), `"status": "success"`)
}
