package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":            ModeIncremental,
		"incremental": ModeIncremental,
		"Backfill":    ModeBackfill,
		" full ":      ModeBackfill,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("weekly")
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	assert.Equal(t, "loading_observations", StageLoadingObservations.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageWriting.Terminal())
}

func TestWindow(t *testing.T) {
	run := models.MustParseDate("2024-03-02")

	w := Window(run, 7)
	assert.Equal(t, "2024-02-24", w.Start.String())
	assert.Equal(t, "2024-03-02", w.End.String())
	assert.Equal(t, 8, w.Days())

	assert.Equal(t, "2024-02-23", EvictionDay(run, 7).String())
	assert.False(t, w.Contains(EvictionDay(run, 7)))
}

func TestStageError(t *testing.T) {
	err := stageError("CA", StageWriting, errBoom)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "region CA: writing: boom", err.Error())

	assert.Same(t, err, stageError("OR", StageEvicting, err))
	assert.Nil(t, stageError("CA", StageWriting, nil))
}
