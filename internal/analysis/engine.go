package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a region refresh treats the window
type Mode string

const (
	// ModeBackfill upserts over an arbitrary historical range and never deletes
	ModeBackfill Mode = "backfill"
	// ModeIncremental is the daily run: upsert plus single-day eviction
	ModeIncremental Mode = "incremental"
)

// ParseMode parses a mode name, case-insensitively
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBackfill, "full":
		return ModeBackfill, nil
	case ModeIncremental, "":
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("invalid refresh mode: %q", s)
	}
}

// Stage is a step of the per-region refresh state machine
type Stage int

const (
	StageIdle Stage = iota
	StageLoadingTrails
	StageLoadingObservations
	StageIndexing
	StageJoining
	StageAggregating
	StageEvicting
	StageWriting
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:                "idle",
	StageLoadingTrails:       "loading_trails",
	StageLoadingObservations: "loading_observations",
	StageIndexing:            "indexing",
	StageJoining:             "joining",
	StageAggregating:         "aggregating",
	StageEvicting:            "evicting",
	StageWriting:             "writing",
	StageDone:                "done",
	StageFailed:              "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText encodes the stage by name
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether the stage ends a region run
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Recorder receives pipeline measurements
type Recorder interface {
	RecordStage(region string, stage Stage, elapsed time.Duration)
	RecordOutcome(outcome RegionOutcome)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(string, Stage, time.Duration) {}
func (nopRecorder) RecordOutcome(RegionOutcome)              {}
