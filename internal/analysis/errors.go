package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegion is returned before any I/O for region codes outside the configured set
	ErrInvalidRegion = errors.New("invalid region")
	// ErrInvalidRange is returned for missing or inverted date ranges
	ErrInvalidRange = errors.New("invalid date range")
	// ErrNoRegions is returned when a run has nothing to do
	ErrNoRegions = errors.New("no regions to refresh")
)

// StageError is a failure that aborted one region's run
type StageError struct {
	Region string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("region %s: %s: %v", e.Region, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageError(region string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Region: region, Stage: stage, Err: err}
}
