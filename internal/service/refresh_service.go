package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
)

// ErrRefreshInProgress is returned when a run is requested while another is active
var ErrRefreshInProgress = errors.New("refresh already in progress")

// RefreshService runs refreshes and keeps the read cache coherent
type RefreshService struct {
	runner *analysis.Runner
	counts *TrailCountService
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	last    *analysis.RunResult
}

// NewRefreshService creates a new refresh service. counts may be nil when
// nothing is cached, e.g. in the CLI.
func NewRefreshService(runner *analysis.Runner, counts *TrailCountService, logger *slog.Logger) *RefreshService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RefreshService{
		runner: runner,
		counts: counts,
		logger: logger.With("component", "refresh_service"),
	}
	runner.OnRegionDone = s.regionDone
	return s
}

func (s *RefreshService) regionDone(out analysis.RegionOutcome) {
	if s.counts == nil || !out.OK() {
		return
	}
	dropped := s.counts.InvalidateRegion(out.Region)
	s.logger.Debug("Invalidated cached trail counts", "region", out.Region, "entries", dropped)
}

// Run executes one multi-region run. Only one run is active at a time.
func (s *RefreshService) Run(ctx context.Context, req analysis.RunRequest) (*analysis.RunResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRefreshInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result, err := s.runner.RunAll(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
	return result, nil
}

// LastRun returns the most recent completed run, if any
func (s *RefreshService) LastRun() *analysis.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
