package analysis

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

// DefaultConcurrency is how many regions refresh at once
const DefaultConcurrency = 4

// RunStatus summarizes a multi-region run
type RunStatus string

const (
	RunSuccess        RunStatus = "success"
	RunPartialSuccess RunStatus = "partial_success"
	RunFailure        RunStatus = "failure"
)

// RunRequest asks for a set of regions to be refreshed. An empty region list
// means every configured region.
type RunRequest struct {
	Regions []string
	Mode    Mode
	Range   models.DateRange
	RunAt   time.Time
}

// RunResult collects per-region outcomes of one run
type RunResult struct {
	RunID      uuid.UUID                `json:"run_id"`
	Mode       Mode                     `json:"mode"`
	Status     RunStatus                `json:"status"`
	Outcomes   map[string]RegionOutcome `json:"outcomes"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}

// FailedRegions returns the regions that did not finish, sorted
func (r RunResult) FailedRegions() []string {
	var failed []string
	for region, out := range r.Outcomes {
		if !out.OK() {
			failed = append(failed, region)
		}
	}
	sort.Strings(failed)
	return failed
}

// Runner refreshes many regions with bounded concurrency
type Runner struct {
	controller  *Controller
	concurrency int
	logger      *slog.Logger

	// OnRegionDone, if set, is called once per region as soon as it finishes
	OnRegionDone func(RegionOutcome)
}

// NewRunner creates a runner around a controller
func NewRunner(controller *Controller, concurrency int, logger *slog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		controller:  controller,
		concurrency: concurrency,
		logger:      logger.With("component", "runner"),
	}
}

// RunAll refreshes every requested region. One region failing never stops
// the others; the returned error is only for runs that cannot start.
func (r *Runner) RunAll(ctx context.Context, req RunRequest) (*RunResult, error) {
	regions := dedupeRegions(req.Regions)
	if len(regions) == 0 {
		regions = r.controller.Regions()
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}

	runAt := req.RunAt
	if runAt.IsZero() {
		runAt = r.controller.now()
	}

	result := &RunResult{
		RunID:     uuid.New(),
		Mode:      req.Mode,
		Outcomes:  make(map[string]RegionOutcome, len(regions)),
		StartedAt: runAt,
	}
	log := r.logger.With("run_id", result.RunID.String(), "mode", string(req.Mode))
	log.Info("Starting refresh run", "regions", len(regions), "concurrency", r.concurrency)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, region := range regions {
		g.Go(func() error {
			out := r.controller.Refresh(ctx, RefreshRequest{
				Region: region,
				Mode:   req.Mode,
				Range:  req.Range,
				RunAt:  runAt,
			})
			mu.Lock()
			result.Outcomes[region] = out
			mu.Unlock()
			if r.OnRegionDone != nil {
				r.OnRegionDone(out)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = r.controller.now()
	result.Status = summarize(result.Outcomes)

	log.Info("Refresh run finished",
		"status", string(result.Status),
		"failed", result.FailedRegions(),
		"elapsed", result.FinishedAt.Sub(result.StartedAt).String())
	return result, nil
}

func summarize(outcomes map[string]RegionOutcome) RunStatus {
	failed := 0
	for _, out := range outcomes {
		if !out.OK() {
			failed++
		}
	}
	switch {
	case failed == 0:
		return RunSuccess
	case failed == len(outcomes):
		return RunFailure
	default:
		return RunPartialSuccess
	}
}

func dedupeRegions(regions []string) []string {
	seen := make(map[string]bool, len(regions))
	var out []string
	for _, r := range regions {
		code := NormalizeRegion(r)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
