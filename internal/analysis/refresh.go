package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/spatial"
)

// Options tunes the refresh pipeline. Zero values fall back to defaults.
type Options struct {
	WindowDays         int
	CellSize           float64 // degrees
	BufferMeters       float64
	ReadPageSize       int
	TrailChunkPageSize int
	WriteBatchSize     int
	DeletePageSize     int
}

func (o Options) withDefaults() Options {
	if o.WindowDays <= 0 {
		o.WindowDays = DefaultWindowDays
	}
	if o.CellSize <= 0 {
		o.CellSize = spatial.DefaultCellSize
	}
	if o.BufferMeters <= 0 {
		o.BufferMeters = spatial.DefaultBufferMeters
	}
	if o.ReadPageSize <= 0 {
		o.ReadPageSize = DefaultReadPageSize
	}
	if o.TrailChunkPageSize <= 0 {
		o.TrailChunkPageSize = DefaultTrailChunkPageSize
	}
	if o.WriteBatchSize <= 0 {
		o.WriteBatchSize = DefaultWriteBatchSize
	}
	if o.DeletePageSize <= 0 {
		o.DeletePageSize = DefaultDeletePageSize
	}
	return o
}

// RefreshRequest asks for one region to be refreshed.
//
// For ModeBackfill, Range is required. For ModeIncremental the window is
// derived from the run date: Range.End when set, otherwise the date of RunAt.
type RefreshRequest struct {
	Region string
	Mode   Mode
	Range  models.DateRange
	RunAt  time.Time
}

// RegionOutcome is the result of one region's run
type RegionOutcome struct {
	Region             string
	Mode               Mode
	Range              models.DateRange
	Stage              Stage // StageDone or StageFailed
	FailedAt           Stage // stage that failed, StageIdle on success
	TrailsLoaded       int
	ObservationsLoaded int
	TrailPages         int
	ObservationPages   int
	RowsUpserted       int
	RowsEvicted        int
	DegradedTrails     int
	Duration           time.Duration
	Err                error
}

// OK reports whether the region finished without error
func (o RegionOutcome) OK() bool { return o.Err == nil && o.Stage == StageDone }

// MarshalJSON renders the outcome with the error as text
func (o RegionOutcome) MarshalJSON() ([]byte, error) {
	type view struct {
		Region             string           `json:"region"`
		Mode               Mode             `json:"mode"`
		Range              models.DateRange `json:"range"`
		Stage              Stage            `json:"stage"`
		FailedAt           *Stage           `json:"failed_at,omitempty"`
		TrailsLoaded       int              `json:"trails_loaded"`
		ObservationsLoaded int              `json:"observations_loaded"`
		RowsUpserted       int              `json:"rows_upserted"`
		RowsEvicted        int              `json:"rows_evicted"`
		DegradedTrails     int              `json:"degraded_trails"`
		DurationMS         int64            `json:"duration_ms"`
		Error              string           `json:"error,omitempty"`
	}
	v := view{
		Region:             o.Region,
		Mode:               o.Mode,
		Range:              o.Range,
		Stage:              o.Stage,
		TrailsLoaded:       o.TrailsLoaded,
		ObservationsLoaded: o.ObservationsLoaded,
		RowsUpserted:       o.RowsUpserted,
		RowsEvicted:        o.RowsEvicted,
		DegradedTrails:     o.DegradedTrails,
		DurationMS:         o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		failedAt := o.FailedAt
		v.FailedAt = &failedAt
		v.Error = o.Err.Error()
	}
	return json.Marshal(v)
}

// Controller runs the windowed refresh for one region at a time. It holds no
// per-run state, so one instance may serve concurrent regions.
type Controller struct {
	store    Store
	regions  map[string]bool
	order    []string
	opts     Options
	buffer   spatial.BufferBuilder
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewController creates a controller for a fixed region set
func NewController(store Store, regions []string, opts Options, logger *slog.Logger) *Controller {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		store:    store,
		regions:  make(map[string]bool, len(regions)),
		opts:     opts,
		buffer:   spatial.NewBufferBuilder(opts.BufferMeters),
		logger:   logger.With("component", "refresh"),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, r := range regions {
		code := NormalizeRegion(r)
		if code == "" || c.regions[code] {
			continue
		}
		c.regions[code] = true
		c.order = append(c.order, code)
	}
	return c
}

// WithRecorder attaches a metrics recorder
func (c *Controller) WithRecorder(r Recorder) *Controller {
	if r != nil {
		c.recorder = r
	}
	return c
}

// WithClock overrides the time source
func (c *Controller) WithClock(now func() time.Time) *Controller {
	if now != nil {
		c.now = now
	}
	return c
}

// Regions returns the configured region codes in configuration order
func (c *Controller) Regions() []string {
	return append([]string(nil), c.order...)
}

// Options returns the effective options
func (c *Controller) Options() Options { return c.opts }

// NormalizeRegion canonicalizes a region code
func NormalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// resolve validates the request and fills in the effective region, range
// and run time. It performs no I/O.
func (c *Controller) resolve(req RefreshRequest) (RefreshRequest, models.Date, error) {
	req.Region = NormalizeRegion(req.Region)
	if !c.regions[req.Region] {
		return req, models.Date{}, fmt.Errorf("%w: %q", ErrInvalidRegion, req.Region)
	}
	if req.RunAt.IsZero() {
		req.RunAt = c.now()
	}

	switch req.Mode {
	case ModeBackfill:
		if err := req.Range.Validate(); err != nil {
			return req, models.Date{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		return req, models.Date{}, nil
	case ModeIncremental:
		runDate := req.Range.End
		if runDate.IsZero() {
			runDate = models.DateOf(req.RunAt.UTC())
		}
		req.Range = Window(runDate, c.opts.WindowDays)
		return req, runDate, nil
	default:
		return req, models.Date{}, fmt.Errorf("invalid refresh mode: %q", req.Mode)
	}
}

// Refresh runs the full pipeline for one region. Failures are reported in
// the outcome; a failed region never affects other regions.
func (c *Controller) Refresh(ctx context.Context, req RefreshRequest) RegionOutcome {
	started := c.now()
	out := RegionOutcome{Region: NormalizeRegion(req.Region), Mode: req.Mode, Stage: StageIdle}

	req, runDate, err := c.resolve(req)
	out.Range = req.Range
	if err != nil {
		return c.finish(out, started, StageIdle, err)
	}

	region := req.Region
	log := c.logger.With("region", region, "mode", string(req.Mode), "range", req.Range.String())
	log.Info("Starting region refresh")

	// Loading: trails and observations in parallel, both must finish before indexing.
	var (
		trails       []models.Trail
		observations []models.Observation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t0 := time.Now()
		log.Debug("Entering stage", "stage", StageLoadingTrails.String())
		chunks, pages, err := c.loadTrailChunks(gctx, region)
		out.TrailPages = pages
		if err != nil {
			return stageError(region, StageLoadingTrails, err)
		}
		trails = namedTrails(log, models.MergeTrailChunks(chunks))
		c.recorder.RecordStage(region, StageLoadingTrails, time.Since(t0))
		log.Info("Loaded trails", "chunks", len(chunks), "trails", len(trails), "pages", pages)
		return nil
	})
	g.Go(func() error {
		t0 := time.Now()
		log.Debug("Entering stage", "stage", StageLoadingObservations.String())
		obs, pages, err := c.loadObservations(gctx, region, req.Range)
		out.ObservationPages = pages
		if err != nil {
			return stageError(region, StageLoadingObservations, err)
		}
		observations = obs
		c.recorder.RecordStage(region, StageLoadingObservations, time.Since(t0))
		log.Info("Loaded observations", "observations", len(obs), "pages", pages)
		return nil
	})
	if err := g.Wait(); err != nil {
		return c.finish(out, started, stageOf(err, StageLoadingTrails), err)
	}
	out.TrailsLoaded = len(trails)
	out.ObservationsLoaded = len(observations)

	// Indexing
	t0 := time.Now()
	idx := spatial.NewGridIndex(observations, observationPoint, c.opts.CellSize)
	c.recorder.RecordStage(region, StageIndexing, time.Since(t0))
	log.Debug("Built spatial index", "cells", idx.CellCount(), "indexed", idx.Len(), "skipped", idx.Skipped())

	// Joining
	t0 = time.Now()
	matches, diagnostics := c.joinTrails(log, trails, idx)
	c.recorder.RecordStage(region, StageJoining, time.Since(t0))

	// Aggregating
	t0 = time.Now()
	stamp := c.rowTimestamp(req)
	rows := make([]models.TrailObservationCount, 0, len(trails))
	for i, trail := range trails {
		row := AggregateTrail(region, trail.Name, matches[i], stamp)
		if diagnostics[i] != "" {
			row.BufferFailed = true
			row.Diagnostic = diagnostics[i]
			out.DegradedTrails++
		}
		rows = append(rows, row)
	}
	c.recorder.RecordStage(region, StageAggregating, time.Since(t0))

	// Evicting
	if req.Mode == ModeIncremental {
		t0 = time.Now()
		day := EvictionDay(runDate, c.opts.WindowDays)
		evicted, err := c.evict(ctx, region, day)
		out.RowsEvicted = evicted
		if err != nil {
			return c.finish(out, started, StageEvicting, stageError(region, StageEvicting, err))
		}
		c.recorder.RecordStage(region, StageEvicting, time.Since(t0))
		log.Info("Evicted observations outside window", "day", day.String(), "deleted", evicted)
	}

	// Writing
	t0 = time.Now()
	written, err := InBatches(rows, c.opts.WriteBatchSize, func(batch []models.TrailObservationCount) error {
		return c.store.UpsertTrailCounts(ctx, batch)
	})
	out.RowsUpserted = written
	if err != nil {
		return c.finish(out, started, StageWriting, stageError(region, StageWriting, err))
	}
	c.recorder.RecordStage(region, StageWriting, time.Since(t0))

	log.Info("Region refresh completed",
		"trails", out.TrailsLoaded,
		"observations", out.ObservationsLoaded,
		"upserted", out.RowsUpserted,
		"degraded", out.DegradedTrails)
	return c.finish(out, started, StageDone, nil)
}

func (c *Controller) finish(out RegionOutcome, started time.Time, stage Stage, err error) RegionOutcome {
	out.Duration = c.now().Sub(started)
	if err != nil {
		out.Stage = StageFailed
		out.FailedAt = stage
		out.Err = err
		c.logger.Error("Region refresh failed",
			"region", out.Region,
			"mode", string(out.Mode),
			"stage", stage.String(),
			"error", err)
	} else {
		out.Stage = StageDone
	}
	c.recorder.RecordOutcome(out)
	return out
}

// rowTimestamp stamps backfill rows with the end of the range so reruns
// write identical rows; incremental rows carry the run time.
func (c *Controller) rowTimestamp(req RefreshRequest) time.Time {
	if req.Mode == ModeBackfill {
		return req.Range.End.Time()
	}
	return req.RunAt.UTC().Truncate(time.Second)
}

func (c *Controller) loadTrailChunks(ctx context.Context, region string) ([]models.TrailChunk, int, error) {
	size := c.opts.TrailChunkPageSize
	after := -1
	pages := 0

	var all []models.TrailChunk
	for {
		chunks, err := c.store.ListTrailChunks(ctx, region, after, size)
		pages++
		if err != nil {
			return all, pages, fmt.Errorf("failed to fetch trail chunks after %d: %w", after, err)
		}
		all = append(all, chunks...)
		if len(chunks) < size {
			return all, pages, nil
		}
		last := chunks[len(chunks)-1].ChunkIndex
		if last <= after {
			return all, pages, fmt.Errorf("trail chunk paging did not advance past %d", after)
		}
		after = last
	}
}

func (c *Controller) loadObservations(ctx context.Context, region string, dates models.DateRange) ([]models.Observation, int, error) {
	rows, pages, err := collectPages(ctx, c.opts.ReadPageSize, func(ctx context.Context, offset, limit int) ([]models.Observation, error) {
		return c.store.ListObservations(ctx, region, dates, offset, limit)
	})
	if err != nil {
		return nil, pages, err
	}

	// Rows shifting between pages must not count twice.
	seen := make(map[int64]bool, len(rows))
	unique := rows[:0]
	for _, obs := range rows {
		if seen[obs.ID] || !dates.Contains(obs.ObservedOn) {
			continue
		}
		seen[obs.ID] = true
		unique = append(unique, obs)
	}
	if dropped := len(rows) - len(unique); dropped > 0 {
		c.logger.Warn("Dropped duplicate or out-of-window observations", "region", region, "dropped", dropped)
	}
	return unique, pages, nil
}

// joinTrails matches observations to every trail. A trail whose geometry
// cannot be buffered gets no matches and a diagnostic instead of failing
// the region.
func (c *Controller) joinTrails(log *slog.Logger, trails []models.Trail, idx *spatial.GridIndex[models.Observation]) ([][]models.Observation, []string) {
	matches := make([][]models.Observation, len(trails))
	diagnostics := make([]string, len(trails))

	var meters float64
	matched := 0
	for i, trail := range trails {
		buf, err := c.buffer.Build(trail.Geometry)
		if err != nil {
			diagnostics[i] = "buffer failed: " + err.Error()
			log.Warn("Trail geometry could not be buffered", "trail", trail.Name, "error", err)
			continue
		}
		meters += spatial.MultiPathLength(trail.Geometry)
		matches[i] = spatial.Join(idx, buf)
		matched += len(matches[i])
	}
	log.Debug("Joined observations to trails",
		"trails", len(trails),
		"buffered_km", meters/1000,
		"matches", matched)
	return matches, diagnostics
}

func (c *Controller) evict(ctx context.Context, region string, day models.Date) (int, error) {
	total := 0
	for {
		n, err := c.store.DeleteObservationsOn(ctx, region, day, c.opts.DeletePageSize)
		total += n
		if err != nil {
			return total, fmt.Errorf("failed to delete observations on %s: %w", day, err)
		}
		if n < c.opts.DeletePageSize {
			return total, nil
		}
	}
}

func namedTrails(log *slog.Logger, trails []models.Trail) []models.Trail {
	named := trails[:0]
	for _, t := range trails {
		if strings.TrimSpace(t.Name) == "" {
			log.Warn("Skipping trail without a name", "parts", len(t.Geometry))
			continue
		}
		named = append(named, t)
	}
	return named
}

func observationPoint(o models.Observation) orb.Point { return o.Location }

func stageOf(err error, fallback Stage) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return fallback
}
