package inaturalist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

// Default client settings
const (
	DefaultBaseURL  = "https://api.inaturalist.org"
	DefaultPerPage  = 200
	DefaultMaxPages = 50
	DefaultTimeout  = 30 * time.Second

	// FloweringPlantsTaxonID is Magnoliopsida
	FloweringPlantsTaxonID = 47125
)

// Config configures the client. Zero values fall back to defaults.
type Config struct {
	BaseURL           string
	PerPage           int
	MaxPages          int
	RequestsPerSecond float64
	TaxonID           int64
	Timeout           time.Duration
	HTTPClient        *http.Client
	UserAgent         string
}

// Query selects observations for one region
type Query struct {
	Region  string
	PlaceID int64
	Dates   models.DateRange
}

// FetchStats describes one fetch
type FetchStats struct {
	Pages     int
	Skipped   int  // results without a date or coordinates
	Truncated bool // stopped at MaxPages before a short page
}

// Client reads research-grade observations from an iNaturalist-style API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a client
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.PerPage <= 0 {
		config.PerPage = DefaultPerPage
	}
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultMaxPages
	}
	if config.TaxonID == 0 {
		config.TaxonID = FloweringPlantsTaxonID
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = "trailbloom-backend"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With("component", "inaturalist"),
		now:        time.Now,
	}
}

// HTTPClient exposes the underlying client, mainly for transport mocking
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

type observationsResponse struct {
	TotalResults int      `json:"total_results"`
	Page         int      `json:"page"`
	PerPage      int      `json:"per_page"`
	Results      []result `json:"results"`
}

type result struct {
	ID         int64  `json:"id"`
	ObservedOn string `json:"observed_on"`
	Taxon      *struct {
		ID                  int64  `json:"id"`
		Name                string `json:"name"`
		PreferredCommonName string `json:"preferred_common_name"`
	} `json:"taxon"`
	GeoJSON *struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"geojson"`
}

// FetchObservations pages through the API until a short page or the
// MaxPages ceiling. Hitting the ceiling is logged and the rows fetched so
// far are returned without error.
func (c *Client) FetchObservations(ctx context.Context, q Query) ([]models.Observation, FetchStats, error) {
	var stats FetchStats
	if err := q.Dates.Validate(); err != nil {
		return nil, stats, err
	}
	if q.PlaceID <= 0 {
		return nil, stats, fmt.Errorf("region %s has no place id", q.Region)
	}

	fetchedAt := c.now().UTC()
	var observations []models.Observation
	for page := 1; ; page++ {
		if page > c.config.MaxPages {
			stats.Truncated = true
			c.logger.Warn("Stopped at page ceiling, results are incomplete",
				"region", q.Region,
				"max_pages", c.config.MaxPages,
				"fetched", len(observations))
			break
		}

		resp, err := c.fetchPage(ctx, q, page)
		stats.Pages++
		if err != nil {
			return observations, stats, err
		}

		for _, r := range resp.Results {
			obs, ok := toObservation(q.Region, r, fetchedAt)
			if !ok {
				stats.Skipped++
				continue
			}
			observations = append(observations, obs)
		}
		if len(resp.Results) < c.config.PerPage {
			break
		}
	}

	c.logger.Info("Fetched observations",
		"region", q.Region,
		"range", q.Dates.String(),
		"observations", len(observations),
		"pages", stats.Pages,
		"skipped", stats.Skipped)
	return observations, stats, nil
}

func (c *Client) fetchPage(ctx context.Context, q Query, page int) (*observationsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("place_id", strconv.FormatInt(q.PlaceID, 10))
	params.Set("taxon_id", strconv.FormatInt(c.config.TaxonID, 10))
	params.Set("d1", q.Dates.Start.String())
	params.Set("d2", q.Dates.End.String())
	params.Set("quality_grade", "research")
	params.Set("geo", "true")
	params.Set("order_by", "id")
	params.Set("order", "asc")
	params.Set("per_page", strconv.Itoa(c.config.PerPage))
	params.Set("page", strconv.Itoa(page))
	endpoint := c.config.BaseURL + "/v1/observations?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("page %d: unexpected status %d: %s", page, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded observationsResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode page %d: %w", page, err)
	}

	c.logger.Debug("Fetched page",
		"region", q.Region,
		"page", page,
		"results", len(decoded.Results),
		"total", decoded.TotalResults,
		"duration", time.Since(start))
	return &decoded, nil
}

func toObservation(region string, r result, fetchedAt time.Time) (models.Observation, bool) {
	if r.GeoJSON == nil || len(r.GeoJSON.Coordinates) < 2 || r.ObservedOn == "" {
		return models.Observation{}, false
	}
	day, err := models.ParseDate(r.ObservedOn)
	if err != nil {
		return models.Observation{}, false
	}

	obs := models.Observation{
		ID:         r.ID,
		Region:     region,
		ObservedOn: day,
		Location:   orb.Point{r.GeoJSON.Coordinates[0], r.GeoJSON.Coordinates[1]},
		FetchedAt:  fetchedAt,
	}
	if r.Taxon != nil {
		// common name first, scientific name when the taxon has none
		name := strings.TrimSpace(r.Taxon.PreferredCommonName)
		if name == "" {
			name = strings.TrimSpace(r.Taxon.Name)
		}
		if name != "" {
			obs.SpeciesName = &name
		}
		if r.Taxon.ID != 0 {
			id := r.Taxon.ID
			obs.TaxonID = &id
		}
	}
	return obs, true
}
