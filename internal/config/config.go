package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TRAILBLOOM_DB_DSN
const EnvPrefix = "TRAILBLOOM"

// Config is the application configuration
type Config struct {
	Port     string         `mapstructure:"port"`
	DB       DBConfig       `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Regions  []Region       `mapstructure:"regions"`
	Provider ProviderConfig `mapstructure:"provider"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// DBConfig selects the database driver and connection string
type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or pgx
	DSN    string `mapstructure:"dsn"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds the admin API secret
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RefreshConfig tunes the refresh pipeline
type RefreshConfig struct {
	WindowDays         int     `mapstructure:"window_days"`
	CellSizeDeg        float64 `mapstructure:"cell_size_deg"`
	BufferMeters       float64 `mapstructure:"buffer_meters"`
	ReadPageSize       int     `mapstructure:"read_page_size"`
	TrailChunkPageSize int     `mapstructure:"trail_chunk_page_size"`
	WriteBatchSize     int     `mapstructure:"write_batch_size"`
	DeletePageSize     int     `mapstructure:"delete_page_size"`
	Concurrency        int     `mapstructure:"concurrency"`
}

// Region maps a region code to the provider's place id
type Region struct {
	Code    string `mapstructure:"code"`
	PlaceID int64  `mapstructure:"place_id"`
}

// ProviderConfig configures the observation provider client
type ProviderConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	PerPage           int     `mapstructure:"per_page"`
	MaxPages          int     `mapstructure:"max_pages"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	TaxonID           int64   `mapstructure:"taxon_id"`
}

// CacheConfig controls the read-path cache
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", ":8080")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "./data/trailbloom.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("refresh.window_days", 7)
	v.SetDefault("refresh.cell_size_deg", 0.01)
	v.SetDefault("refresh.buffer_meters", 50.0)
	v.SetDefault("refresh.read_page_size", 1000)
	v.SetDefault("refresh.trail_chunk_page_size", 20)
	v.SetDefault("refresh.write_batch_size", 500)
	v.SetDefault("refresh.delete_page_size", 1000)
	v.SetDefault("refresh.concurrency", 4)

	v.SetDefault("regions", []map[string]interface{}{})

	v.SetDefault("provider.base_url", "https://api.inaturalist.org")
	v.SetDefault("provider.per_page", 200)
	v.SetDefault("provider.max_pages", 50)
	v.SetDefault("provider.requests_per_second", 1.0)
	v.SetDefault("provider.taxon_id", 47125) // flowering plants

	v.SetDefault("cache.ttl", 10*time.Minute)
}

// Load reads configuration from defaults, an optional config file and the
// environment. A .env.local file in the working directory is loaded first
// when present.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env.local: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("trailbloom")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if codes := v.GetString("region_codes"); codes != "" && len(cfg.Regions) == 0 {
		cfg.Regions = ParseRegionCodes(codes)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseRegionCodes parses "CA:14,OR:10" into regions; the place id is optional
func ParseRegionCodes(s string) []Region {
	var regions []Region
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, place, _ := strings.Cut(part, ":")
		r := Region{Code: code}
		fmt.Sscanf(place, "%d", &r.PlaceID)
		regions = append(regions, r)
	}
	return regions
}

func (c *Config) normalize() {
	for i := range c.Regions {
		c.Regions[i].Code = strings.ToUpper(strings.TrimSpace(c.Regions[i].Code))
	}
	c.DB.Driver = strings.ToLower(c.DB.Driver)
}

// Validate checks ranges and required values
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "sqlite", "pgx":
	default:
		errs = append(errs, fmt.Errorf("db.driver must be sqlite or pgx, got %q", c.DB.Driver))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}

	r := c.Refresh
	if r.WindowDays < 1 {
		errs = append(errs, fmt.Errorf("refresh.window_days must be at least 1, got %d", r.WindowDays))
	}
	if r.CellSizeDeg <= 0 || r.CellSizeDeg > 1 {
		errs = append(errs, fmt.Errorf("refresh.cell_size_deg must be in (0, 1], got %v", r.CellSizeDeg))
	}
	if r.BufferMeters <= 0 {
		errs = append(errs, fmt.Errorf("refresh.buffer_meters must be positive, got %v", r.BufferMeters))
	}
	for name, n := range map[string]int{
		"refresh.read_page_size":        r.ReadPageSize,
		"refresh.trail_chunk_page_size": r.TrailChunkPageSize,
		"refresh.write_batch_size":      r.WriteBatchSize,
		"refresh.delete_page_size":      r.DeletePageSize,
		"refresh.concurrency":           r.Concurrency,
		"provider.per_page":             c.Provider.PerPage,
		"provider.max_pages":            c.Provider.MaxPages,
	} {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, n))
		}
	}

	seen := make(map[string]bool)
	for _, region := range c.Regions {
		if region.Code == "" {
			errs = append(errs, errors.New("region code must not be empty"))
			continue
		}
		if seen[region.Code] {
			errs = append(errs, fmt.Errorf("duplicate region %s", region.Code))
		}
		seen[region.Code] = true
	}

	return errors.Join(errs...)
}

// RegionCodes returns the configured region codes in order
func (c *Config) RegionCodes() []string {
	codes := make([]string, 0, len(c.Regions))
	for _, r := range c.Regions {
		codes = append(codes, r.Code)
	}
	return codes
}

// Region returns the region with the given code
func (c *Config) Region(code string) (Region, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, r := range c.Regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}
