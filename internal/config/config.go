package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Source kinds.
const (
	SourceFixture = "fixture"
	SourceArchive = "archive"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Analysis period. The climatological baseline always starts at the
	// configured start month (2001-01 by default).
	Period         domain.Period
	WindowMonths   int
	Indices        []string
	IndexAllMonths bool
	Workers        int

	// Raster source.
	SourceKind      string
	SourceURL       string
	SourceToken     string
	SourceTimeout   time.Duration
	SourceRetries   int
	SourceCacheSize int
	FixturePath     string

	// Analysis grid (CHIRPS native resolution by default) and regions.
	Grid        domain.Grid
	RegionsFile string

	// Export destinations.
	ExportDir       string
	ExportFolder    string
	ExportScale     float64
	ExportMaxPixels float64
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaSinkTopic  string
	BatchSize       int
	StatsDBPath     string

	// MonthlyTemperature adds the temperature product to the monthly export.
	MonthlyTemperature bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("SOURCE_TIMEOUT", "30s"))
	if err != nil || sourceTimeout <= 0 {
		return nil, errors.New("invalid SOURCE_TIMEOUT")
	}

	ints := map[string]int{}
	for key, def := range map[string]int{
		"START_YEAR":        2001,
		"START_MONTH":       1,
		"END_YEAR":          2024,
		"END_MONTH":         11,
		"WINDOW_MONTHS":     6,
		"WORKERS":           runtime.NumCPU(),
		"SOURCE_CACHE_SIZE": 256,
		"SOURCE_RETRIES":    3,
		"GRID_WIDTH":        110,
		"GRID_HEIGHT":       116,
	} {
		v, err := parseInt(key, def)
		if err != nil {
			return nil, err
		}
		ints[key] = v
	}

	floats := map[string]float64{}
	for key, def := range map[string]float64{
		"GRID_WEST":         29.5,
		"GRID_NORTH":        4.3,
		"GRID_CELL_SIZE":    0.05,
		"EXPORT_SCALE":      5566,
		"EXPORT_MAX_PIXELS": 1e13,
	} {
		v, err := parseFloat(key, def)
		if err != nil {
			return nil, err
		}
		floats[key] = v
	}

	cfg := &Config{
		Period: domain.Period{
			Start: domain.MonthKey{Year: ints["START_YEAR"], Month: time.Month(ints["START_MONTH"])},
			End:   domain.MonthKey{Year: ints["END_YEAR"], Month: time.Month(ints["END_MONTH"])},
		},
		WindowMonths:   ints["WINDOW_MONTHS"],
		Indices:        parseList(sharedcfg.EnvOrDefault("INDICES", "pdi,tdi")),
		IndexAllMonths: os.Getenv("INDEX_ALL_MONTHS") == "true",
		Workers:        ints["WORKERS"],

		SourceKind:      sharedcfg.EnvOrDefault("SOURCE_KIND", SourceFixture),
		SourceURL:       os.Getenv("SOURCE_URL"),
		SourceToken:     os.Getenv("SOURCE_TOKEN"),
		SourceTimeout:   sourceTimeout,
		SourceRetries:   ints["SOURCE_RETRIES"],
		SourceCacheSize: ints["SOURCE_CACHE_SIZE"],
		FixturePath:     sharedcfg.EnvOrDefault("FIXTURE_PATH", "data/mock/archive.json"),

		Grid: domain.Grid{
			West:     floats["GRID_WEST"],
			North:    floats["GRID_NORTH"],
			CellSize: floats["GRID_CELL_SIZE"],
			Width:    ints["GRID_WIDTH"],
			Height:   ints["GRID_HEIGHT"],
		},
		RegionsFile: os.Getenv("REGIONS_FILE"),

		ExportDir:       os.Getenv("EXPORT_DIR"),
		ExportFolder:    sharedcfg.EnvOrDefault("EXPORT_FOLDER", "CDI_Uganda"),
		ExportScale:     floats["EXPORT_SCALE"],
		ExportMaxPixels: floats["EXPORT_MAX_PIXELS"],
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "drought-index-rasters"),
		BatchSize:       batchSize,
		StatsDBPath:     os.Getenv("STATS_DB_PATH"),

		MonthlyTemperature: os.Getenv("MONTHLY_TEMPERATURE") == "true",

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := domain.ValidateWindow(c.WindowMonths); err != nil {
		return fmt.Errorf("WINDOW_MONTHS=%d: %w", c.WindowMonths, err)
	}
	if c.Period.Start.Month < time.January || c.Period.Start.Month > time.December {
		return errors.New("START_MONTH must be between 1 and 12")
	}
	if c.Period.End.Month < time.January || c.Period.End.Month > time.December {
		return errors.New("END_MONTH must be between 1 and 12")
	}
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if len(c.Indices) == 0 {
		return errors.New("INDICES is required")
	}
	for _, name := range c.Indices {
		if _, err := domain.LookupIndex(name); err != nil {
			return fmt.Errorf("INDICES: %w", err)
		}
	}
	if c.Workers <= 0 {
		return errors.New("WORKERS must be positive")
	}
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 || c.Grid.CellSize <= 0 {
		return errors.New("GRID_WIDTH, GRID_HEIGHT and GRID_CELL_SIZE must be positive")
	}
	switch c.SourceKind {
	case SourceFixture:
		if c.FixturePath == "" {
			return errors.New("FIXTURE_PATH is required when SOURCE_KIND=fixture")
		}
	case SourceArchive:
		if c.SourceURL == "" {
			return errors.New("SOURCE_URL is required when SOURCE_KIND=archive")
		}
	default:
		return fmt.Errorf("unknown SOURCE_KIND %q", c.SourceKind)
	}
	if c.SourceRetries < 0 {
		return errors.New("SOURCE_RETRIES must not be negative")
	}
	if c.SourceCacheSize <= 0 {
		return errors.New("SOURCE_CACHE_SIZE must be positive")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// Variables resolves the configured index names.
func (c *Config) Variables() []domain.Variable {
	vars := make([]domain.Variable, 0, len(c.Indices))
	for _, name := range c.Indices {
		v, err := domain.LookupIndex(name)
		if err == nil {
			vars = append(vars, v)
		}
	}
	return vars
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
