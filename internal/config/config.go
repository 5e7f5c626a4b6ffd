package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Ingestion.
	FetchInterval time.Duration
	FetchTimeout  time.Duration
	BMKGBaseURL   string
	// Sources overrides the default BMKG feeds when SOURCES_FILE is set.
	Sources []SourceConfig

	DatabaseURL   string
	StatsLocation *time.Location

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	Snapshot SnapshotConfig
}

// SourceConfig is one upstream feed entry from SOURCES_FILE.
type SourceConfig struct {
	Name    string
	Shape   domain.FeedShape
	Path    string
	Timeout time.Duration
}

// SnapshotConfig controls the periodic JSONL export to S3. Export is disabled
// when Bucket is empty.
type SnapshotConfig struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string
	Interval time.Duration
}

// Enabled reports whether snapshot export is configured.
func (s SnapshotConfig) Enabled() bool { return s.Bucket != "" }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchInterval, err := parsePositiveDuration("FETCH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	snapshotInterval, err := parsePositiveDuration("SNAPSHOT_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	statsZone := sharedcfg.EnvOrDefault("STATS_TIMEZONE", "Asia/Jakarta")
	statsLocation, err := loadLocation(statsZone)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchInterval: fetchInterval,
		FetchTimeout:  fetchTimeout,
		BMKGBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("BMKG_BASE_URL", "https://data.bmkg.go.id"), "/"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StatsLocation: statsLocation,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquakes"),

		Snapshot: SnapshotConfig{
			Bucket:   os.Getenv("SNAPSHOT_S3_BUCKET"),
			Key:      sharedcfg.EnvOrDefault("SNAPSHOT_S3_KEY", "earthquakes/snapshot.jsonl"),
			Region:   sharedcfg.EnvOrDefault("SNAPSHOT_S3_REGION", "ap-southeast-3"),
			Endpoint: os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			Interval: snapshotInterval,
		},
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		sources, err := LoadSources(path, fetchTimeout)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}

	if cfg.BMKGBaseURL == "" {
		return nil, errors.New("BMKG_BASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// loadLocation falls back to fixed WIB for Asia/Jakarta on hosts without tzdata.
func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Jakarta" {
		return time.FixedZone("WIB", 7*60*60), nil
	}
	return nil, err
}

type sourcesFile struct {
	Sources []struct {
		Name    string `yaml:"name"`
		Shape   string `yaml:"shape"`
		Path    string `yaml:"path"`
		Timeout string `yaml:"timeout"`
	} `yaml:"sources"`
}

// LoadSources reads a YAML list of upstream feeds. Entries without a timeout
// use defaultTimeout.
func LoadSources(path string, defaultTimeout time.Duration) ([]SourceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}

	seen := make(map[string]bool, len(f.Sources))
	out := make([]SourceConfig, 0, len(f.Sources))
	for i, s := range f.Sources {
		if s.Name == "" || s.Path == "" {
			return nil, fmt.Errorf("source %d: name and path are required", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %q listed twice", s.Name)
		}
		seen[s.Name] = true

		shape, err := domain.ParseFeedShape(s.Shape)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		timeout := defaultTimeout
		if s.Timeout != "" {
			timeout, err = time.ParseDuration(s.Timeout)
			if err != nil || timeout <= 0 {
				return nil, fmt.Errorf("source %q: invalid timeout %q", s.Name, s.Timeout)
			}
		}
		out = append(out, SourceConfig{Name: s.Name, Shape: shape, Path: s.Path, Timeout: timeout})
	}
	return out, nil
}
