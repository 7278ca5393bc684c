package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/offtrack/offtrack/internal/engine"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Engine    engine.Params   `yaml:"engine"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DatasetConfig locates the seed dataset, locally or in S3-compatible storage.
type DatasetConfig struct {
	CSVPath   string `yaml:"csv_path"`
	Bucket    string `yaml:"bucket"`
	Object    string `yaml:"object"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool  `yaml:"use_ssl"`
}

// SpotifyConfig contains optional Spotify metadata lookup settings.
// Lookup is disabled when the credentials are empty.
type SpotifyConfig struct {
	ClientID     string `yaml:"-"` // env-only, never in YAML
	ClientSecret string `yaml:"-"` // env-only, never in YAML
	CoverCache   int    `yaml:"cover_cache"`
}

// AnalyticsConfig contains optional event capture settings.
// Capture is disabled when the API key is empty.
type AnalyticsConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
	Host   string `yaml:"host"`
}

// AuthConfig contains authentication settings for privileged endpoints.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// CORSConfig contains allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WorkerConfig contains background worker settings.
// A zero RefreshInterval disables the periodic snapshot refresh.
type WorkerConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("OFFTRACK_CONFIG_PATH", "config/offtrack.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/offtrack.db",
		},
		Dataset: DatasetConfig{
			CSVPath: "data/data.csv",
			Region:  "us-east-1",
		},
		Engine: engine.DefaultParams(),
		Spotify: SpotifyConfig{
			CoverCache: 512,
		},
		Analytics: AnalyticsConfig{
			Host: "https://app.posthog.com",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:8080",
				"http://127.0.0.1:8080",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			},
		},
		Worker: WorkerConfig{
			RefreshInterval: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("OFFTRACK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("OFFTRACK_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("OFFTRACK_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("OFFTRACK_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("OFFTRACK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Dataset
	if v := os.Getenv("OFFTRACK_DATASET_CSV"); v != "" {
		cfg.Dataset.CSVPath = v
	}
	if v := os.Getenv("OFFTRACK_DATASET_BUCKET"); v != "" {
		cfg.Dataset.Bucket = v
	}
	if v := os.Getenv("OFFTRACK_DATASET_OBJECT"); v != "" {
		cfg.Dataset.Object = v
	}
	if v := os.Getenv("OFFTRACK_S3_ENDPOINT"); v != "" {
		cfg.Dataset.Endpoint = v
	}
	if v := os.Getenv("OFFTRACK_S3_REGION"); v != "" {
		cfg.Dataset.Region = v
	}
	cfg.Dataset.AccessKey = os.Getenv("OFFTRACK_S3_ACCESS_KEY")
	cfg.Dataset.SecretKey = os.Getenv("OFFTRACK_S3_SECRET_KEY")
	if v := os.Getenv("OFFTRACK_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Dataset.UseSSL = &useSSL
	}

	// Engine
	if v := os.Getenv("OFFTRACK_MMR_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.MMRLambda = f
		}
	}
	if v := os.Getenv("OFFTRACK_ARTIST_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ArtistCap = n
		}
	}
	if v := os.Getenv("OFFTRACK_CLUSTER_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ClusterCap = n
		}
	}
	if v := os.Getenv("OFFTRACK_DISABLE_CLUSTERING"); v != "" {
		cfg.Engine.Clustering = !(v == "true" || v == "1")
	}

	// Spotify
	cfg.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")

	// Analytics
	cfg.Analytics.APIKey = os.Getenv("OFFTRACK_ANALYTICS_KEY")
	if v := os.Getenv("OFFTRACK_ANALYTICS_HOST"); v != "" {
		cfg.Analytics.Host = v
	}

	// Auth
	cfg.Auth.APIKey = os.Getenv("OFFTRACK_API_KEY")

	// Worker
	if v := os.Getenv("OFFTRACK_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.RefreshInterval = Duration(d)
		}
	}

	// Log
	if v := os.Getenv("OFFTRACK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OFFTRACK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that configuration values are coherent.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Engine.MMRLambda < 0 || c.Engine.MMRLambda > 1 {
		return fmt.Errorf("mmr_lambda %f outside [0,1]", c.Engine.MMRLambda)
	}
	if c.Engine.QueryPool <= 0 || c.Engine.ScorePool <= 0 {
		return errors.New("engine pools must be positive")
	}
	if c.Engine.MaxResults <= 0 || c.Engine.DefaultResults <= 0 {
		return errors.New("engine result bounds must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
