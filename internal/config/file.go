package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration loaded from <home>/config.yaml.
// Environment variables override file values so deployments can keep
// secrets out of the file.
type Config struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
	Dev    bool   `yaml:"dev"`

	DB  DBConfig  `yaml:"db"`
	GCS GCSConfig `yaml:"gcs"`
}

// DBConfig selects the storage backend. SQLite is the default and needs no
// configuration; postgres needs a connection URL.
type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	URL    string `yaml:"url"`
}

// GCSConfig configures the bucket sync job. An empty bucket disables sync.
type GCSConfig struct {
	Bucket       string        `yaml:"bucket"`
	Projects     []string      `yaml:"projects"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// DefaultProjects is the set of tracked project outboxes scanned when the
// config file does not name its own.
var DefaultProjects = []string{
	"ArtForge",
	"harmonylab",
	"Super-Flashcards",
	"metapm",
	"Etymython",
	"project-methodology",
}

// Default returns the baseline config before file and env overrides.
func Default() Config {
	return Config{
		Addr: "127.0.0.1:8844",
		DB:   DBConfig{Driver: "sqlite"},
		GCS: GCSConfig{
			Projects:     DefaultProjects,
			SyncInterval: 10 * time.Minute,
		},
	}
}

// Path returns the config file path: <home>/config.yaml.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Load reads <home>/config.yaml, falling back to defaults when the file is
// missing, then applies environment overrides.
func Load(home string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path(home))
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", Path(home), err)
	}
	if cfg.GCS.SyncInterval <= 0 {
		cfg.GCS.SyncInterval = 10 * time.Minute
	}
	if len(cfg.GCS.Projects) == 0 {
		cfg.GCS.Projects = DefaultProjects
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("METAPM_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("METAPM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DB.Driver = "postgres"
		cfg.DB.URL = v
	}
	if v := os.Getenv("GCS_HANDOFF_BUCKET"); v != "" {
		cfg.GCS.Bucket = v
	}
}

// Save writes the config to <home>/config.yaml, creating home if needed.
func Save(home string, cfg Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), data, 0o644)
}
