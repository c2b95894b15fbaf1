package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type StudioConfig struct {
	Version int `yaml:"version"`
	Studio  struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"studio"`
	Server struct {
		Port    int    `yaml:"port"`
		TLSCert string `yaml:"tls_cert"`
		TLSKey  string `yaml:"tls_key"`
	} `yaml:"server"`
	Engine struct {
		// Nil means on.
		AllowStartFallback *bool `yaml:"allow_start_fallback"`
		RequireEndState    bool  `yaml:"require_end_state"`
		StopAtEnd          bool  `yaml:"stop_at_end"`
		ConditionCacheSize int   `yaml:"condition_cache_size"`
	} `yaml:"engine"`
	CodeGen struct {
		DefaultLanguage string `yaml:"default_language"`
	} `yaml:"codegen"`
	Paths struct {
		Uploads string `yaml:"uploads"`
		Exports string `yaml:"exports"`
		Logs    string `yaml:"logs"`
	} `yaml:"paths"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	MQTT struct {
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		Required    bool   `yaml:"required"`
	} `yaml:"mqtt"`
	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
		// Password comes from STUDIO_PG_PASSWORD(_FILE), never the file.
		Password string `yaml:"-"`
	} `yaml:"postgres"`
	Alerts struct {
		WebhookURL    string        `yaml:"webhook_url"`
		MQTTDelay     time.Duration `yaml:"mqtt_delay"`
		PostgresDelay time.Duration `yaml:"postgres_delay"`
	} `yaml:"alerts"`
}

// Port returns the configured API port, defaulting to 8080 if not set.
func (c *StudioConfig) Port() int {
	if c.Server.Port == 0 {
		return 8080
	}
	return c.Server.Port
}

// StartFallback reports whether the engine may start from the first state
// when a scenario has no start state.
func (c *StudioConfig) StartFallback() bool {
	return c.Engine.AllowStartFallback == nil || *c.Engine.AllowStartFallback
}

func (c *StudioConfig) DefaultLanguage() string {
	if c.CodeGen.DefaultLanguage == "" {
		return "python"
	}
	return c.CodeGen.DefaultLanguage
}

func (c *StudioConfig) UploadDir() string { return orDefault(c.Paths.Uploads, "uploads") }
func (c *StudioConfig) ExportDir() string { return orDefault(c.Paths.Exports, "exports") }
func (c *StudioConfig) LogDir() string    { return orDefault(c.Paths.Logs, "logs") }

func (c *StudioConfig) TopicPrefix() string {
	return orDefault(c.MQTT.TopicPrefix, "studio")
}

func (c *StudioConfig) StudioID() string {
	return orDefault(c.Studio.ID, "default")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// DeviceEntry is a test device declared in devices.yaml.
type DeviceEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Manufacturer string   `yaml:"manufacturer"`
	Model        string   `yaml:"model"`
	Required     bool     `yaml:"required"`
	Capabilities []string `yaml:"capabilities"`
}

type DevicesConfig struct {
	Version int           `yaml:"version"`
	Devices []DeviceEntry `yaml:"devices"`
}

// Default returns the configuration used when no studio.yaml exists.
func Default() *StudioConfig {
	return &StudioConfig{Version: 1}
}

func LoadStudioConfig(path string) (*StudioConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg StudioConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported studio.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

func LoadDevicesConfig(path string) (*DevicesConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DevicesConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported devices.yaml version: %d", cfg.Version)
	}

	return &cfg, nil
}

// Load reads .env files, the environment and studio.yaml (at
// STUDIO_CONFIG) and merges them; environment values win. A missing
// studio.yaml is not an error.
func Load(envFiles ...string) (*StudioConfig, *Env, error) {
	e, err := LoadEnv(envFiles...)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := LoadStudioConfig(e.ConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, nil, err
	}

	if err := e.apply(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, e, nil
}

// EnsureDirectories creates the upload, export and log directories.
func EnsureDirectories(cfg *StudioConfig) error {
	for _, dir := range []string{cfg.UploadDir(), cfg.ExportDir(), cfg.LogDir()} {
		if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
