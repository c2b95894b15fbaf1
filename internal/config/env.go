package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Env holds settings read from the process environment. Non-empty values
// override studio.yaml.
type Env struct {
	ConfigPath  string `env:"STUDIO_CONFIG" envDefault:"studio.yaml"`
	DevicesPath string `env:"STUDIO_DEVICES" envDefault:"devices.yaml"`
	Port        int    `env:"STUDIO_PORT"`
	StudioID    string `env:"STUDIO_ID"`

	LogLevel  string `env:"STUDIO_LOG_LEVEL"`
	LogFormat string `env:"STUDIO_LOG_FORMAT"`
	LogOutput string `env:"STUDIO_LOG_OUTPUT"`

	UploadDir       string `env:"STUDIO_UPLOAD_DIR"`
	ExportDir       string `env:"STUDIO_EXPORT_DIR"`
	LogDir          string `env:"STUDIO_LOG_DIR"`
	DefaultLanguage string `env:"STUDIO_CODEGEN_LANGUAGE"`

	MQTTBroker string `env:"STUDIO_MQTT_BROKER"`
	PGHost     string `env:"STUDIO_PG_HOST"`
	PGPort     string `env:"STUDIO_PG_PORT"`
	PGUser     string `env:"STUDIO_PG_USER"`
	PGDatabase string `env:"STUDIO_PG_DATABASE"`

	TLSCert string `env:"STUDIO_TLS_CERT"`
	TLSKey  string `env:"STUDIO_TLS_KEY"`

	AlertWebhookURL string `env:"STUDIO_ALERT_WEBHOOK_URL"`
}

// LoadEnv loads the given .env files (".env" when none are named; missing
// files are skipped) and parses the environment. Variables already set in
// the process are never overwritten by a file.
func LoadEnv(files ...string) (*Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &e, nil
}

func (e *Env) apply(cfg *StudioConfig) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if e.Port != 0 {
		cfg.Server.Port = e.Port
	}
	set(&cfg.Studio.ID, e.StudioID)
	set(&cfg.Log.Level, e.LogLevel)
	set(&cfg.Log.Format, e.LogFormat)
	set(&cfg.Log.Output, e.LogOutput)
	set(&cfg.Paths.Uploads, e.UploadDir)
	set(&cfg.Paths.Exports, e.ExportDir)
	set(&cfg.Paths.Logs, e.LogDir)
	set(&cfg.CodeGen.DefaultLanguage, e.DefaultLanguage)
	set(&cfg.MQTT.Broker, e.MQTTBroker)
	set(&cfg.Postgres.Host, e.PGHost)
	set(&cfg.Postgres.Port, e.PGPort)
	set(&cfg.Postgres.User, e.PGUser)
	set(&cfg.Postgres.Database, e.PGDatabase)
	set(&cfg.Server.TLSCert, e.TLSCert)
	set(&cfg.Server.TLSKey, e.TLSKey)
	set(&cfg.Alerts.WebhookURL, e.AlertWebhookURL)

	pw, err := Secret("PG_PASSWORD")
	if err != nil {
		return err
	}
	cfg.Postgres.Password = pw
	return nil
}
