package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"trackamole/internal/models"
	"trackamole/internal/reminder"
	"trackamole/internal/utils"
)

const configFile = "config.json"

// AppConfig holds settings shared by the server and the client.
type AppConfig struct {
	AssetBaseURL  string             `json:"assetBaseUrl"`
	ListenAddr    string             `json:"listenAddr"`
	ModelDir      string             `json:"modelDir"`
	CertDir       string             `json:"certDir"`
	DatabasePath  string             `json:"databasePath"`
	ReportDir     string             `json:"reportDir"`
	LogPath       string             `json:"logPath"` // empty logs to stderr
	FetchTimeout  Duration           `json:"fetchTimeout"`
	SettleDelay   Duration           `json:"settleDelay"`
	FrameRate     int                `json:"frameRate"`
	DefaultGender models.BodyVariant `json:"defaultGender"`
	Reminder      reminder.Schedule  `json:"reminder"`
}

// Duration is a time.Duration that reads "1.5s" style strings from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1.5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the settings used when config.json is absent.
func DefaultConfig() AppConfig {
	return AppConfig{
		AssetBaseURL:  "http://localhost:8080",
		ListenAddr:    ":8080",
		ModelDir:      utils.GetModelDir(),
		CertDir:       filepath.Join(utils.GetProjectRoot(), "certs"),
		DatabasePath:  filepath.Join(utils.GetDataDir(), "trackamole.db"),
		ReportDir:     filepath.Join(utils.GetProjectRoot(), "reports"),
		SettleDelay:   Duration(1500 * time.Millisecond),
		FrameRate:     60,
		DefaultGender: models.VariantMale,
		Reminder:      reminder.Default(),
	}
}

var (
	config     AppConfig
	configErr  error
	configOnce sync.Once
)

// LoadConfig reads config.json from the working directory once and applies
// environment overrides. A missing or unreadable file yields the defaults.
func LoadConfig() AppConfig {
	configOnce.Do(func() {
		config, configErr = LoadConfigFrom(configFile)
		if configErr != nil {
			config = DefaultConfig()
			applyEnv(&config)
		}
	})
	return config
}

// ConfigError reports why config.json was ignored by LoadConfig, if it was.
func ConfigError() error {
	LoadConfig()
	return configErr
}

// LoadConfigFrom reads path over the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfigFrom(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *AppConfig) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("TRACKAMOLE_ASSET_URL", &cfg.AssetBaseURL)
	str("TRACKAMOLE_LISTEN", &cfg.ListenAddr)
	str("TRACKAMOLE_MODEL_DIR", &cfg.ModelDir)
	str("TRACKAMOLE_CERT_DIR", &cfg.CertDir)
	str("TRACKAMOLE_DB", &cfg.DatabasePath)
	str("TRACKAMOLE_REPORT_DIR", &cfg.ReportDir)
	str("TRACKAMOLE_LOG", &cfg.LogPath)
	if v := os.Getenv("TRACKAMOLE_GENDER"); v != "" {
		cfg.DefaultGender = models.BodyVariant(v)
	}
	if v, err := time.ParseDuration(os.Getenv("TRACKAMOLE_FETCH_TIMEOUT")); err == nil {
		cfg.FetchTimeout = Duration(v)
	}
	if v, err := strconv.Atoi(os.Getenv("TRACKAMOLE_FRAME_RATE")); err == nil {
		cfg.FrameRate = v
	}
}

// Validate rejects settings no component can run with.
func (c AppConfig) Validate() error {
	if !c.DefaultGender.Valid() {
		return fmt.Errorf("config: unknown defaultGender %q", c.DefaultGender)
	}
	if c.FetchTimeout < 0 || c.SettleDelay < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("config: frameRate must be positive, got %d", c.FrameRate)
	}
	if c.Reminder.Enabled {
		if err := c.Reminder.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
