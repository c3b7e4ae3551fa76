// Package config loads tracklens settings.
//
// Sources are applied in order, later ones overriding earlier:
//
//  1. built-in defaults
//  2. a YAML file ($TRACKLENS_CONFIG, ./tracklens.yaml or ~/.tracklens/config.yaml)
//  3. TRACKLENS_* environment variables
//
// The merged result is validated before it is returned.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/abelbrown/tracklens/internal/features"
	"github.com/abelbrown/tracklens/internal/projection"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/validation"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "TRACKLENS_CONFIG"

const envPrefix = "TRACKLENS_"

// Config is the full application configuration.
type Config struct {
	Service ServiceConfig `koanf:"service"`
	UI      UIConfig      `koanf:"ui"`
	Data    DataConfig    `koanf:"data"`
	Log     LogConfig     `koanf:"log"`
	Session SessionConfig `koanf:"session"`
}

// ServiceConfig points at the clustering/recommendation service.
type ServiceConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateInterval    time.Duration `koanf:"rate_interval"` // negative disables
	MaxRetries      int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// UIConfig holds the interactive defaults.
type UIConfig struct {
	Mode                string   `koanf:"mode" validate:"oneof=planar spatial"`
	FPS                 int      `koanf:"fps" validate:"gte=1,lte=120"`
	RotationSpeed       float64  `koanf:"rotation_speed" validate:"gte=0"` // radians per second
	DefaultClusters     int      `koanf:"default_clusters" validate:"gte=2,lte=10"`
	Features            []string `koanf:"features" validate:"min=1,unique,dive,required"`
	SeedSize            int      `koanf:"seed_size" validate:"gte=1,lte=5"`
	RecommendationLimit int      `koanf:"recommendation_limit" validate:"gte=1,lte=100"`
	MemberPreview       int      `koanf:"member_preview" validate:"gte=1,lte=50"`
}

// DataConfig locates local state.
type DataConfig struct {
	Dir      string        `koanf:"dir" validate:"required"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gte=0"` // 0 keeps cached recommendations forever
}

// LogConfig sets the diagnostic log level. Trace records every UI
// message in the event log.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Trace bool   `koanf:"trace"`
}

// SessionConfig carries the opaque user token.
type SessionConfig struct {
	Token string `koanf:"token"`
}

func defaultConfig() *Config {
	dir := ".tracklens"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".tracklens")
	}
	return &Config{
		Service: ServiceConfig{
			BaseURL:         service.DefaultBaseURL,
			Timeout:         30 * time.Second,
			RateInterval:    200 * time.Millisecond,
			MaxRetries:      2,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		UI: UIConfig{
			Mode:                "planar",
			FPS:                 30,
			RotationSpeed:       0.5,
			DefaultClusters:     5,
			Features:            append([]string(nil), features.DefaultCatalog...),
			SeedSize:            5,
			RecommendationLimit: 10,
			MemberPreview:       6,
		},
		Data: DataConfig{
			Dir:      dir,
			CacheTTL: 24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }

// Load merges defaults, the config file and the environment.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file. An empty path skips the
// file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envValueFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	cfg.UI.Features = trimList(cfg.UI.Features)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every field rule.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	candidates := []string{"tracklens.yaml", "tracklens.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".tracklens", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envAliases = map[string]string{
	"service_url": "service.base_url",
	"token":       "session.token",
}

// envTransformFunc maps TRACKLENS_SECTION_KEY to section.key. Names with
// no section (TRACKLENS_CONFIG) are skipped unless aliased.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if alias, ok := envAliases[key]; ok {
		return alias
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	switch section {
	case "service", "ui", "data", "log", "session":
		return section + "." + rest
	}
	return ""
}

// envListKeys are the config paths whose environment values are comma
// separated lists.
var envListKeys = map[string]bool{
	"ui.features": true,
}

// envValueFunc is envTransformFunc plus list splitting for envListKeys.
func envValueFunc(key, value string) (string, any) {
	key = envTransformFunc(key)
	if envListKeys[key] {
		return key, trimList(strings.Split(value, ","))
	}
	return key, value
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ProjectionMode returns the configured starting mode.
func (u UIConfig) ProjectionMode() projection.Mode {
	if u.Mode == "spatial" {
		return projection.Spatial
	}
	return projection.Planar
}

// ServiceOptions converts the service section to client options.
func (c *Config) ServiceOptions() service.Options {
	retries := c.Service.MaxRetries
	if retries == 0 {
		retries = -1 // the client reads 0 as "use its default"
	}
	return service.Options{
		BaseURL:         c.Service.BaseURL,
		Timeout:         c.Service.Timeout,
		RateInterval:    c.Service.RateInterval,
		MaxRetries:      retries,
		BreakerFailures: c.Service.BreakerFailures,
		BreakerTimeout:  c.Service.BreakerTimeout,
	}
}

// DBPath is the SQLite cache location.
func (c *Config) DBPath() string { return filepath.Join(c.Data.Dir, "tracklens.db") }

// EventsPath is the JSONL event trace location.
func (c *Config) EventsPath() string { return filepath.Join(c.Data.Dir, "events.jsonl") }
