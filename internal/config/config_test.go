package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/abelbrown/tracklens/internal/features"
	"github.com/abelbrown/tracklens/internal/projection"
	"github.com/abelbrown/tracklens/internal/service"
	"github.com/abelbrown/tracklens/internal/validation"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracklens.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Service.BaseURL != service.DefaultBaseURL {
		t.Errorf("Service.BaseURL = %q", cfg.Service.BaseURL)
	}
	if cfg.UI.DefaultClusters != 5 {
		t.Errorf("UI.DefaultClusters = %d, want 5", cfg.UI.DefaultClusters)
	}
	if !reflect.DeepEqual(cfg.UI.Features, features.DefaultCatalog) {
		t.Errorf("UI.Features = %v", cfg.UI.Features)
	}
	if cfg.UI.MemberPreview != 6 {
		t.Errorf("UI.MemberPreview = %d, want 6", cfg.UI.MemberPreview)
	}
	if cfg.UI.ProjectionMode() != projection.Planar {
		t.Error("default mode should be planar")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}

	// Mutating the copy must not touch the catalog.
	cfg.UI.Features[0] = "changed"
	if features.DefaultCatalog[0] == "changed" {
		t.Error("defaults alias DefaultCatalog")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
service:
  base_url: http://music.local:8080/api
  timeout: 5s
ui:
  mode: spatial
  default_clusters: 3
  features: [energy, valence]
data:
  dir: /tmp/tl
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Service.BaseURL != "http://music.local:8080/api" {
		t.Errorf("BaseURL = %q", cfg.Service.BaseURL)
	}
	if cfg.Service.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", cfg.Service.Timeout)
	}
	if cfg.UI.ProjectionMode() != projection.Spatial || cfg.UI.DefaultClusters != 3 {
		t.Errorf("UI = %+v", cfg.UI)
	}
	if !reflect.DeepEqual(cfg.UI.Features, []string{"energy", "valence"}) {
		t.Errorf("Features = %v", cfg.UI.Features)
	}
	// Untouched keys keep their defaults.
	if cfg.UI.FPS != 30 || cfg.Service.MaxRetries != 2 {
		t.Errorf("defaults lost: fps=%d retries=%d", cfg.UI.FPS, cfg.Service.MaxRetries)
	}
	if cfg.DBPath() != filepath.Join("/tmp/tl", "tracklens.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "ui:\n  fps: 20\n")
	t.Setenv("TRACKLENS_UI_FPS", "60")
	t.Setenv("TRACKLENS_SERVICE_URL", "http://env.local/api")
	t.Setenv("TRACKLENS_TOKEN", "tok en/+")
	t.Setenv("TRACKLENS_UI_FEATURES", "energy, tempo")
	t.Setenv("TRACKLENS_LOG_LEVEL", "debug")
	t.Setenv("TRACKLENS_LOG_TRACE", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.UI.FPS != 60 {
		t.Errorf("FPS = %d, want 60", cfg.UI.FPS)
	}
	if cfg.Service.BaseURL != "http://env.local/api" {
		t.Errorf("BaseURL = %q", cfg.Service.BaseURL)
	}
	if cfg.Session.Token != "tok en/+" {
		t.Errorf("Token = %q", cfg.Session.Token)
	}
	if !reflect.DeepEqual(cfg.UI.Features, []string{"energy", "tempo"}) {
		t.Errorf("Features = %q", cfg.UI.Features)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if !cfg.Log.Trace {
		t.Error("Log.Trace should be on")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad mode", "ui:\n  mode: isometric\n", "mode"},
		{"too many clusters", "ui:\n  default_clusters: 11\n", "default_clusters"},
		{"duplicate features", "ui:\n  features: [energy, energy]\n", "features"},
		{"no features", "ui:\n  features: []\n", "features"},
		{"bad url", "service:\n  base_url: not a url\n", "base_url"},
		{"bad level", "log:\n  level: loud\n", "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeYAML(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a validation.Error", err)
			}
			if !verr.Has(tt.field) {
				t.Errorf("error %v does not name %s", err, tt.field)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing explicit file")
	}
}

func TestFindConfigFileFromEnv(t *testing.T) {
	path := writeYAML(t, "ui:\n  fps: 12\n")
	t.Setenv(PathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile = %q, want %q", got, path)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI.FPS != 12 {
		t.Errorf("FPS = %d, want 12", cfg.UI.FPS)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"TRACKLENS_SERVICE_TIMEOUT":         "service.timeout",
		"TRACKLENS_UI_DEFAULT_CLUSTERS":     "ui.default_clusters",
		"TRACKLENS_DATA_DIR":                "data.dir",
		"TRACKLENS_SERVICE_URL":             "service.base_url",
		"TRACKLENS_TOKEN":                   "session.token",
		"TRACKLENS_CONFIG":                  "",
		"TRACKLENS_UNKNOWN_THING":           "",
		"TRACKLENS_SERVICE_BREAKER_TIMEOUT": "service.breaker_timeout",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnvValueFuncSplitsLists(t *testing.T) {
	key, val := envValueFunc("TRACKLENS_UI_FEATURES", " energy,tempo ,, valence")
	if key != "ui.features" {
		t.Fatalf("key = %q", key)
	}
	if !reflect.DeepEqual(val, []string{"energy", "tempo", "valence"}) {
		t.Errorf("value = %#v", val)
	}

	key, val = envValueFunc("TRACKLENS_SESSION_TOKEN", "a,b")
	if key != "session.token" || val != "a,b" {
		t.Errorf("scalar = %q %#v, want the value untouched", key, val)
	}
}

func TestEnvFeaturesReachRecompute(t *testing.T) {
	t.Setenv("TRACKLENS_UI_FEATURES", "danceability,valence")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(cfg.UI.Features, []string{"danceability", "valence"}) {
		t.Errorf("Features = %q", cfg.UI.Features)
	}
}

func TestServiceOptions(t *testing.T) {
	cfg := defaultConfig()
	cfg.Service.MaxRetries = 0
	opts := cfg.ServiceOptions()
	if opts.MaxRetries >= 0 {
		t.Errorf("zero retries must disable retrying, got %d", opts.MaxRetries)
	}
	if opts.BaseURL != cfg.Service.BaseURL || opts.BreakerFailures != 5 {
		t.Errorf("opts = %+v", opts)
	}
}
