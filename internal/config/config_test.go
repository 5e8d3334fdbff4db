package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var auraEnv = []string{
	"AURA_STORE", "AURA_DB", "AURA_REDIS_URL", "AURA_GENERATOR", "GEMINI_API_KEY",
	"API_KEY", "AURA_GEMINI_MODEL", "AURA_GEMINI_ENDPOINT", "AURA_GENERATOR_ADDR",
	"AURA_GENERATE_TIMEOUT", "AURA_RETRY_ATTEMPTS", "AURA_RETRY_BACKOFF",
	"AURA_RATE_LIMIT", "AURA_LOG_LEVEL", "AURA_LOG_FORMAT",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range auraEnv {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Refresh.RetryAttempts != 0 {
		t.Fatal("automatic retry must be off by default")
	}
}

func TestLoadMissingFilesAreIgnored(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("missing files should not fail: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "aura.yaml", `
store:
  backend: memory
generator:
  kind: grpc
  addr: gen:9000
  timeout: 5s
refresh:
  retry_attempts: 2
  retry_backoff: 250ms
log:
  format: json
`)
	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "memory" || cfg.Generator.Kind != "grpc" || cfg.Generator.Addr != "gen:9000" {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.Generator.Timeout != 5*time.Second || cfg.Refresh.RetryBackoff != 250*time.Millisecond {
		t.Errorf("durations not parsed: %+v", cfg)
	}
	if cfg.Refresh.RetryAttempts != 2 || cfg.Log.Format != "json" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("unset yaml keys should keep defaults, got level %q", cfg.Log.Level)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "aura.yaml", "store:\n  path: from-yaml.db\n")
	t.Setenv("AURA_DB", "from-env.db")
	t.Setenv("API_KEY", "fallback-key")
	t.Setenv("AURA_RETRY_ATTEMPTS", "3")
	t.Setenv("AURA_RATE_LIMIT", "0.5")
	t.Setenv("AURA_GENERATE_TIMEOUT", "1m")

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "from-env.db" {
		t.Errorf("env should win over yaml, got %q", cfg.Store.Path)
	}
	if cfg.Generator.APIKey != "fallback-key" {
		t.Errorf("API_KEY should be honored, got %q", cfg.Generator.APIKey)
	}
	if cfg.Refresh.RetryAttempts != 3 || cfg.Generator.RatePerSecond != 0.5 || cfg.Generator.Timeout != time.Minute {
		t.Errorf("numeric env overrides not applied: %+v", cfg)
	}

	t.Setenv("GEMINI_API_KEY", "primary-key")
	cfg, _ = Load(path, "")
	if cfg.Generator.APIKey != "primary-key" {
		t.Errorf("GEMINI_API_KEY should take precedence, got %q", cfg.Generator.APIKey)
	}
}

func TestDotenvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "AURA_LOG_LEVEL=debug\nAURA_GEMINI_MODEL=from-dotenv\n")
	t.Setenv("AURA_GEMINI_MODEL", "from-process")
	// godotenv never overrides a variable that is present, even when empty.
	os.Unsetenv("AURA_LOG_LEVEL")
	t.Cleanup(func() { os.Unsetenv("AURA_LOG_LEVEL") })

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("dotenv value not applied, got %q", cfg.Log.Level)
	}
	if cfg.Generator.Model != "from-process" {
		t.Errorf("process env should win over dotenv, got %q", cfg.Generator.Model)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		yaml string
		env  map[string]string
		want string
	}{
		"bad yaml":       {yaml: "store: [", want: "parse config"},
		"bad backend":    {yaml: "store:\n  backend: etcd\n", want: "unknown store backend"},
		"redis no url":   {yaml: "store:\n  backend: redis\n", want: "redis url"},
		"bad generator":  {yaml: "generator:\n  kind: openai\n", want: "unknown generator"},
		"bad duration":   {env: map[string]string{"AURA_RETRY_BACKOFF": "soon"}, want: "AURA_RETRY_BACKOFF"},
		"bad attempts":   {env: map[string]string{"AURA_RETRY_ATTEMPTS": "many"}, want: "AURA_RETRY_ATTEMPTS"},
		"negative retry": {env: map[string]string{"AURA_RETRY_ATTEMPTS": "-1"}, want: "retry attempts"},
		"bad rate":       {env: map[string]string{"AURA_RATE_LIMIT": "fast"}, want: "AURA_RATE_LIMIT"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.yaml != "" {
				path = writeFile(t, "aura.yaml", tc.yaml)
			}
			_, err := Load(path, "")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
