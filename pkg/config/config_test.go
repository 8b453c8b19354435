package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file should fall back to defaults, got error: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Path == "" {
		t.Error("Expected a default store path, got empty string")
	}
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: debug
  format: json
  output: stderr
shutdown_timeout: 10s
metrics:
  enabled: true
  port: 9191
store:
  path: /tmp/ue
  powerwash_safe_path: /tmp/ue-pw
  value_log_file_size: 128Mi
update_engine:
  max_failures_per_url: 3
  backoff_cap_days: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected log level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", cfg.ShutdownTimeout)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9191 {
		t.Errorf("Expected metrics enabled on port 9191, got %+v", cfg.Metrics)
	}
	if cfg.Store.Path != "/tmp/ue" || cfg.Store.PowerwashSafePath != "/tmp/ue-pw" {
		t.Errorf("Unexpected store paths: %+v", cfg.Store)
	}
	if cfg.Store.ValueLogFileSize != 128*1024*1024 {
		t.Errorf("Expected 128Mi value log size, got %d", cfg.Store.ValueLogFileSize)
	}
	if cfg.UpdateEngine.MaxFailuresPerURL != 3 {
		t.Errorf("Expected max_failures_per_url 3, got %d", cfg.UpdateEngine.MaxFailuresPerURL)
	}
	if cfg.UpdateEngine.BackoffCapDays != 8 {
		t.Errorf("Expected backoff_cap_days 8, got %d", cfg.UpdateEngine.BackoffCapDays)
	}
	// Omitted update-engine fields still receive defaults.
	if cfg.UpdateEngine.BackoffJitterFrac != 0.05 {
		t.Errorf("Expected default jitter 0.05, got %v", cfg.UpdateEngine.BackoffJitterFrac)
	}
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: loud
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected validation error for log level 'loud', got nil")
	}
}

func TestSaveConfig_RoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.UpdateEngine.MaxFailuresPerURL = 7

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load after SaveConfig failed: %v", err)
	}
	if !loaded.Metrics.Enabled {
		t.Error("Expected metrics enabled after round-trip")
	}
	if loaded.UpdateEngine.MaxFailuresPerURL != 7 {
		t.Errorf("Expected max_failures_per_url 7 after round-trip, got %d", loaded.UpdateEngine.MaxFailuresPerURL)
	}
}

func TestValidate_RejectsMissingStorePath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Path = ""

	if err := Validate(cfg); err == nil {
		t.Error("Expected validation error for empty store path, got nil")
	}
}
