package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EventDurationMinutes != 30 {
		t.Fatalf("EventDurationMinutes = %d, want 30", cfg.EventDurationMinutes)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC", cfg.Timezone)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"event_duration_minutes": 45, "timezone": "Europe/Berlin"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EventDuration() != 45*time.Minute {
		t.Fatalf("EventDuration() = %v, want 45m", cfg.EventDuration())
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("Timezone = %q, want Europe/Berlin", cfg.Timezone)
	}
	// untouched fields keep their defaults
	if cfg.ContentMaxChars != 5000 {
		t.Fatalf("ContentMaxChars = %d, want 5000", cfg.ContentMaxChars)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"timezone": "America/New_York", "disabled_tools": ["post_delete"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	repoDir := filepath.Join(repoRoot, ".cadence")
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"timezone": "Asia/Tokyo", "disabled_tools": ["post_create"]}`
	if err := os.WriteFile(filepath.Join(repoDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want Asia/Tokyo (repo override)", cfg.Timezone)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 merged entries", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.RequestTimeoutSeconds != 10 {
		t.Errorf("RequestTimeoutSeconds = %d, want 10", cfg.RequestTimeoutSeconds)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{EventDurationMinutes: 30, DBMaxOpenConns: 5, StoreURL: "http://a"}
	overlay := &Config{EventDurationMinutes: 15}

	result := Merge(base, overlay)

	if result.EventDurationMinutes != 15 {
		t.Errorf("EventDurationMinutes = %d, want 15", result.EventDurationMinutes)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base preserved)", result.DBMaxOpenConns)
	}
	if result.StoreURL != "http://a" {
		t.Errorf("StoreURL = %q, want base value", result.StoreURL)
	}
}

func TestMerge_ArrayDedup(t *testing.T) {
	base := &Config{DisabledTypes: []string{"post", " calendar "}}
	overlay := &Config{DisabledTypes: []string{"calendar", ""}}

	result := Merge(base, overlay)
	if len(result.DisabledTypes) != 2 {
		t.Errorf("DisabledTypes = %v, want [post calendar]", result.DisabledTypes)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CADENCE_TIMEZONE":               "Europe/Paris",
		"CADENCE_EVENT_DURATION_MINUTES": "20",
		"CADENCE_STORE_URL":              " http://store:8731 ",
		"CADENCE_RETRY_MAX":              "",
	}
	cfg := DefaultConfig()
	if err := ApplyEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q, want Europe/Paris", cfg.Timezone)
	}
	if cfg.EventDurationMinutes != 20 {
		t.Errorf("EventDurationMinutes = %d, want 20", cfg.EventDurationMinutes)
	}
	if cfg.StoreURL != "http://store:8731" {
		t.Errorf("StoreURL = %q, want trimmed value", cfg.StoreURL)
	}
	if cfg.RetryMax != 2 {
		t.Errorf("RetryMax = %d, want default 2", cfg.RetryMax)
	}
}

func TestApplyEnv_BadNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(cfg, func(k string) string {
		if k == "CADENCE_HTTP_PORT" {
			return "eighty"
		}
		return ""
	})
	if err == nil {
		t.Fatal("ApplyEnv() expected error, got nil")
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v; want UTC", loc, err)
	}

	cfg.Timezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Error("Location() expected error for unknown zone")
	}
}
