package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	d := Default()
	if err := validate(d); err != nil {
		t.Fatalf("default tuning failed validation: %v", err)
	}
}

func TestLoadWithNoFilesReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialFetchSize != DefaultFetchSize {
		t.Fatalf("InitialFetchSize = %d, want %d", cfg.InitialFetchSize, DefaultFetchSize)
	}
	if cfg.MaxWriteRetries != DefaultMaxRetries {
		t.Fatalf("MaxWriteRetries = %d, want %d", cfg.MaxWriteRetries, DefaultMaxRetries)
	}
}

func TestProjectConfigOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	projectFile := filepath.Join(dir, ConfigFileName)
	content := `{
		// prefer smaller chunks on this FRU
		"initial_fetch_size": 16,
	}`
	if err := os.WriteFile(projectFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialFetchSize != 16 {
		t.Fatalf("InitialFetchSize = %d, want 16", cfg.InitialFetchSize)
	}
	if cfg.MaxWriteRetries != DefaultMaxRetries {
		t.Fatalf("MaxWriteRetries = %d, want unchanged default %d", cfg.MaxWriteRetries, DefaultMaxRetries)
	}
}

func TestExplicitPathOverridesProject(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"initial_fetch_size": 16}`), 0o644); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(dir, "explicit.json")
	if err := os.WriteFile(explicit, []byte(`{"initial_fetch_size": 24, "max_write_retries": 5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir, explicit)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InitialFetchSize != 24 {
		t.Fatalf("InitialFetchSize = %d, want 24", cfg.InitialFetchSize)
	}
	if cfg.MaxWriteRetries != 5 {
		t.Fatalf("MaxWriteRetries = %d, want 5", cfg.MaxWriteRetries)
	}
}

func TestExplicitPathMissingIsError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	if _, err := Load(dir, filepath.Join(dir, "does-not-exist.json")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestWordAccessOverridesMerge(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"word_access_overrides": {"3": true}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.WordAccessOverrides[3] {
		t.Fatalf("expected device 3 word-access override to be true")
	}
}

func TestInvalidFetchSizeRejected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-empty"))

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"initial_fetch_size": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir, ""); err == nil {
		t.Fatal("expected validation error for out-of-range fetch size")
	}
}
