// Package config loads engine tuning parameters from a HuJSON (JSON with
// comments) file, adapted from calvinalkan-agent-task's config.go: the same
// default -> global -> project -> explicit precedence chain, applied here
// to FRU read/write tuning instead of ticket-store paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Tuning holds the engine's configurable knobs. Every field has a spec.md
// default; a config file only needs to set what it wants to override.
type Tuning struct {
	// InitialFetchSize is the starting read chunk size (§3: "adaptive
	// 16-32 byte chunking"). Must be between MinFetchSize and MaxFetchSize.
	InitialFetchSize int `json:"initial_fetch_size,omitempty"`

	// MaxWriteRetries bounds device-busy write retries (§4.E/§8).
	MaxWriteRetries int `json:"max_write_retries,omitempty"`

	// WordAccessOverrides forces access_by_words for specific device IDs,
	// for devices known to misreport their access-flags bit.
	WordAccessOverrides map[uint8]bool `json:"word_access_overrides,omitempty"`
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".ipmifru.json"

const (
	MinFetchSize      = 16
	MaxFetchSize      = 32
	DefaultFetchSize  = 32
	DefaultMaxRetries = 30
)

// Default returns the spec-mandated tuning defaults.
func Default() Tuning {
	return Tuning{
		InitialFetchSize: DefaultFetchSize,
		MaxWriteRetries:  DefaultMaxRetries,
	}
}

// Load resolves tuning with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/ipmifru/config.json, else
//    ~/.config/ipmifru/config.json)
// 3. Project config file at workDir/.ipmifru.json, if present
// 4. Explicit config file at configPath, if non-empty
func Load(workDir, configPath string) (Tuning, error) {
	cfg := Default()

	globalCfg, err := loadOptional(globalConfigPath())
	if err != nil {
		return Tuning{}, err
	}
	cfg = merge(cfg, globalCfg)

	projectCfg, err := loadOptional(filepath.Join(workDir, ConfigFileName))
	if err != nil {
		return Tuning{}, err
	}
	cfg = merge(cfg, projectCfg)

	if configPath != "" {
		explicitCfg, err := loadRequired(configPath)
		if err != nil {
			return Tuning{}, err
		}
		cfg = merge(cfg, explicitCfg)
	}

	if err := validate(cfg); err != nil {
		return Tuning{}, err
	}
	return cfg, nil
}

func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ipmifru", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ipmifru", "config.json")
}

func loadOptional(path string) (Tuning, error) {
	if path == "" {
		return Tuning{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tuning{}, nil
		}
		return Tuning{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(data, path)
}

func loadRequired(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, path string) (Tuning, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Tuning{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	var t Tuning
	if err := json.Unmarshal(standardized, &t); err != nil {
		return Tuning{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return t, nil
}

// merge overlays override's explicitly-set fields onto base.
func merge(base, override Tuning) Tuning {
	if override.InitialFetchSize != 0 {
		base.InitialFetchSize = override.InitialFetchSize
	}
	if override.MaxWriteRetries != 0 {
		base.MaxWriteRetries = override.MaxWriteRetries
	}
	if override.WordAccessOverrides != nil {
		if base.WordAccessOverrides == nil {
			base.WordAccessOverrides = make(map[uint8]bool)
		}
		for k, v := range override.WordAccessOverrides {
			base.WordAccessOverrides[k] = v
		}
	}
	return base
}

func validate(t Tuning) error {
	if t.InitialFetchSize < MinFetchSize || t.InitialFetchSize > MaxFetchSize {
		return fmt.Errorf("initial_fetch_size %d out of range [%d,%d]", t.InitialFetchSize, MinFetchSize, MaxFetchSize)
	}
	if t.MaxWriteRetries < 0 {
		return fmt.Errorf("max_write_retries must be >= 0, got %d", t.MaxWriteRetries)
	}
	return nil
}
