package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// Settings configures the ctl process. Network payloads are loaded separately
// with LoadNetwork.
type Settings struct {
	Logging LoggingSettings `json:"logging" yaml:"logging"`
	Store   StoreSettings   `json:"store" yaml:"store"`
}

type LoggingSettings struct {
	// Level is "error", "warn", "info" (default), "debug" or "trace". Trace adds
	// the ids of every neuron that fired to each step log.
	Level string `json:"level" yaml:"level"`
}

type StoreSettings struct {
	// Kind is "memory" (default) or "sqlite".
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// CacheSize is the sqlite page cache budget, e.g. "16MB". Empty keeps the
	// sqlite default.
	CacheSize string `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

func Default() *Settings {
	return &Settings{
		Logging: LoggingSettings{Level: "info"},
		Store:   StoreSettings{Kind: "memory", Path: "crisim.db"},
	}
}

// LoadSettings reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func LoadSettings(path string) (*Settings, error) {
	settings, err := ReadSettings(path)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// ReadSettings is LoadSettings without validation, for callers that layer
// further overrides before calling Validate.
func ReadSettings(path string) (*Settings, error) {
	settings := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parsing settings file: %w", err)
		}
	}
	applyEnvOverrides(settings)
	return settings, nil
}

func (s *Settings) Validate() error {
	validLevels := map[string]bool{"error": true, "warn": true, "info": true, "debug": true, "trace": true}
	if s.Logging.Level != "" && !validLevels[strings.ToLower(s.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: error, warn, info, debug, trace)", s.Logging.Level)
	}
	switch s.Store.Kind {
	case "", "memory":
	case "sqlite":
		if s.Store.Path == "" {
			return fmt.Errorf("sqlite store requires store.path")
		}
	default:
		return fmt.Errorf("invalid store kind: %s (valid: memory, sqlite)", s.Store.Kind)
	}
	if _, err := s.CacheSize(); err != nil {
		return err
	}
	return nil
}

// CacheSize parses Store.CacheSize. An empty value yields zero.
func (s *Settings) CacheSize() (datasize.ByteSize, error) {
	if strings.TrimSpace(s.Store.CacheSize) == "" {
		return 0, nil
	}
	size, err := datasize.ParseString(s.Store.CacheSize)
	if err != nil {
		return 0, fmt.Errorf("invalid cache_size %q: %w", s.Store.CacheSize, err)
	}
	return size, nil
}

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv("CRISIM_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv("CRISIM_STORE"); v != "" {
		s.Store.Kind = v
	}
	if v := os.Getenv("CRISIM_DB_PATH"); v != "" {
		s.Store.Path = v
	}
	if v := os.Getenv("CRISIM_CACHE_SIZE"); v != "" {
		s.Store.CacheSize = v
	}
}
