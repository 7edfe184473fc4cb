package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath overrides the default store location.
	EnvConfigPath = "ETC_CONFIG"

	defaultFileName = "embroidery_template_cleaner.config.json"
)

// Record is the persisted form of a Configuration.
type Record struct {
	TargetDirectory    string   `json:"target_directory" yaml:"target_directory"`
	ExtensionsToDelete []string `json:"extensions_to_delete" yaml:"extensions_to_delete"`
}

// Store reads and writes a Record at a fixed path. Paths ending in .yaml or
// .yml use YAML, everything else JSON.
type Store struct {
	path string
}

// NewStore returns a store at path, or at DefaultPath when path is empty.
func NewStore(path string) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

// DefaultPath is $ETC_CONFIG, or the config file in the home directory.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultFileName
	}
	return filepath.Join(home, defaultFileName)
}

// Path is the file this store reads and writes.
func (s *Store) Path() string { return s.path }

func (s *Store) isYAML() bool {
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the stored configuration. A missing file yields the empty
// configuration and no error. A corrupt or invalid record yields the empty
// configuration together with the reason, so callers can warn and carry on.
func (s *Store) Load() (Configuration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return Empty(), errors.Errorf("read config %s: %w", s.path, err)
	}

	var rec Record
	if s.isYAML() {
		err = yaml.Unmarshal(data, &rec)
	} else {
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return Empty(), errors.Errorf("parse config %s: %w", s.path, err)
	}

	cfg, err := New(rec.TargetDirectory, rec.ExtensionsToDelete)
	if err != nil {
		return Empty(), errors.Errorf("load config %s: %w", s.path, err)
	}
	return cfg, nil
}

// Save writes cfg through a temp file and rename so a crash never leaves a
// half-written record behind.
func (s *Store) Save(cfg Configuration) error {
	rec := Record{
		TargetDirectory:    cfg.TargetDir(),
		ExtensionsToDelete: cfg.Extensions(),
	}

	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(rec)
	} else {
		data, err = json.MarshalIndent(rec, "", "  ")
	}
	if err != nil {
		return errors.WithStack(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return errors.Errorf("save config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Errorf("save config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Errorf("save config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Errorf("save config: %w", err)
	}
	return nil
}
