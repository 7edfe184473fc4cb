// Package config defines the validated cleaning configuration and the store
// that persists it between runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/extensions"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.Base("invalid configuration")

// Configuration is an immutable, validated cleaning configuration.
// The zero value is the empty configuration: no target, no extensions.
type Configuration struct {
	targetDir  string
	extensions extensions.Set
}

// New validates targetDir and exts. An empty targetDir means "no target".
// Unrecognized extensions are rejected, never dropped.
func New(targetDir string, exts []string) (Configuration, error) {
	var cfg Configuration

	targetDir = strings.TrimSpace(targetDir)
	if targetDir != "" {
		abs, err := filepath.Abs(targetDir)
		if err != nil {
			return Configuration{}, errors.Errorf("%w: resolve %q: %s", ErrInvalid, targetDir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Configuration{}, errors.Errorf("%w: target directory does not exist: %s", ErrInvalid, abs)
			}
			return Configuration{}, errors.Errorf("%w: target directory %s: %s", ErrInvalid, abs, err)
		}
		if !info.IsDir() {
			return Configuration{}, errors.Errorf("%w: target path is not a directory: %s", ErrInvalid, abs)
		}
		cfg.targetDir = abs
	}

	var unknown []string
	set := make(extensions.Set, len(exts))
	for _, e := range exts {
		n := extensions.Normalize(e)
		if n == "" {
			continue
		}
		if !extensions.Recognized(n) {
			unknown = append(unknown, e)
			continue
		}
		set[n] = struct{}{}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Configuration{}, errors.Errorf("%w: unrecognized extensions %s", ErrInvalid, strings.Join(unknown, ", "))
	}
	cfg.extensions = set
	return cfg, nil
}

// Empty returns the safe default configuration.
func Empty() Configuration { return Configuration{} }

// TargetDir is the absolute target directory, or "" when none is set.
func (c Configuration) TargetDir() string { return c.targetDir }

// HasTarget reports whether a target directory is configured.
func (c Configuration) HasTarget() bool { return c.targetDir != "" }

// Extensions returns the configured extensions sorted.
func (c Configuration) Extensions() []string { return c.extensions.Sorted() }

// ExtensionSet returns a copy of the configured extensions.
func (c Configuration) ExtensionSet() extensions.Set { return c.extensions.Clone() }

// Matches reports whether a file name is a deletion candidate.
func (c Configuration) Matches(name string) bool { return c.extensions.Matches(name) }

// WithTarget returns a validated copy with a different target directory.
func (c Configuration) WithTarget(dir string) (Configuration, error) {
	return New(dir, c.Extensions())
}

// WithExtensions returns a validated copy with a different extension set.
func (c Configuration) WithExtensions(exts []string) (Configuration, error) {
	return New(c.targetDir, exts)
}

func (c Configuration) String() string {
	target := c.targetDir
	if target == "" {
		target = "<none>"
	}
	return fmt.Sprintf("target=%s extensions=[%s]", target, strings.Join(c.Extensions(), " "))
}
