package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrEnumerate means the target directory itself could not be listed.
var ErrEnumerate = errors.Base("cannot enumerate target directory")

// Entry describes one filesystem entry captured by a snapshot.
type Entry struct {
	Path  string
	IsDir bool
	Depth int // 1 for direct children of the root
}

// Options defines snapshot behavior.
type Options struct {
	MaxDepth int      // -1 or 0 unlimited
	Excludes []string // glob patterns matched against full path and base name
}

// Snapshot is the one-time enumeration of a target subtree. It is taken
// before any mutation and never refreshed.
type Snapshot struct {
	Root     string
	Entries  []Entry
	Warnings []error // unreadable entries below the root
}

// Take walks root depth-first in lexical order. Symlinked directories are
// recorded but not descended into. Failure to read root itself returns
// ErrEnumerate; failures below root are collected as warnings.
func Take(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrEnumerate, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%w: %s is not a directory", ErrEnumerate, root)
	}

	snap := &Snapshot{Root: root}
	rootDepth := depthOf(root)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return errors.Errorf("%w: %s", ErrEnumerate, err)
			}
			snap.Warnings = append(snap.Warnings, fmt.Errorf("walk error at %s: %w", path, err))
			return nil // continue
		}
		if path == root {
			return nil
		}
		if excluded(path, opts.Excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		depth := depthOf(path) - rootDepth
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		snap.Entries = append(snap.Entries, Entry{Path: path, IsDir: d.IsDir(), Depth: depth})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, ErrEnumerate) {
			return nil, walkErr
		}
		return nil, errors.WithStack(walkErr)
	}
	return snap, nil
}

// Files returns the non-directory entries in walk order.
func (s *Snapshot) Files() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if !e.IsDir {
			out = append(out, e)
		}
	}
	return out
}

// DirsDeepestFirst returns the directory entries ordered by depth,
// deepest first, keeping walk order among equal depths.
func (s *Snapshot) DirsDeepestFirst() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.IsDir {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out
}

// Warning merges the collected warnings into one error, or nil.
func (s *Snapshot) Warning() error {
	return combineErrors(s.Warnings)
}

func depthOf(p string) int {
	clean := filepath.Clean(p)
	if clean == string(os.PathSeparator) {
		return 0
	}
	depth := 0
	for {
		parent := filepath.Dir(clean)
		if parent == clean {
			break
		}
		depth++
		clean = parent
	}
	return depth
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, e := range errs {
		if e == nil {
			continue
		}
		b.WriteString("\n - ")
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}

func excluded(p string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	base := filepath.Base(p)
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if ok, _ := filepath.Match(pat, p); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
