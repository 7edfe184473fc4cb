package deleter

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
)

// FS is the filesystem surface a cleaning run reads and mutates.
type FS interface {
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	// Remove deletes a single file.
	Remove(name string) error
	// RemoveDir deletes an empty directory.
	RemoveDir(name string) error
}

// OS returns the real filesystem.
func OS() FS { return osFS{} }

type osFS struct{}

func (osFS) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (osFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (osFS) Remove(name string) error                   { return os.Remove(name) }
func (osFS) RemoveDir(name string) error                { return os.Remove(name) }

// DryRun simulates mutations on top of a base FS. Removed paths are
// remembered and hidden from Lstat and ReadDir, so later checks in the same
// run see the simulated state while nothing on disk changes.
type DryRun struct {
	base FS

	mu      sync.Mutex
	removed map[string]struct{}
}

// NewDryRun wraps base. A nil base means the real filesystem.
func NewDryRun(base FS) *DryRun {
	if base == nil {
		base = OS()
	}
	return &DryRun{base: base, removed: make(map[string]struct{})}
}

func (d *DryRun) gone(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.removed[filepath.Clean(name)]
	return ok
}

func (d *DryRun) mark(name string) {
	d.mu.Lock()
	d.removed[filepath.Clean(name)] = struct{}{}
	d.mu.Unlock()
}

func (d *DryRun) Lstat(name string) (fs.FileInfo, error) {
	if d.gone(name) {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrNotExist}
	}
	return d.base.Lstat(name)
}

func (d *DryRun) ReadDir(name string) ([]fs.DirEntry, error) {
	if d.gone(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	entries, err := d.base.ReadDir(name)
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if d.gone(filepath.Join(name, e.Name())) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

func (d *DryRun) Remove(name string) error {
	info, err := d.Lstat(name)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if info.IsDir() {
		return &fs.PathError{Op: "remove", Path: name, Err: syscall.EISDIR}
	}
	d.mark(name)
	return nil
}

func (d *DryRun) RemoveDir(name string) error {
	entries, err := d.ReadDir(name)
	if err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	if len(entries) > 0 {
		return &fs.PathError{Op: "remove", Path: name, Err: syscall.ENOTEMPTY}
	}
	d.mark(name)
	return nil
}

// Removed lists the simulated removals in lexical order.
func (d *DryRun) Removed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.removed))
	for p := range d.removed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
