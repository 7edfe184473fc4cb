// Package cleaner runs the cleaning walk: it snapshots the target tree,
// deletes files with configured extensions and prunes the directories that
// deletion leaves empty, asking the user whenever a decision is needed.
package cleaner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/deleter"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/scanner"
)

// State is a stage of a cleaning run.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateDeletingFiles
	StatePruningDirectories
	StateDone
	StateAborted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDeletingFiles:
		return "deleting-files"
	case StatePruningDirectories:
		return "pruning-directories"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PruneMode selects when empty directories are removed.
type PruneMode int

const (
	// PruneUpward walks up from each deleted file right after deleting it.
	PruneUpward PruneMode = iota
	// PruneDeferred only runs the deepest-first pass after all deletions.
	PruneDeferred
	// PruneBoth walks upward and runs the deferred pass.
	PruneBoth
)

// ParsePruneMode accepts "upward", "deferred" or "both".
func ParsePruneMode(s string) (PruneMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "upward":
		return PruneUpward, nil
	case "deferred":
		return PruneDeferred, nil
	case "both":
		return PruneBoth, nil
	}
	return 0, errors.Errorf("unknown prune mode %q", s)
}

func (m PruneMode) String() string {
	switch m {
	case PruneDeferred:
		return "deferred"
	case PruneBoth:
		return "both"
	default:
		return "upward"
	}
}

// Options configures a Cleaner.
type Options struct {
	FS     deleter.FS // nil means the real filesystem, or a dry run over it
	DryRun bool
	Prune  PruneMode
	Scan   scanner.Options
}

// Result summarizes a run. DeletedCount only counts files matching the
// configured extensions; display files removed while pruning are counted
// separately.
type Result struct {
	State               State
	TargetDir           string
	DeletedCount        int
	RemovedDirs         int
	DisplayFilesRemoved int
	Skipped             int
	FreedBytes          int64
	DryRun              bool
}

// Cleaner performs one cleaning run. It is not safe for concurrent use and
// must not be reused.
type Cleaner struct {
	ch     events.Channel
	fs     deleter.FS
	exec   *deleter.Executor
	oracle *Oracle
	opts   Options

	root  string
	state State
	res   Result
}

// New returns a Cleaner that reports to ch. A nil opts.FS means the real
// filesystem.
func New(ch events.Channel, opts Options) *Cleaner {
	fsys := opts.FS
	if fsys == nil {
		fsys = deleter.OS()
	}
	if opts.DryRun {
		if _, ok := fsys.(*deleter.DryRun); !ok {
			fsys = deleter.NewDryRun(fsys)
		}
	}
	exec := deleter.NewExecutor(ch)
	return &Cleaner{
		ch:     ch,
		fs:     fsys,
		exec:   exec,
		oracle: NewOracle(fsys, ch, exec),
		opts:   opts,
	}
}

// Run cleans cfg's target directory. It always ends by emitting exactly one
// CleaningResult or ErrorOccurred on the channel. Panics are recovered and
// reported as errors.
func (c *Cleaner) Run(ctx context.Context, cfg config.Configuration) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			err = errors.Errorf("unexpected failure: %v", r)
			zerolog.Ctx(ctx).Error().Str("stack", stack).Msg(err.Error())
			c.state = StateError
			c.collect()
			c.ch.Notify(events.ErrorOccurred{
				Message: fmt.Sprintf("A critical error occurred: %v", r),
				Detail:  stack,
			})
			res = c.res
		}
	}()

	c.res = Result{TargetDir: cfg.TargetDir(), DryRun: c.opts.DryRun}
	if !cfg.HasTarget() {
		c.status("No target directory configured.")
		return c.finish(ctx)
	}

	c.root = cfg.TargetDir()
	if resolved, err := filepath.EvalSymlinks(c.root); err == nil {
		c.root = resolved
	}

	c.setState(ctx, StateScanning)
	c.status("Scanning all items in target directory...")
	snap, err := scanner.Take(ctx, c.root, c.opts.Scan)
	if err != nil {
		return c.fail(ctx, err)
	}
	for _, w := range snap.Warnings {
		c.status(fmt.Sprintf("Skipping unreadable entry: %v", w))
	}
	if w := snap.Warning(); w != nil {
		zerolog.Ctx(ctx).Warn().Err(w).Int("count", len(snap.Warnings)).Msg("unreadable entries skipped")
	}

	c.setState(ctx, StateDeletingFiles)
	c.status(fmt.Sprintf("Found %d items. Deleting specified file types...", len(snap.Entries)))
	if err := c.deleteFiles(ctx, cfg, snap); err != nil {
		return c.fail(ctx, err)
	}

	if c.opts.Prune != PruneUpward {
		c.setState(ctx, StatePruningDirectories)
		c.status("Removing empty directories...")
		if err := c.pruneDeferred(ctx, snap); err != nil {
			return c.fail(ctx, err)
		}
	}

	return c.finish(ctx)
}

func (c *Cleaner) deleteFiles(ctx context.Context, cfg config.Configuration, snap *scanner.Snapshot) error {
	for _, e := range snap.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(e.Path)
		if !cfg.Matches(name) {
			continue
		}
		// Upward pruning of an earlier sibling may already have removed it.
		info, err := c.fs.Lstat(e.Path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.status(fmt.Sprintf("Cannot inspect %s: %v. Skipping.", e.Path, err))
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		c.status("Deleting file: " + e.Path)
		path := e.Path
		done, err := c.exec.Do(ctx, fmt.Sprintf("deleting file '%s'", name), path, func() error {
			return c.fs.Remove(path)
		})
		if err != nil {
			return err
		}
		if !done {
			c.res.Skipped++
			continue
		}
		c.res.DeletedCount++
		c.res.FreedBytes += info.Size()

		if c.opts.Prune != PruneDeferred {
			if err := c.pruneUpward(ctx, filepath.Dir(path)); err != nil {
				return err
			}
		}
	}
	return nil
}

// pruneUpward removes dir and its ancestors while they reconcile to empty.
// It never inspects the root or anything outside it.
func (c *Cleaner) pruneUpward(ctx context.Context, dir string) error {
	for c.within(dir) {
		empty, err := c.oracle.Reconcile(ctx, dir)
		if err != nil {
			return err
		}
		if !empty {
			return nil
		}
		removed, err := c.removeDir(ctx, dir)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		dir = filepath.Dir(dir)
	}
	zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("stopped pruning at target directory")
	return nil
}

// pruneDeferred visits the snapshot's directories deepest-first.
func (c *Cleaner) pruneDeferred(ctx context.Context, snap *scanner.Snapshot) error {
	for _, d := range snap.DirsDeepestFirst() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.within(d.Path) {
			continue
		}
		if _, err := c.fs.Lstat(d.Path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		empty, err := c.oracle.Reconcile(ctx, d.Path)
		if err != nil {
			return err
		}
		if !empty {
			continue
		}
		if _, err := c.removeDir(ctx, d.Path); err != nil {
			return err
		}
	}
	return nil
}

// removeDir removes an empty directory. A directory that is already gone
// counts as removed.
func (c *Cleaner) removeDir(ctx context.Context, dir string) (bool, error) {
	if _, err := c.fs.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	c.status("Removing empty directory: " + dir)
	done, err := c.exec.Do(ctx, fmt.Sprintf("removing directory '%s'", filepath.Base(dir)), dir, func() error {
		return c.fs.RemoveDir(dir)
	})
	if err != nil {
		return false, err
	}
	if done {
		c.res.RemovedDirs++
	} else {
		c.res.Skipped++
	}
	return done, nil
}

// within reports whether p is a strict descendant of the run's root.
func (c *Cleaner) within(p string) bool {
	if c.root == "" {
		return false
	}
	rel, err := filepath.Rel(c.root, p)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (c *Cleaner) status(msg string) {
	c.ch.Notify(events.StatusUpdate{Message: msg})
}

func (c *Cleaner) setState(ctx context.Context, s State) {
	zerolog.Ctx(ctx).Debug().Stringer("from", c.state).Stringer("to", s).Msg("state change")
	c.state = s
}

func (c *Cleaner) collect() {
	c.res.DisplayFilesRemoved = c.oracle.removed
	c.res.Skipped += c.oracle.skipped
	c.oracle.skipped = 0
	c.res.State = c.state
}

func (c *Cleaner) finish(ctx context.Context) (Result, error) {
	c.setState(ctx, StateDone)
	c.collect()
	zerolog.Ctx(ctx).Info().
		Int("deleted", c.res.DeletedCount).
		Int("dirs", c.res.RemovedDirs).
		Int("display", c.res.DisplayFilesRemoved).
		Int("skipped", c.res.Skipped).
		Bool("dry_run", c.res.DryRun).
		Msg("cleaning finished")
	c.ch.Notify(events.CleaningResult{
		DeletedCount:        c.res.DeletedCount,
		TargetDir:           c.res.TargetDir,
		RemovedDirs:         c.res.RemovedDirs,
		DisplayFilesRemoved: c.res.DisplayFilesRemoved,
		Skipped:             c.res.Skipped,
		FreedBytes:          c.res.FreedBytes,
		DryRun:              c.res.DryRun,
	})
	return c.res, nil
}

func (c *Cleaner) fail(ctx context.Context, err error) (Result, error) {
	logger := zerolog.Ctx(ctx)
	var ev events.ErrorOccurred
	switch {
	case errors.Is(err, deleter.ErrAborted):
		c.setState(ctx, StateAborted)
		ev = events.ErrorOccurred{Message: "user aborted", Aborted: true}
		logger.Warn().Int("deleted", c.res.DeletedCount).Msg("cleaning aborted by user")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.setState(ctx, StateAborted)
		ev = events.ErrorOccurred{Message: "cleaning cancelled", Aborted: true}
		logger.Warn().Int("deleted", c.res.DeletedCount).Msg("cleaning cancelled")
	case errors.Is(err, scanner.ErrEnumerate):
		c.setState(ctx, StateError)
		ev = events.ErrorOccurred{Message: fmt.Sprintf("Fatal error scanning directory: %v", err), Detail: fmt.Sprintf("%+v", err)}
		logger.Error().Err(err).Msg("scan failed")
	default:
		c.setState(ctx, StateError)
		ev = events.ErrorOccurred{Message: fmt.Sprintf("A critical error occurred: %v", err), Detail: fmt.Sprintf("%+v", err)}
		logger.Error().Err(err).Str("detail", ev.Detail).Msg("cleaning failed")
	}
	c.collect()
	c.ch.Notify(ev)
	return c.res, err
}
