package cleaner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/deleter"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/extensions"
)

// Oracle decides whether a directory is effectively empty. A directory
// holding only display files counts as empty once the user agrees to delete
// them and they are gone.
type Oracle struct {
	fs      deleter.FS
	ch      events.Channel
	exec    *deleter.Executor
	display extensions.Set

	// directories already put to the user in this run
	asked map[string]struct{}

	removed int
	skipped int
}

// NewOracle returns an oracle using the registry's display extensions.
func NewOracle(fsys deleter.FS, ch events.Channel, exec *deleter.Executor) *Oracle {
	return &Oracle{
		fs:      fsys,
		ch:      ch,
		exec:    exec,
		display: extensions.Display,
		asked:   make(map[string]struct{}),
	}
}

// Reconcile reports whether dir is now empty or absent. It may ask the user
// to confirm deletion of display files and delete them. Unreadable
// directories are reported and treated as not empty. The only errors
// returned are aborts and fatal executor errors.
func (o *Oracle) Reconcile(ctx context.Context, dir string) (bool, error) {
	info, err := o.fs.Lstat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		o.ch.Notify(events.StatusUpdate{Message: fmt.Sprintf("Cannot inspect %s: %v. Skipping.", dir, err)})
		return false, nil
	}
	if !info.IsDir() {
		return false, nil
	}

	entries, err := o.fs.ReadDir(dir)
	if err != nil {
		o.ch.Notify(events.StatusUpdate{Message: fmt.Sprintf("Permission error reading %s. Skipping.", dir)})
		return false, nil
	}
	if len(entries) == 0 {
		return true, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !o.display.Matches(e.Name()) {
			return false, nil
		}
		names = append(names, e.Name())
	}

	key := filepath.Clean(dir)
	if _, seen := o.asked[key]; seen {
		return false, nil
	}
	o.asked[key] = struct{}{}

	resp, err := o.ch.Request(ctx, events.RequestConfirmation{Path: dir, Files: names})
	if err != nil {
		return false, err
	}
	confirm, ok := resp.(events.ConfirmationResponse)
	if !ok {
		return false, errors.Errorf("%w: %T", deleter.ErrUnexpectedResponse, resp)
	}
	if !confirm.Accepted {
		o.ch.Notify(events.StatusUpdate{Message: fmt.Sprintf("Skipping deletion of display files in %s.", filepath.Base(dir))})
		return false, nil
	}

	o.ch.Notify(events.StatusUpdate{Message: fmt.Sprintf("Deleting display files in %s...", filepath.Base(dir))})
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := o.fs.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		done, err := o.exec.Do(ctx, fmt.Sprintf("deleting display file '%s'", name), path, func() error {
			return o.fs.Remove(path)
		})
		if err != nil {
			return false, err
		}
		if done {
			o.removed++
		} else {
			o.skipped++
		}
	}

	// A skipped file leaves residue behind.
	entries, err = o.fs.ReadDir(dir)
	if err != nil {
		o.ch.Notify(events.StatusUpdate{Message: fmt.Sprintf("Permission error after display file deletion in %s.", dir)})
		return false, nil
	}
	return len(entries) == 0, nil
}
