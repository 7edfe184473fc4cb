// Package console drives a cleaning session from a plain terminal: status
// lines go to the output, decisions are read line by line from the input.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"embroidery-template-cleaner/internal/cleaner"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/session"
	"embroidery-template-cleaner/pkg/utils"
)

// A preset Retry hands the decision back to the prompt after this many
// attempts on one path.
const maxPresetRetries = 3

// Options configures a Console.
type Options struct {
	In     io.Reader
	Out    io.Writer
	Prompt io.Writer // where questions go, defaults to Out

	AssumeYes bool           // accept every display file confirmation
	OnError   *events.Choice // answer every failure with this choice
	JSON      bool           // print only a JSON summary at the end
}

// Console answers session requests from line input.
type Console struct {
	opts    Options
	in      *bufio.Reader
	retried map[string]int
}

// New returns a Console reading opts.In and writing opts.Out.
func New(opts Options) *Console {
	if opts.Prompt == nil {
		opts.Prompt = opts.Out
	}
	return &Console{opts: opts, in: bufio.NewReader(opts.In), retried: make(map[string]int)}
}

// Run consumes s until it stops.
func (c *Console) Run(ctx context.Context, s *session.Session) (cleaner.Result, error) {
	var terminal events.Event
	res, err := s.Drive(ctx, func(ev events.Event) {
		if events.IsTerminal(ev) {
			terminal = ev
		}
		if !c.opts.JSON {
			c.print(ev)
		}
	}, c.answer)
	if c.opts.JSON {
		if jerr := c.printJSON(terminal); jerr != nil && err == nil {
			err = jerr
		}
	}
	return res, err
}

func (c *Console) print(ev events.Event) {
	out := c.opts.Out
	switch e := ev.(type) {
	case events.StatusUpdate:
		fmt.Fprintln(out, e.Message)
	case events.CleaningResult:
		mode := ""
		if e.DryRun {
			mode = " (dry-run; no files removed)"
		}
		if e.TargetDir == "" {
			fmt.Fprintf(out, "Nothing to do: no target directory configured.\n")
			return
		}
		fmt.Fprintf(out, "Deleted %d files from %s%s.\n", e.DeletedCount, e.TargetDir, mode)
		fmt.Fprintf(out, "Removed directories: %d  Display files: %d  Skipped: %d  Freed: %s\n",
			e.RemovedDirs, e.DisplayFilesRemoved, e.Skipped, utils.HumanizeBytes(e.FreedBytes))
	case events.ErrorOccurred:
		fmt.Fprintf(out, "Error: %s\n", e.Message)
	}
}

func (c *Console) answer(ev events.Event) events.Response {
	switch e := ev.(type) {
	case events.RequestConfirmation:
		if c.opts.AssumeYes {
			return events.ConfirmationResponse{Accepted: true}
		}
		fmt.Fprintf(c.opts.Prompt, "%s only contains display files (%s).\nDelete them and the folder? [y/N]: ",
			e.Path, strings.Join(e.Files, ", "))
		line, err := c.readLine()
		if err != nil {
			return events.ConfirmationResponse{Accepted: false}
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return events.ConfirmationResponse{Accepted: true}
		}
		return events.ConfirmationResponse{Accepted: false}
	case events.RequestRetrySkipAbort:
		if preset := c.opts.OnError; preset != nil {
			if *preset != events.Retry {
				return events.RetrySkipAbortResponse{Choice: *preset}
			}
			if c.retried[e.Path] < maxPresetRetries {
				c.retried[e.Path]++
				return events.RetrySkipAbortResponse{Choice: events.Retry}
			}
		}
		fmt.Fprintf(c.opts.Prompt, "Error %s\n  %s\n  %s\n", e.Operation, e.Path, e.Error)
		for {
			fmt.Fprint(c.opts.Prompt, "[r]etry, [s]kip, [a]bort: ")
			line, err := c.readLine()
			if err != nil {
				// no more input; nobody is left to decide
				return events.RetrySkipAbortResponse{Choice: events.Abort}
			}
			if choice, ok := events.ParseChoice(strings.ToLower(line)); ok {
				return events.RetrySkipAbortResponse{Choice: choice}
			}
		}
	}
	return nil
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type summary struct {
	TargetDir           string `json:"targetDir"`
	DeletedCount        int    `json:"deletedCount"`
	RemovedDirs         int    `json:"removedDirs"`
	DisplayFilesRemoved int    `json:"displayFilesRemoved"`
	Skipped             int    `json:"skipped"`
	FreedBytes          int64  `json:"freedBytes"`
	DryRun              bool   `json:"dryRun"`
	Error               string `json:"error,omitempty"`
	Aborted             bool   `json:"aborted,omitempty"`
}

func (c *Console) printJSON(terminal events.Event) error {
	var out summary
	switch e := terminal.(type) {
	case events.CleaningResult:
		out = summary{
			TargetDir:           e.TargetDir,
			DeletedCount:        e.DeletedCount,
			RemovedDirs:         e.RemovedDirs,
			DisplayFilesRemoved: e.DisplayFilesRemoved,
			Skipped:             e.Skipped,
			FreedBytes:          e.FreedBytes,
			DryRun:              e.DryRun,
		}
	case events.ErrorOccurred:
		out = summary{Error: e.Message, Aborted: e.Aborted}
	}
	enc := json.NewEncoder(c.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
