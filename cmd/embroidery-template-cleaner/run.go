package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"embroidery-template-cleaner/internal/cleaner"
	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/console"
	"embroidery-template-cleaner/internal/events"
	"embroidery-template-cleaner/internal/logging"
	"embroidery-template-cleaner/internal/scanner"
	"embroidery-template-cleaner/internal/session"
	"embroidery-template-cleaner/internal/tui"
)

func (o *options) consoleMode() bool {
	return !o.useTUI || o.jsonOut
}

func (o *options) logger(consoleMode bool) (zerolog.Logger, func()) {
	file := o.logFile
	if file == "" {
		file = logging.DefaultFile()
	}
	lo := logging.Options{File: file, Level: zerolog.InfoLevel}
	if o.verbose {
		lo.Level = zerolog.DebugLevel
	}
	// the TUI owns the terminal, so it only gets the file
	if consoleMode && !o.jsonOut {
		lo.Console = os.Stderr
	}
	logger, closer := logging.New(lo)
	return logger, func() { _ = closer.Close() }
}

// resolveConfig applies command line overrides on top of the stored
// configuration. Overrides are validated; a bad one fails the command.
func resolveConfig(stored config.Configuration, args []string, exts []string, extsSet bool) (config.Configuration, error) {
	cfg := stored
	var err error
	if len(args) > 0 {
		cfg, err = cfg.WithTarget(args[0])
		if err != nil {
			return config.Empty(), err
		}
	}
	if extsSet {
		cfg, err = cfg.WithExtensions(exts)
		if err != nil {
			return config.Empty(), err
		}
	}
	return cfg, nil
}

func (o *options) cleanerOptions() (cleaner.Options, error) {
	prune, err := cleaner.ParsePruneMode(o.prune)
	if err != nil {
		return cleaner.Options{}, err
	}
	return cleaner.Options{
		DryRun: o.dryRun,
		Prune:  prune,
		Scan: scanner.Options{
			MaxDepth: o.maxDepth,
			Excludes: o.excludes,
		},
	}, nil
}

func (o *options) presetChoice() (*events.Choice, error) {
	if strings.TrimSpace(o.onError) == "" {
		return nil, nil
	}
	c, ok := events.ParseChoice(strings.ToLower(strings.TrimSpace(o.onError)))
	if !ok {
		return nil, errors.Errorf("invalid --on-error %q: want skip or abort", o.onError)
	}
	if c == events.Retry {
		// nobody would be left to stop a path that keeps failing
		return nil, errors.Errorf("invalid --on-error %q: retry needs a human, want skip or abort", o.onError)
	}
	return &c, nil
}

func runClean(cmd *cobra.Command, args []string, o *options) error {
	consoleMode := o.consoleMode()
	logger, closeLog := o.logger(consoleMode)
	defer closeLog()
	ctx := logger.WithContext(cmd.Context())

	store := config.NewStore(o.configPath)
	stored, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("stored configuration ignored")
	}

	cfg, err := resolveConfig(stored, args, o.exts, cmd.Flags().Changed("ext"))
	if err != nil {
		return err
	}
	opts, err := o.cleanerOptions()
	if err != nil {
		return err
	}
	choice, err := o.presetChoice()
	if err != nil {
		return err
	}

	if !consoleMode {
		out, err := tui.Run(ctx, cfg, opts)
		if err != nil {
			return errors.Errorf("tui error: %w", err)
		}
		o.save(ctx, store, out.Config)
		if out.Failure != nil && !out.Failure.Aborted {
			return errors.New(out.Failure.Message)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	c := console.New(console.Options{
		In:        cmd.InOrStdin(),
		Out:       cmd.OutOrStdout(),
		Prompt:    promptWriter(cmd, o.jsonOut),
		AssumeYes: o.yes,
		OnError:   choice,
		JSON:      o.jsonOut,
	})
	_, runErr := c.Run(ctx, session.Start(ctx, cfg, opts))
	o.save(ctx, store, cfg)
	return runErr
}

// promptWriter keeps questions off stdout when stdout carries JSON.
func promptWriter(cmd *cobra.Command, jsonOut bool) io.Writer {
	if jsonOut {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func (o *options) save(ctx context.Context, store *config.Store, cfg config.Configuration) {
	if o.noSave {
		return
	}
	log := zerolog.Ctx(ctx)
	if err := store.Save(cfg); err != nil {
		log.Error().Err(err).Str("path", store.Path()).Msg("saving configuration failed")
		return
	}
	log.Debug().Str("path", store.Path()).Msg("configuration saved")
}
