// Command embroidery-template-cleaner deletes embroidery and sewing machine
// template files from a directory tree and prunes the folders left empty.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logFile    string
	verbose    bool

	exts     []string
	useTUI   bool
	dryRun   bool
	excludes []string
	maxDepth int
	prune    string
	yes      bool
	onError  string
	jsonOut  bool
	noSave   bool
}

func main() {
	// ETC_CONFIG and ETC_LOG_FILE may come from a local .env
	_ = godotenv.Load()

	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "embroidery-template-cleaner [target-dir]",
		Short: "Delete embroidery template files and prune empty folders",
		Long: `embroidery-template-cleaner walks a target directory, deletes files with
the selected embroidery and sewing machine extensions, and removes the folders
that deletion leaves empty. Folders holding only display files (pdf, png, jpg)
are removed after confirmation. Failed operations can be retried, skipped or
abort the run.

The target directory and extensions are remembered between runs.`,
		Example: `embroidery-template-cleaner ~/Embroidery
embroidery-template-cleaner --tui=false -e .dst -e .pes --dry-run ~/Embroidery
embroidery-template-cleaner --tui=false --yes --on-error skip --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, args, o)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Configuration file (default $ETC_CONFIG or ~/embroidery_template_cleaner.config.json)")
	pf.StringVar(&o.logFile, "log-file", "", "Log file (default $ETC_LOG_FILE or ~/embroidery_template_cleaner.log)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Log every mutation and decision")

	f := cmd.Flags()
	f.StringSliceVarP(&o.exts, "ext", "e", nil, "Extension to delete (repeatable); replaces the stored selection")
	f.BoolVarP(&o.useTUI, "tui", "t", true, "Run interactive TUI")
	f.BoolVarP(&o.dryRun, "dry-run", "n", false, "Do not delete anything; report what would be removed")
	f.StringSliceVarP(&o.excludes, "exclude", "x", nil, "Glob pattern to exclude (repeatable). Matches full path or basename.")
	f.IntVarP(&o.maxDepth, "max-depth", "m", -1, "Max depth below the target (-1 for unlimited)")
	f.StringVar(&o.prune, "prune", "upward", "When to remove empty folders: upward, deferred or both")
	f.BoolVarP(&o.yes, "yes", "y", false, "Console mode: accept every display-folder confirmation")
	f.StringVar(&o.onError, "on-error", "", "Console mode: answer every failure with skip or abort")
	f.BoolVar(&o.jsonOut, "json", false, "Console mode: print only a JSON summary")
	f.BoolVar(&o.noSave, "no-save", false, "Do not store the configuration used by this run")

	cmd.AddCommand(newExtensionsCmd(), newConfigCmd(o))
	return cmd
}
