package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"embroidery-template-cleaner/internal/config"
	"embroidery-template-cleaner/internal/extensions"
)

func newExtensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extensions",
		Short: "List the recognized file extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, ext := range extensions.Template.Sorted() {
				fmt.Fprintf(out, "%-10s template\n", ext)
			}
			for _, ext := range extensions.Display.Sorted() {
				fmt.Fprintf(out, "%-10s display\n", ext)
			}
			return nil
		},
	}
}

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the stored configuration and where it lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := config.NewStore(o.configPath)
			cfg, err := store.Load()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:       %s\n", store.Path())
			if err != nil {
				return err
			}
			target := cfg.TargetDir()
			if target == "" {
				target = "(none)"
			}
			fmt.Fprintf(out, "target:     %s\n", target)
			fmt.Fprintf(out, "extensions: %s\n", strings.Join(cfg.Extensions(), " "))
			return nil
		},
	}
}
