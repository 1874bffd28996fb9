package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/plugins/ratios"
	"github.com/goliatone/go-enrich/plugins/script"
	"github.com/goliatone/go-enrich/store"
)

// experimentStore is the subdirectory holding combined counts and scores.
const experimentStore = "experiment"

type globalOptions struct {
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Sequencing library counts and enrichment scoring",
		Long: `Calculate filtered counts for sequencing libraries and score them with
scoring plugins. Tables live in badger stores on disk: one store per library
plus an "experiment" store holding the combined counts and scores.

Examples:
  enrich calculate --config experiment.yaml --store ./data
  enrich score --plugin ratios --options ratios.yaml --store ./data
  enrich keys --store ./data/experiment
  enrich plugins --openapi`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newCalculateCmd(opts),
		newSerializeCmd(opts),
		newScoreCmd(opts),
		newPluginsCmd(opts),
		newKeysCmd(opts),
	)
	return cmd
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registry returns enrich.DefaultRegistry with the built-in plugins added.
func registry() (*enrich.Registry, error) {
	registerOnce.Do(func() {
		for _, register := range []func(*enrich.Registry) error{ratios.Register, script.Register} {
			if err := register(enrich.DefaultRegistry); err != nil {
				registerErr = err
				return
			}
		}
	})
	return enrich.DefaultRegistry, registerErr
}

func openStore(dir string, logger *slog.Logger) (*store.TableStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	backend, err := store.NewBadger(store.BadgerOptions{Dir: dir, Logger: logger})
	if err != nil {
		return nil, err
	}
	return store.New(backend), nil
}

func libraryStoreDir(root, name string) string {
	return filepath.Join(root, "libraries", name)
}
