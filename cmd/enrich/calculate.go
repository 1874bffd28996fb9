package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/library"
	"github.com/goliatone/go-enrich/store"
)

type calculateOptions struct {
	configPath string
	storeDir   string
}

func newCalculateCmd(global *globalOptions) *cobra.Command {
	opts := &calculateOptions{}
	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate filtered counts for every configured library",
		Long: `Read library settings from a YAML or JSON file, calculate each library
into its own store and combine the filtered identifier counts into the
experiment store, one c_<timepoint> column per timepoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalculate(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "library settings file (YAML or JSON)")
	cmd.Flags().StringVarP(&opts.storeDir, "store", "s", "", "root directory for badger stores")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func runCalculate(cmd *cobra.Command, global *globalOptions, opts *calculateOptions) error {
	ctx := cmd.Context()
	raw, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	entries, err := config.Libraries(raw)
	if err != nil {
		return err
	}

	var libs []library.Library
	var stores []*store.TableStore
	defer func() {
		for _, ts := range stores {
			_ = ts.Close()
		}
	}()

	for _, entry := range entries {
		kind, err := library.DetectKind(entry)
		if err != nil {
			return err
		}
		name, _ := entry["name"].(string)
		if name == "" {
			return fmt.Errorf("library without a name in %s", opts.configPath)
		}
		ts, err := openStore(libraryStoreDir(opts.storeDir, name), global.logger)
		if err != nil {
			return err
		}
		stores = append(stores, ts)

		lib, err := library.New(kind, ts, library.WithLogger(global.logger))
		if err != nil {
			return err
		}
		if err := lib.Configure(entry); err != nil {
			return err
		}
		if err := lib.Calculate(ctx); err != nil {
			return err
		}
		libs = append(libs, lib)
	}

	experiment, err := openStore(experimentDir(opts.storeDir), global.logger)
	if err != nil {
		return err
	}
	stores = append(stores, experiment)

	tps, err := library.CombineCounts(ctx, experiment, library.IdentifiersLabel, libs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "calculated %d libraries, timepoints %v\n", len(libs), tps)
	return nil
}
