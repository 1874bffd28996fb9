package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/library"
	"github.com/goliatone/go-enrich/store"
)

func newSerializeCmd(global *globalOptions) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serialize",
		Short: "Print the normalized settings of every configured library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			entries, err := config.Libraries(raw)
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(entries))
			for _, entry := range entries {
				kind, err := library.DetectKind(entry)
				if err != nil {
					return err
				}
				lib, err := library.New(kind, store.NewMemoryStore(), library.WithLogger(global.logger))
				if err != nil {
					return err
				}
				if err := lib.Configure(entry); err != nil {
					return err
				}
				out = append(out, lib.Serialize())
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{"libraries": out})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "library settings file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
