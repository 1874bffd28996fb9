package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newKeysCmd(global *globalOptions) *cobra.Command {
	var storeDir string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the tables held by a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := openStore(storeDir, global.logger)
			if err != nil {
				return err
			}
			defer ts.Close()

			keys, err := ts.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range keys {
				table, err := ts.Get(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\n", key, table.Len())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&storeDir, "store", "s", "", "badger store directory")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}
