package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-enrich/schema/openapi"
)

func newPluginsCmd(_ *globalOptions) *cobra.Command {
	var (
		asOpenAPI bool
		format    string
	)
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List scoring plugins and their options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asOpenAPI {
				doc, err := openapi.RegistryDocument(reg, openapi.WithInfo("Scoring plugins", "1.0.0"))
				if err != nil {
					return err
				}
				if format == "yaml" {
					enc := yaml.NewEncoder(out)
					enc.SetIndent(2)
					defer enc.Close()
					return enc.Encode(doc)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, name := range reg.Names() {
				entry, _ := reg.Lookup(name)
				fmt.Fprintf(w, "%s\t%s\n", name, entry.Description)
				options, err := reg.OptionsFor(name)
				if err != nil {
					return err
				}
				for _, opt := range options.Options() {
					fmt.Fprintf(w, "  %s\t%s (default %v)\t%s\n", opt.Varname, opt.DType, opt.Default, opt.Tooltip)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asOpenAPI, "openapi", false, "print an OpenAPI document of the plugin options")
	cmd.Flags().StringVar(&format, "format", "json", "OpenAPI output format: json or yaml")
	return cmd
}
