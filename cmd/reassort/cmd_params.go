package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nvandessel/reassort/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newParamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params [key=value ...]",
		Short: "List parameters and their resolved values",
		Long: `List every parameter with its short alias, its value after applying the
--config file, environment and arguments, and a description.

Use --yaml to print the resolved configuration as a YAML file that can be
passed back with --config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			asYAML, _ := cmd.Flags().GetBool("yaml")
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return fmt.Errorf("failed to encode config: %w", err)
				}
				return enc.Close()
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				type paramJSON struct {
					Key         string `json:"key"`
					Alias       string `json:"alias,omitempty"`
					Value       string `json:"value"`
					Description string `json:"description"`
				}
				var out []paramJSON
				for _, p := range config.Params() {
					out = append(out, paramJSON{Key: p.Key, Alias: p.Alias, Value: p.Get(cfg), Description: p.Description})
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tALIAS\tVALUE\tDESCRIPTION")
			for _, p := range config.Params() {
				alias := p.Alias
				if alias == "" {
					alias = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Key, alias, p.Get(cfg), p.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Bool("yaml", false, "Print the resolved configuration as YAML")
	return cmd
}
