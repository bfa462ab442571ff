package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVoicesCmd(f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List builtin and custom voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, custom, err := newVoiceStores(cfg)
			if err != nil {
				return err
			}
			builtin, err := catalog.List()
			if err != nil {
				return err
			}
			customs, err := custom.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string][]string{"voices": builtin, "custom": customs})
			}
			for _, v := range builtin {
				fmt.Fprintln(out, v)
			}
			for _, v := range customs {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
