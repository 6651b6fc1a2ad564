package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the bronze, silver and gold data directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, dir := range []string{cfg.BronzeDir(), cfg.SilverDir(), cfg.GoldDir()} {
				fmt.Fprintf(out, "  %s\n", dir)
			}
			fmt.Fprintln(out, "Initialized data directories.")
			return nil
		},
	}
}
