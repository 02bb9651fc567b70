package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relayhq/relay/pkg/cli"
	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/server"
)

func newValidateCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration with RELAY_* overrides, validate every section
and, in router mode, compile the routing table.

Examples:
  relay validate --config relay.yaml
  RELAY_MODE=server relay validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s is valid (mode: %s)\n", global.configFile, cfg.Mode)

			if cfg.Mode != config.ModeRouter {
				return nil
			}
			table, err := server.LoadTable(cfg.Routing)
			if err != nil {
				return cli.NewConfigError(global.configFile, err)
			}
			fmt.Fprintf(out, "✓ Routing table compiled (%d rules", table.Len())
			if env := table.Env(); env != "" {
				fmt.Fprintf(out, ", env %s", env)
			}
			fmt.Fprintln(out, ")")
			return nil
		},
	}
}
