package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"relayhq/relay/pkg/cli"
	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/server"
	"relayhq/relay/pkg/telemetry/logging"
)

type runOptions struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		Long: `Start the relay in the configured mode.

Examples:
  # Start with the default config file
  relay run

  # Start with a custom config
  relay run --config /etc/relay/relay.yaml

  # Override listen address
  relay run --listen 0.0.0.0:8080

  # Build every component without serving
  relay run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listenAddress, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "build every component, then exit without serving")
	return cmd
}

func runRelay(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	if opts.listenAddress != "" {
		cfg.Listen.Address = opts.listenAddress
	}
	if opts.logLevel != "" {
		cfg.Telemetry.Logging.Level = opts.logLevel
	}
	if global.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(global.configFile, err)
	}
	config.SetConfig(cfg)

	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return cli.NewConfigError(global.configFile, err)
	}
	slog.SetDefault(logger)

	srv, err := server.New(cfg, server.Options{
		Logger: logger,
		Build:  server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	out := cmd.OutOrStdout()
	if opts.dryRun {
		printSummary(cmd, global.configFile, cfg, srv)
		fmt.Fprintln(out, "✓ Configuration valid")
		return srv.Close()
	}

	printSummary(cmd, global.configFile, cfg, srv)

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Relay stopped")
	return nil
}

func printSummary(cmd *cobra.Command, path string, cfg *config.Config, srv *server.Server) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "relay v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded from %s\n", path)
	fmt.Fprintf(out, "✓ Mode: %s\n", cfg.Mode)

	switch cfg.Mode {
	case config.ModeClient:
		fmt.Fprintf(out, "✓ Registry: %s%s\n", cfg.Client.Registry, cfg.Client.Endpoint)
	case config.ModeServer:
		fmt.Fprintf(out, "✓ Envelope endpoint: %s %s (%d apps)\n",
			cfg.Server.Method, cfg.Server.Endpoint, len(cfg.Server.Handshake.Apps))
	default:
		if r := srv.Router(); r != nil {
			fmt.Fprintf(out, "✓ Routing table: %d rules\n", r.Len())
		}
	}
	if cfg.Journal.Enabled {
		fmt.Fprintf(out, "✓ Journal: %s\n", cfg.Journal.Backend)
	}
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Listen.Address)
}
