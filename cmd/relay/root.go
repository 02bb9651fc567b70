package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"relayhq/relay/pkg/cli"
	"relayhq/relay/pkg/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	verbose    bool
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := newRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - HTTP forwarding gateway with envelope handshakes",
		Long: `Relay forwards HTTP requests to upstream services.

In client mode it wraps each request in an envelope carrying an app
handshake and posts it to a broker. In server mode it is that broker: it
checks the handshake, unwraps the request and forwards it to the real
upstream. In router mode it forwards requests using an ordered table of
path patterns and rewrites.

Every mode caches responses (failures included) when configured, records
an access journal and exposes health and Prometheus endpoints.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "relay.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newRunCommand(opts),
		newRouteCommand(opts),
		newValidateCommand(opts),
		newJournalCommand(opts),
		newVersionCommand(),
		newCompletionCommand(cmd),
	)
	return cmd
}

// loadConfig reads the config file with RELAY_* overrides applied.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(o.configFile)
	if err != nil {
		return nil, cli.NewConfigError(o.configFile, err)
	}
	return cfg, nil
}

// commandLogger is the logger of one-shot subcommands.
func (o *globalOptions) commandLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	if w := cmd.ErrOrStderr(); w != os.Stderr {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return cli.NewCommandLogger(level)
}

func formatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "format", "f", string(cli.FormatText), "output format: text, json, csv")
}

func render(w io.Writer, format string, data any) error {
	f, err := cli.ParseFormat(format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(f).FormatTo(w, data)
}
