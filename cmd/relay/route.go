package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"relayhq/relay/pkg/cli"
	"relayhq/relay/pkg/routing"
	"relayhq/relay/pkg/server"
)

type routeOptions struct {
	env    string
	list   bool
	format string
}

func newRouteCommand(global *globalOptions) *cobra.Command {
	opts := &routeOptions{}

	cmd := &cobra.Command{
		Use:   "route [path]",
		Short: "Show which routing rule handles a path",
		Long: `Match a request path against the configured routing table and print
the winning rule, its target and the rewritten path.

Examples:
  # Resolve one path
  relay route /api/users/42

  # Resolve with the overrides of an environment
  relay route /api/users/42 --env staging

  # List the effective table
  relay route --list --format csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("env") {
				cfg.Routing.Env = opts.env
			}

			table, err := server.LoadTable(cfg.Routing)
			if err != nil {
				return cli.NewCommandError("route", err)
			}

			if opts.list {
				return render(cmd.OutOrStdout(), opts.format, rulesTable(table))
			}
			return matchPath(cmd, table, args[0], opts.format)
		},
	}

	cmd.Flags().StringVar(&opts.env, "env", "", "environment whose overrides apply (default: routing.env)")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list the effective rules instead of matching a path")
	formatFlag(cmd, &opts.format)
	return cmd
}

func matchPath(cmd *cobra.Command, table *routing.Table, path, format string) error {
	m, err := table.Match(path)
	if err != nil {
		return cli.NewCommandError("route", errors.New("no rule matched "+path))
	}

	t := &cli.Table{Headers: []string{"rule", "target", "path"}}
	t.Append(m.Rule, m.Target, m.Path)
	return render(cmd.OutOrStdout(), format, t)
}

func rulesTable(table *routing.Table) *cli.Table {
	t := &cli.Table{Headers: []string{"rule", "target", "rewrites"}}
	for _, r := range table.Rules() {
		rewrites := make([]string, 0, len(r.PathRewrite))
		for _, rw := range r.PathRewrite {
			rewrites = append(rewrites, rw.Pattern+" => "+rw.Replacement)
		}
		t.Append(r.Pattern, r.Target, strings.Join(rewrites, "; "))
	}
	return t
}
