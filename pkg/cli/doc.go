/*
Package cli holds helpers shared by the relay subcommands.

Output Formatting:

Commands render results as text, JSON or CSV. Tabular results use Table so
that every format can render them:

	t := &cli.Table{Headers: []string{"pattern", "target"}}
	t.Append("^/api", "http://backend:8080")
	if err := cli.NewFormatter(cli.FormatCSV).FormatTo(os.Stdout, t); err != nil {
		return err
	}

Signal Handling:

SignalContext returns a context cancelled on SIGINT or SIGTERM.

Logging:

NewCommandLogger picks a text handler on a terminal and JSON otherwise.
*/
package cli
