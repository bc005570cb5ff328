package main

import (
	"github.com/spf13/cobra"

	"travelgo-chat/pkg/registry"
)

type rootOptions struct {
	schemaPath string
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "schema-check",
		Short: "Inspect and validate the chat schema registry",
		Long: `schema-check loads a schema registry file (or the one embedded in the
chat server) and reports on it. It never connects to a database.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.schemaPath, "schema", "", "Path to a schema registry YAML (default: embedded registry)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "human", "Output format (json, human)")

	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newTablesCmd(opts))
	cmd.AddCommand(newExplainCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*registry.Registry, error) {
	if o.schemaPath == "" {
		return registry.Default()
	}
	return registry.Load(o.schemaPath)
}
