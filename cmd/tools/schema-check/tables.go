package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type tableCLI struct {
	Name        string   `json:"name"`
	PrimaryKey  string   `json:"primaryKey"`
	Sensitivity string   `json:"sensitivity"`
	OwnerColumn string   `json:"ownerColumn,omitempty"`
	Columns     []string `json:"columns"`
}

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List readable tables and their whitelisted columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.load()
			if err != nil {
				return err
			}

			tables := make([]tableCLI, 0, len(reg.Tables()))
			for _, name := range reg.Tables() {
				t, _ := reg.Table(name)
				tables = append(tables, tableCLI{
					Name:        t.Name,
					PrimaryKey:  t.PrimaryKey,
					Sensitivity: string(t.Sensitivity),
					OwnerColumn: t.OwnerColumn,
					Columns:     t.Columns,
				})
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tKEY\tSENSITIVITY\tOWNER\tCOLUMNS")
			for _, t := range tables {
				owner := t.OwnerColumn
				if owner == "" {
					owner = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.PrimaryKey, t.Sensitivity, owner, strings.Join(t.Columns, ","))
			}
			return w.Flush()
		},
	}
}
