package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that a schema registry file is self-consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.load()
			if err != nil {
				return err
			}

			source := opts.schemaPath
			if source == "" {
				source = "embedded registry"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (version %d, %d tables, max_limit %d)\n",
				source, reg.Version(), len(reg.Tables()), reg.MaxLimit())
			return nil
		},
	}
}
