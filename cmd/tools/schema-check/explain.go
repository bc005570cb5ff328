package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"travelgo-chat/internal/chat"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
	buildqueryplan "travelgo-chat/internal/workers/chat/build-query-plan"
	classifyintent "travelgo-chat/internal/workers/chat/classify-intent"
	pgqueries "travelgo-chat/internal/workers/data-access/query-postgresql/queries"
)

type explainCLI struct {
	Message      string        `json:"message"`
	Intent       models.Intent `json:"intent"`
	RequiresAuth bool          `json:"requiresAuth"`
	Plans        []planCLI     `json:"plans"`
}

type planCLI struct {
	Key       string `json:"key"`
	DependsOn string `json:"dependsOn,omitempty"`
	SQL       string `json:"sql"`
	Args      int    `json:"args"`
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "explain <message>",
		Short: "Show the intent and SQL a message would produce, without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.load()
			if err != nil {
				return err
			}

			log := logger.NewNoOpLogger()
			classifier := chat.NewClassifier(classifyintent.LoadConfig(), log)
			builder := buildqueryplan.NewHandler(buildqueryplan.LoadConfig(), reg, nil, log)

			caller := models.Anonymous()
			if email != "" {
				caller = models.CallerIdentity{Authenticated: true, Email: email}
			}

			message := strings.Join(args, " ")
			intent := classifier.Classify(message)
			result, err := builder.Build(intent, caller)
			if err != nil {
				return err
			}

			report := explainCLI{Message: message, Intent: intent, RequiresAuth: result.RequiresAuth, Plans: []planCLI{}}
			for _, plan := range result.Plans {
				stmt, err := pgqueries.Render(plan)
				if err != nil {
					return fmt.Errorf("render %s: %w", plan.Key, err)
				}
				report.Plans = append(report.Plans, planCLI{
					Key:       plan.Key,
					DependsOn: plan.DependsOn,
					SQL:       stmt.SQL,
					Args:      len(stmt.Args),
				})
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(out, "domain:      %s\n", intent.Domain)
			fmt.Fprintf(out, "sensitivity: %s\n", intent.Sensitivity)
			if len(intent.Slots.Keywords) > 0 {
				fmt.Fprintf(out, "keywords:    %s\n", strings.Join(intent.Slots.Keywords, ", "))
			}
			if result.RequiresAuth {
				fmt.Fprintln(out, "login required: no plans built for an anonymous caller")
			}
			for _, p := range report.Plans {
				if p.DependsOn != "" {
					fmt.Fprintf(out, "\n[%s] (%d args, keys from %s)\n%s\n", p.Key, p.Args, p.DependsOn, p.SQL)
					continue
				}
				fmt.Fprintf(out, "\n[%s] (%d args)\n%s\n", p.Key, p.Args, p.SQL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Treat the caller as authenticated with this email")
	return cmd
}
