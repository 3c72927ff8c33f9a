package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"labelflow/internal/config"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}

	dbCmd.AddCommand(newDBHealthCommand(ctx))
	dbCmd.AddCommand(newDBStatsCommand(ctx))

	return dbCmd
}

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintf(out, "Database: %s\n", health.DBPath)
				fmt.Fprintln(out, renderStatusLine("Exists", boolKind(health.DatabaseExists), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Readable", boolKind(health.DatabaseReadable), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(health.IntegrityCheck), "", colorize))
				if len(health.MissingTables) > 0 {
					fmt.Fprintln(out, renderStatusLine("Schema", statusError,
						fmt.Sprintf("missing tables: %v", health.MissingTables), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Schema", statusOK, "", colorize))
				}
				fmt.Fprintf(out, "  Total tasks:        %d\n", health.TotalTasks)

				if err != nil {
					return fmt.Errorf("database health: %w", err)
				}
				return nil
			})
		},
	}
}

func newDBStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.TaskStats(cmd.Context())
				if err != nil {
					return err
				}

				statuses := make([]workflow.TaskStatus, 0, len(stats))
				for status := range stats {
					statuses = append(statuses, status)
				}
				sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

				rows := make([][]string, 0, len(statuses))
				total := 0
				for _, status := range statuses {
					rows = append(rows, []string{string(status), fmt.Sprintf("%d", stats[status])})
					total += stats[status]
				}
				rows = append(rows, []string{"total", fmt.Sprintf("%d", total)})

				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
