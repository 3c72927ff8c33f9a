package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"labelflow/internal/config"
	"labelflow/internal/store"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflow stage graphs",
	}

	workflowCmd.AddCommand(newWorkflowShowCommand(ctx))

	return workflowCmd
}

func newWorkflowShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show a workflow's stages and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stages, connections, err := st.StagesForWorkflow(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(stages) == 0 {
					return fmt.Errorf("workflow %d has no stages", id)
				}

				titler := cases.Title(language.Und)
				stageNames := make(map[int64]string, len(stages))
				rows := make([][]string, 0, len(stages))
				for _, stage := range stages {
					stageNames[stage.ID] = stage.Name
					flags := ""
					if stage.Initial {
						flags = "initial"
					}
					if stage.Final {
						if flags != "" {
							flags += ", "
						}
						flags += "final"
					}
					rows = append(rows, []string{
						strconv.FormatInt(stage.ID, 10),
						strconv.Itoa(stage.StageOrder),
						stage.Name,
						titler.String(string(stage.Type)),
						flags,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Order", "Name", "Type", "Flags"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))

				if len(connections) > 0 {
					fmt.Fprintln(out, "Connections:")
					for _, conn := range connections {
						line := fmt.Sprintf("  %s -> %s", stageNames[conn.FromStageID], stageNames[conn.ToStageID])
						if conn.Condition != "" {
							line += fmt.Sprintf(" (condition: %s)", conn.Condition)
						}
						fmt.Fprintln(out, line)
					}
				}
				return nil
			})
		},
	}
}
