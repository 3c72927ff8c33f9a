package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labelflow/internal/config"
	"labelflow/internal/pipeline"
	"labelflow/internal/store"
	"labelflow/internal/workflow"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and progress tasks",
	}

	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskCompleteCommand(ctx))
	taskCmd.AddCommand(newTaskVetoCommand(ctx))
	taskCmd.AddCommand(newTaskCanExecuteCommand(ctx))

	return taskCmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var stageID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status or stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				var statuses []workflow.TaskStatus
				for _, raw := range strings.Split(statusFilter, ",") {
					raw = strings.TrimSpace(raw)
					if raw == "" {
						continue
					}
					status, ok := workflow.ParseTaskStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				var tasks []*workflow.Task
				var err error
				if stageID > 0 {
					tasks, err = st.ListTasksInStage(cmd.Context(), stageID, statuses...)
				} else {
					tasks, err = st.ListTasks(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						string(task.Status),
						strconv.Itoa(task.Priority),
						strconv.FormatInt(task.AssetID, 10),
						strconv.FormatInt(task.StageID, 10),
						task.AssigneeID,
						task.UpdatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Status", "Priority", "Asset", "Stage", "Assignee", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Comma-separated status filter (e.g. in_progress,suspended)")
	cmd.Flags().Int64Var(&stageID, "stage", 0, "Only show tasks in this stage")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				task, err := st.GetTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task %d\n", task.ID)
				fmt.Fprintf(out, "  Status:      %s\n", task.Status)
				fmt.Fprintf(out, "  Priority:    %d\n", task.Priority)
				fmt.Fprintf(out, "  Asset:       %d\n", task.AssetID)
				fmt.Fprintf(out, "  Workflow:    %d\n", task.WorkflowID)
				fmt.Fprintf(out, "  Stage:       %d\n", task.StageID)
				fmt.Fprintf(out, "  Assignee:    %s\n", orDash(task.AssigneeID))
				fmt.Fprintf(out, "  Last actor:  %s\n", orDash(task.LastActorID))
				fmt.Fprintf(out, "  Version:     %d\n", task.Version)
				printTimestamp(out, "Due", task.DueAt)
				printTimestamp(out, "Completed", task.CompletedAt)
				printTimestamp(out, "Archived", task.ArchivedAt)
				printTimestamp(out, "Suspended", task.SuspendedAt)
				printTimestamp(out, "Deferred", task.DeferredAt)
				printTimestamp(out, "Vetoed", task.VetoedAt)
				printTimestamp(out, "Changes req", task.ChangesRequiredAt)
				return nil
			})
		},
	}
}

func newTaskCompleteCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task and advance its asset to the next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRunner(func(cfg *config.Config, st *store.Store, runner *pipeline.Runner) error {
				result := runner.CompleteTask(cmd.Context(), id, userID)
				return printResult(cmd, result)
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskVetoCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var reason string

	cmd := &cobra.Command{
		Use:   "veto <task-id>",
		Short: "Veto a task and return its asset for annotation rework",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRunner(func(cfg *config.Config, st *store.Store, runner *pipeline.Runner) error {
				result := runner.VetoTask(cmd.Context(), id, userID, reason)
				return printResult(cmd, result)
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Veto reason")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskCanExecuteCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "can-execute <task-id>",
		Short: "Check whether completion and veto are currently possible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withRunner(func(cfg *config.Config, st *store.Store, runner *pipeline.Runner) error {
				canComplete, err := runner.CanComplete(cmd.Context(), id, userID)
				if err != nil {
					return err
				}
				canVeto, err := runner.CanVeto(cmd.Context(), id, userID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Complete: %s\n", yesNo(canComplete))
				fmt.Fprintf(out, "Veto:     %s\n", yesNo(canVeto))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printResult(cmd *cobra.Command, result pipeline.Result) error {
	out := cmd.OutOrStdout()
	if result.OK() {
		fmt.Fprintf(out, "Task %d is now %s\n", result.UpdatedTask.ID, result.UpdatedTask.Status)
		if result.CreatedTask != nil {
			fmt.Fprintf(out, "Next task %d created in stage %d (%s)\n",
				result.CreatedTask.ID, result.CreatedTask.StageID, result.CreatedTask.Status)
		}
		return nil
	}
	if result.AlertID != 0 {
		fmt.Fprintf(out, "Management alert %d raised; resolve it with `labelflow alert resolve %d`\n",
			result.AlertID, result.AlertID)
	}
	if result.Cause != nil {
		return fmt.Errorf("%s: %w", result.Reason, result.Cause)
	}
	return fmt.Errorf("%s", result.Reason)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func printTimestamp(out io.Writer, label string, value *time.Time) {
	if value == nil {
		return
	}
	fmt.Fprintf(out, "  %-12s %s\n", label+":", value.Format(time.RFC3339))
}
