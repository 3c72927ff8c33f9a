package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"labelflow/internal/config"
	"labelflow/internal/store"
)

func newAlertCommand(ctx *commandContext) *cobra.Command {
	alertCmd := &cobra.Command{
		Use:   "alert",
		Short: "Inspect and resolve management alerts",
	}

	alertCmd.AddCommand(newAlertListCommand(ctx))
	alertCmd.AddCommand(newAlertShowCommand(ctx))
	alertCmd.AddCommand(newAlertResolveCommand(ctx))

	return alertCmd
}

func newAlertListCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List management alerts (unresolved by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				alerts, err := st.ListAlerts(cmd.Context(), !all)
				if err != nil {
					return err
				}
				if len(alerts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No alerts")
					return nil
				}

				rows := make([][]string, 0, len(alerts))
				for _, alert := range alerts {
					taskCol := "-"
					if alert.TaskID != nil {
						taskCol = strconv.FormatInt(*alert.TaskID, 10)
					}
					rows = append(rows, []string{
						strconv.FormatInt(alert.ID, 10),
						string(alert.Type),
						taskCol,
						alert.FailureReason,
						yesNo(alert.Resolved),
						alert.CreatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Task", "Reason", "Resolved", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include resolved alerts")
	return cmd
}

func newAlertShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <alert-id>",
		Short: "Show one alert in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				alert, err := st.GetAlert(cmd.Context(), id)
				if err != nil {
					return err
				}
				if alert == nil {
					return fmt.Errorf("alert %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Alert %d (%s)\n", alert.ID, alert.Type)
				fmt.Fprintf(out, "  Reason:          %s\n", alert.FailureReason)
				if alert.TaskID != nil {
					fmt.Fprintf(out, "  Task:            %d\n", *alert.TaskID)
				}
				if alert.AssetID != nil {
					fmt.Fprintf(out, "  Asset:           %d\n", *alert.AssetID)
				}
				fmt.Fprintf(out, "  User:            %s\n", orDash(alert.UserID))
				if alert.OriginalError != "" {
					fmt.Fprintf(out, "  Original error:  %s\n", alert.OriginalError)
				}
				if alert.RollbackError != "" {
					fmt.Fprintf(out, "  Rollback error:  %s\n", alert.RollbackError)
				}
				fmt.Fprintf(out, "  Resolved:        %s\n", yesNo(alert.Resolved))
				if alert.Resolved {
					fmt.Fprintf(out, "  Resolved by:     %s\n", orDash(alert.ResolvedBy))
					fmt.Fprintf(out, "  Notes:           %s\n", orDash(alert.ResolutionNotes))
					if alert.ResolvedAt != nil {
						fmt.Fprintf(out, "  Resolved at:     %s\n", alert.ResolvedAt.Format(time.RFC3339))
					}
				}
				fmt.Fprintf(out, "  Created:         %s\n", alert.CreatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newAlertResolveCommand(ctx *commandContext) *cobra.Command {
	var resolver string
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Mark an alert resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				ok, err := st.ResolveAlert(cmd.Context(), id, resolver, notes)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Alert %d was already resolved\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alert %d resolved\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&resolver, "user", "u", "", "Resolver user id")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "Resolution notes")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
