package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benvon/usage-gov/internal/alerts"
	"github.com/benvon/usage-gov/internal/config"
	"github.com/benvon/usage-gov/internal/database"
	"github.com/benvon/usage-gov/internal/models"
)

// NewAlertsCmd creates the alerts command with configure, list,
// toggle, delete, and evaluate subcommands.
func NewAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage usage alert thresholds",
		Long:  "Configure, list, toggle, and delete usage thresholds, or run an evaluation pass.",
	}
	cmd.AddCommand(newAlertsConfigureCmd())
	cmd.AddCommand(newAlertsListCmd())
	cmd.AddCommand(newAlertsToggleCmd())
	cmd.AddCommand(newAlertsDeleteCmd())
	cmd.AddCommand(newAlertsEvaluateCmd())
	return cmd
}

// openEvaluator wires an evaluator over the database with a log-only
// notifier; CLI runs print the alerts instead of publishing them.
func openEvaluator() (*alerts.Evaluator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	evaluator := alerts.NewEvaluator(
		database.NewAlertConfigRepository(db),
		database.NewUsageRepository(db),
		nil,
		nil,
		alerts.WithCriticalOverageRatio(cfg.CriticalOverage),
	)
	return evaluator, cleanup, nil
}

func newAlertsConfigureCmd() *cobra.Command {
	var feature string
	var dailyCost, weeklyCost, monthlyCost, dailyTokens, weeklyTokens, monthlyTokens float64
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Upsert thresholds for a feature",
		Long:  "Set any of the six (window, metric) thresholds; omitted flags leave existing configs untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if feature == "" {
				return fmt.Errorf("--feature is required")
			}
			evaluator, cleanup, err := openEvaluator()
			if err != nil {
				return err
			}
			defer cleanup()

			limits := &models.AlertLimits{}
			setIfPassed := func(name string, value float64, target **float64) {
				if cmd.Flags().Changed(name) {
					v := value
					*target = &v
				}
			}
			setIfPassed("daily-cost", dailyCost, &limits.DailyCost)
			setIfPassed("weekly-cost", weeklyCost, &limits.WeeklyCost)
			setIfPassed("monthly-cost", monthlyCost, &limits.MonthlyCost)
			setIfPassed("daily-tokens", dailyTokens, &limits.DailyTokens)
			setIfPassed("weekly-tokens", weeklyTokens, &limits.WeeklyTokens)
			setIfPassed("monthly-tokens", monthlyTokens, &limits.MonthlyTokens)

			configs, err := evaluator.ConfigureAlerts(context.Background(), feature, limits)
			if err != nil {
				return fmt.Errorf("configure alerts: %w", err)
			}
			fmt.Printf("Configured %d threshold(s) for feature %s\n", len(configs), feature)
			return nil
		},
	}
	cmd.Flags().StringVar(&feature, "feature", "", "Feature name (e.g. chat)")
	cmd.Flags().Float64Var(&dailyCost, "daily-cost", 0, "Daily cost threshold in USD")
	cmd.Flags().Float64Var(&weeklyCost, "weekly-cost", 0, "Weekly cost threshold in USD")
	cmd.Flags().Float64Var(&monthlyCost, "monthly-cost", 0, "Monthly cost threshold in USD")
	cmd.Flags().Float64Var(&dailyTokens, "daily-tokens", 0, "Daily token threshold")
	cmd.Flags().Float64Var(&weeklyTokens, "weekly-tokens", 0, "Weekly token threshold")
	cmd.Flags().Float64Var(&monthlyTokens, "monthly-tokens", 0, "Monthly token threshold")
	return cmd
}

func newAlertsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluator, cleanup, err := openEvaluator()
			if err != nil {
				return err
			}
			defer cleanup()

			configs, err := evaluator.ListAlerts(context.Background())
			if err != nil {
				return fmt.Errorf("list alerts: %w", err)
			}
			if len(configs) == 0 {
				fmt.Println("No alert thresholds configured.")
				return nil
			}
			for _, c := range configs {
				state := "disabled"
				if c.Enabled {
					state = "enabled"
				}
				lastTriggered := "never"
				if c.LastTriggeredAt != nil {
					lastTriggered = c.LastTriggeredAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-36s  %-16s  %-16s  %10.2f  %-8s  last triggered: %s\n",
					c.ID, c.Feature, c.AlertType, c.ThresholdValue, state, lastTriggered)
			}
			return nil
		},
	}
}

func newAlertsToggleCmd() *cobra.Command {
	var enable, disable bool
	cmd := &cobra.Command{
		Use:   "toggle <alert-id>",
		Short: "Enable or disable a threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable == disable {
				return fmt.Errorf("exactly one of --enable or --disable is required")
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid alert id: %w", err)
			}
			evaluator, cleanup, err := openEvaluator()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := evaluator.ToggleAlert(context.Background(), id, enable); err != nil {
				return fmt.Errorf("toggle alert: %w", err)
			}
			fmt.Printf("Alert %s updated\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the threshold")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the threshold")
	return cmd
}

func newAlertsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <alert-id>",
		Short: "Delete a threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid alert id: %w", err)
			}
			evaluator, cleanup, err := openEvaluator()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := evaluator.DeleteAlert(context.Background(), id); err != nil {
				return fmt.Errorf("delete alert: %w", err)
			}
			fmt.Printf("Alert %s deleted\n", id)
			return nil
		},
	}
}

func newAlertsEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Run one threshold evaluation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			evaluator, cleanup, err := openEvaluator()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := evaluator.EvaluateThresholds(context.Background())
			if err != nil {
				return fmt.Errorf("evaluate thresholds: %w", err)
			}
			fmt.Printf("Evaluated thresholds: %d alert(s), %d critical\n",
				result.Summary.TotalAlerts, result.Summary.CriticalAlerts)
			for _, alert := range result.Alerts {
				marker := " "
				if alert.Critical {
					marker = "!"
				}
				fmt.Printf("%s %-16s %-16s current=%.2f threshold=%.2f exceeded_by=%.2f\n",
					marker, alert.Feature, alert.AlertType, alert.CurrentValue, alert.Threshold, alert.ExceededBy)
			}
			return nil
		},
	}
}
