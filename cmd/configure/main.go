package main

import (
	"fmt"
	"os"

	"github.com/benvon/usage-gov/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "usage-gov-configure",
		Short: "Configuration tool for the usage governance service",
		Long:  "CLI tool for managing provider keys, alert thresholds, and connectivity checks",
	}

	rootCmd.AddCommand(commands.NewKeysCmd())
	rootCmd.AddCommand(commands.NewAlertsCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
