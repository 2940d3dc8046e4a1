package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "healthcare",
		Short:        "Patient records front-end for the HealthCare contract",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (default: ./config/config.yaml if present)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(addRecordCmd())
	rootCmd.AddCommand(authorizeCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(eventsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
