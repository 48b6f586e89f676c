package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFlag    string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "task-manager",
	Short: "Multi-user task management API",
	Long: `Serves the task management HTTP API.

Configuration is read from TASKAPI_* environment variables, an optional .env
file and an optional config file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), envFlag, configFlag)
	},
}

func init() {
	rootCmd.Flags().StringVar(&envFlag, "env", "", "environment: development, testing or production (overrides TASKAPI_ENV)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "path to a config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
