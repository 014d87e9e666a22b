//nolint:forbidigo // CLI command needs fmt.Print* for user output
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"    //nolint:gochecknoglobals // Build-time commit info
	date    = "unknown" //nolint:gochecknoglobals // Build-time date info

	// Global flags
	configPath string //nolint:gochecknoglobals // CLI global flag
	debugMode  bool   //nolint:gochecknoglobals // CLI global flag
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "souschef",
		Short: "Provision and load the sous-chef ETL infrastructure",
		Long: `Souschef manages the AWS environment behind the recipe ETL pipeline:
the VPC and its networking, the ETL instance with its IAM role, the raw and
clean buckets, and the recipes table.

Provisioning is a one-shot sequential run; teardown is a rerunnable sweep
that tolerates partially built environments.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if debugMode {
				_ = os.Setenv("SOUSCHEF_DEBUG", "true") // os.Setenv always returns nil
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (defaults apply when omitted)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(provisionCmd())
	rootCmd.AddCommand(teardownCmd())
	rootCmd.AddCommand(loadTableCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
