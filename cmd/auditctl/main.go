// cmd/auditctl/main.go
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/common/logger"
	"audit-orchestrator/internal/orchestration/registry"
)

var (
	// Global flags
	verbose      bool
	logFormat    string
	registryPath string
	timeout      time.Duration

	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "auditctl",
	Short: "Audit orchestrator command line",
	Long: `auditctl runs audit questions through the orchestrator and inspects routing.

Subcommands:
  query     - run one query end to end (needs Elasticsearch and the GenAI gateway)
  classify  - show the intent and handler scores for a query, offline
  registry  - export or validate the handler registry file
  checklist - generate a pre-audit checklist, offline`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		if logFormat != "console" && logFormat != "json" {
			return fmt.Errorf("unknown log format %q (console or json)", logFormat)
		}
		log = logger.NewStructured(level, logFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log encoding on stderr: console or json")
	rootCmd.PersistentFlags().StringVar(&registryPath, "path", "", "registry YAML file (defaults to orchestrator.registry_path, then the built-in registry)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall timeout for a query")

	queryCmd.Flags().StringVar(&queryIntent, "intent", "", "skip classification and use this intent")

	registryCmd.AddCommand(registryExportCmd, registryValidateCmd)
	rootCmd.AddCommand(queryCmd, classifyCmd, registryCmd, checklistCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRegistry prefers --path, then the configured registry file, then the built-in registry.
func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	path := registryPath
	if path == "" && cfg != nil {
		path = cfg.Orchestrator.RegistryPath
	}
	if path == "" {
		return registry.Default(), nil
	}
	if _, err := os.Stat(path); err != nil && registryPath == "" {
		return registry.Default(), nil
	}
	return registry.Load(path)
}
