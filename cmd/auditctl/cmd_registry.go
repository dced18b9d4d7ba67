package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"audit-orchestrator/internal/orchestration/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Export or validate the handler registry",
}

var registryExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the built-in registry as YAML to file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := registry.Default().Export()
		if err != nil {
			return fmt.Errorf("export registry: %w", err)
		}
		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write registry: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file given by --path",
	RunE: func(cmd *cobra.Command, args []string) error {
		if registryPath == "" {
			return fmt.Errorf("--path is required")
		}
		reg, err := registry.Load(registryPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d handlers, default %s\n", registryPath, reg.Len(), reg.DefaultHandler())
		return nil
	},
}
