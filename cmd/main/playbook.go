package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"caseflow/internal/services"
)

var playbookCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Work with playbook templates",
}

var playbookLintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Validate a playbook template file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := services.NewPlaybookService(nil).LintFile(args[0])
		if err != nil {
			return err
		}

		order, err := catalog.TopologicalOrder()
		if err != nil {
			return err
		}

		fmt.Printf("Playbook %q v%d is valid: %d steps\n", catalog.Name, catalog.Version, len(catalog.Steps))
		fmt.Printf("Dependency order: %v\n", order)
		return nil
	},
}
