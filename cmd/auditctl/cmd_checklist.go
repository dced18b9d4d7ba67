package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audit-orchestrator/internal/checklist"
	apperrors "audit-orchestrator/internal/common/errors"
)

var (
	checklistCompany  string
	checklistType     string
	checklistModality string
	checklistRisks    []string
	checklistAreas    []string
	checklistJSON     bool
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Generate a pre-audit checklist",
	Long: `checklist builds a prioritized audit checklist from the built-in library.

Modalities: ` + strings.Join(checklist.DefaultLibrary().ModalityNames(), ", ") + `
Audit types with dedicated items: supplier, internal, regulatory`,
	Args: cobra.NoArgs,
	RunE: runChecklist,
}

func init() {
	checklistCmd.Flags().StringVar(&checklistCompany, "company", "", "audited company")
	checklistCmd.Flags().StringVar(&checklistType, "type", "", "audit type (supplier, internal, regulatory, ...)")
	checklistCmd.Flags().StringVar(&checklistModality, "modality", "", "product modality")
	checklistCmd.Flags().StringArrayVar(&checklistRisks, "risk", nil, "risk factor to cover (repeatable)")
	checklistCmd.Flags().StringArrayVar(&checklistAreas, "area", nil, "additional area to review (repeatable)")
	checklistCmd.Flags().BoolVar(&checklistJSON, "json", false, "print the checklist with its items as JSON")
	_ = checklistCmd.MarkFlagRequired("company")
	_ = checklistCmd.MarkFlagRequired("type")
}

func runChecklist(cmd *cobra.Command, args []string) error {
	list, err := checklist.NewGenerator(nil).Generate(checklist.Request{
		AuditType:       checklistType,
		Company:         checklistCompany,
		ProductModality: checklistModality,
		RiskFactors:     checklistRisks,
		CustomAreas:     checklistAreas,
	})
	if err != nil {
		return fmt.Errorf("%s", apperrors.Describe(err))
	}
	log.Debug("checklist generated", map[string]interface{}{
		"company":           list.Company,
		"auditType":         list.AuditType,
		"totalItems":        list.TotalItems,
		"priorityBreakdown": list.PriorityBreakdown,
	})

	out := cmd.OutOrStdout()
	if checklistJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	_, err = fmt.Fprint(out, list.Markdown)
	return err
}
