package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/intent"
	"audit-orchestrator/internal/orchestration/registry"
	"audit-orchestrator/internal/orchestration/selector"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <query>",
	Short: "Show the intent and handler scores for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	// Configuration is optional for offline classification.
	cfg, _ := config.Load()
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	selCfg := selector.DefaultSelectorConfig()
	if cfg != nil {
		selCfg = selector.NewSelectorConfig(cfg)
	}
	return writeClassification(cmd.OutOrStdout(), query, reg, selCfg)
}

func writeClassification(w io.Writer, query string, reg *registry.Registry, selCfg selector.SelectorConfig) error {
	classifier := intent.NewClassifier()
	in := classifier.Classify(query)
	sel := selector.NewSelector(reg, selCfg)

	fmt.Fprintf(w, "Intent: %s\n", in)

	intentScores := classifier.Scores(query)
	if len(intentScores) > 0 {
		fmt.Fprintln(w, "\nIntent scores:")
		for _, i := range models.AllIntents {
			if s, ok := intentScores[i]; ok && s > 0 {
				fmt.Fprintf(w, "  %-22s %.2f\n", i, s)
			}
		}
	}

	scores := sel.Scores(query, in)
	ids := reg.IDs()
	sort.SliceStable(ids, func(a, b int) bool { return scores[ids[a]] > scores[ids[b]] })

	fmt.Fprintln(w, "\nHandler scores:")
	for _, id := range ids {
		fmt.Fprintf(w, "  %-22s %.2f\n", id, scores[id])
	}

	selected := sel.Select(query, in)
	names := make([]string, len(selected))
	for i, id := range selected {
		names[i] = string(id)
	}
	fmt.Fprintf(w, "\nSelected: %s\n", strings.Join(names, ", "))
	return nil
}
