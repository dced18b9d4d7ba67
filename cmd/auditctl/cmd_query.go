package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/capabilities/knowledge"
	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/common/database"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/observability"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/orchestrator"
)

var (
	queryIntent string
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run one audit query end to end",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full result as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var in *models.Intent
	if queryIntent != "" {
		parsed, ok := models.ParseIntent(queryIntent)
		if !ok {
			return fmt.Errorf("unknown intent %q (one of %s)", queryIntent, strings.Join(models.IntentNames(), ", "))
		}
		in = &parsed
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return err
	}
	if err := es.Ping(ctx); err != nil {
		return err
	}

	// Search results are not cached for one-off CLI queries.
	searcher := knowledge.NewElasticSearcher(knowledge.NewConfig(cfg), es.Client, nil, log)
	generator := genai.NewClient(genai.NewConfig(cfg), log)
	obs := observability.New("auditctl", log)
	defer obs.Shutdown()

	orch := orchestrator.NewFromConfig(cfg, reg, searcher, generator, obs, log)
	result, err := orch.Process(ctx, strings.Join(args, " "), in)
	if err != nil {
		log.Debug("query failed", map[string]interface{}{"error": err})
		return fmt.Errorf("%s", apperrors.Describe(err))
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Intent: %s\nHandlers: %v\n", result.Intent, result.InvolvedHandlers)
	if result.Degraded {
		fmt.Fprintf(out, "Degraded: failed handlers %v\n", result.FailedHandlers)
	}
	fmt.Fprintf(out, "\n%s\n", result.Response)
	if len(result.Citations) > 0 {
		fmt.Fprintf(out, "\nSources (%d):\n", len(result.Citations))
		for _, c := range result.Citations {
			fmt.Fprintf(out, "  [%s] %s (%.2f)\n", c.HandlerID, c.FileName, c.RelevanceScore)
		}
	}
	return nil
}
