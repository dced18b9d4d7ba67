// internal/orchestration/correlator/correlator.go
package correlator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/common/config"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/common/text"
	"audit-orchestrator/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	QualityAuditCorrelation  = "quality_audit_correlation"
	RegulatoryComplianceGaps = "regulatory_compliance_gaps"

	temperature = 0.2
	maxTokens   = 1500
)

// Pair is a registered cross-handler analysis.
type Pair struct {
	Name         string
	Key          models.CorrelationKey
	Title        string
	FirstLabel   string
	SecondLabel  string
	Focus        []string
	SystemPrompt string
	ErrorLabel   string
}

// DefaultPairs lists the registered correlations.
var DefaultPairs = []Pair{
	{
		Name:        QualityAuditCorrelation,
		Key:         models.CorrelationKey{First: models.HandlerQualitySystems, Second: models.HandlerInternalAudit},
		Title:       "Analyze the correlation between quality systems data and internal audit findings:",
		FirstLabel:  "Quality Systems Data",
		SecondLabel: "Internal Audit Data",
		Focus: []string{
			"Quality issues that align with audit findings",
			"Compliance gaps that need attention",
			"Risk factors that appear in both datasets",
			"Recommendations for coordinated action",
		},
		SystemPrompt: "You are an expert in correlating quality and audit data.",
		ErrorLabel:   "Error in correlation analysis",
	},
	{
		Name:        RegulatoryComplianceGaps,
		Key:         models.CorrelationKey{First: models.HandlerSOP, Second: models.HandlerExternalRegulatory},
		Title:       "Analyze SOP compliance with current regulatory requirements:",
		FirstLabel:  "SOP Data",
		SecondLabel: "Regulatory Data",
		Focus: []string{
			"SOP gaps in regulatory compliance",
			"Outdated procedures that need updating",
			"Regulatory changes requiring SOP updates",
			"Compliance risk areas",
		},
		SystemPrompt: "You are an expert in regulatory compliance analysis.",
		ErrorLabel:   "Error in compliance analysis",
	},
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

type Config struct {
	ExcerptChars int
	Timeout      time.Duration
}

func NewConfig(appConfig *config.Config) *Config {
	return &Config{
		ExcerptChars: appConfig.Orchestrator.CorrelationExcerpt,
		Timeout:      config.GetDuration(appConfig.Orchestrator.CorrelationTimeout),
	}
}

// Correlator asks the text generator to relate the answers of registered handler pairs.
type Correlator struct {
	config    *Config
	pairs     []Pair
	generator genai.Generator
	logger    Logger
}

func New(config *Config, generator genai.Generator, log Logger) *Correlator {
	return NewWithPairs(config, DefaultPairs, generator, log)
}

func NewWithPairs(config *Config, pairs []Pair, generator genai.Generator, log Logger) *Correlator {
	return &Correlator{config: config, pairs: pairs, generator: generator, logger: log}
}

// Correlate runs every pair whose two handlers completed with non-empty text. A failed
// generation yields an error-marker insight instead of an error.
func (c *Correlator) Correlate(ctx context.Context, results map[models.HandlerID]*models.HandlerResult) map[string]*models.CorrelationInsight {
	insights := make(map[string]*models.CorrelationInsight)
	var mu sync.Mutex
	var g errgroup.Group

	for _, pair := range c.pairs {
		first, second := results[pair.Key.First], results[pair.Key.Second]
		if !usable(first) || !usable(second) {
			continue
		}

		g.Go(func() error {
			insight := c.correlate(ctx, pair, first.Response, second.Response)
			mu.Lock()
			insights[pair.Name] = insight
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return insights
}

func (c *Correlator) correlate(ctx context.Context, pair Pair, first, second string) *models.CorrelationInsight {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	insight := &models.CorrelationInsight{Name: pair.Name, Key: pair.Key}

	out, err := c.generator.Generate(ctx, genai.Request{
		SystemPrompt: pair.SystemPrompt,
		UserPrompt:   c.prompt(pair, first, second),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		wrapped := apperrors.NewCorrelationFailedError(pair.Name, err)
		insight.Error = fmt.Sprintf("%s: %s", pair.ErrorLabel, apperrors.Describe(err))
		metrics.Correlations.WithLabelValues(pair.Name, "error").Inc()
		c.logger.Warn("correlation failed", map[string]interface{}{
			"correlation": pair.Name,
			"error":       wrapped.Details,
		})
		return insight
	}

	insight.Insight = out
	metrics.Correlations.WithLabelValues(pair.Name, "completed").Inc()
	return insight
}

func (c *Correlator) prompt(pair Pair, first, second string) string {
	var b strings.Builder
	b.WriteString(pair.Title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s: %s\n", pair.FirstLabel, text.Excerpt(first, c.config.ExcerptChars))
	fmt.Fprintf(&b, "%s: %s\n\n", pair.SecondLabel, text.Excerpt(second, c.config.ExcerptChars))
	b.WriteString("Identify:\n")
	for i, f := range pair.Focus {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	return b.String()
}

func usable(r *models.HandlerResult) bool {
	return r.Completed() && strings.TrimSpace(r.Response) != ""
}
