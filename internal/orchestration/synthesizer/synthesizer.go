// internal/orchestration/synthesizer/synthesizer.go
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/common/config"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/common/text"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/intent"
	"audit-orchestrator/internal/orchestration/registry"
)

var ErrSynthesisFailed = errors.New("SYNTHESIS_FAILED")

const notAvailable = "not available"

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type Config struct {
	Timeout        time.Duration
	GeneralExcerpt int
	KnownEntities  []string
}

func NewConfig(appConfig *config.Config) *Config {
	return &Config{
		Timeout:        config.GetDuration(appConfig.Orchestrator.SynthesisTimeout),
		GeneralExcerpt: appConfig.Orchestrator.GeneralExcerpt,
		KnownEntities:  appConfig.Orchestrator.KnownEntities,
	}
}

// Synthesizer turns handler answers and correlation insights into one final response.
type Synthesizer struct {
	config    *Config
	registry  *registry.Registry
	generator genai.Generator
	logger    Logger
}

func New(config *Config, reg *registry.Registry, generator genai.Generator, log Logger) *Synthesizer {
	if config.GeneralExcerpt <= 0 {
		config.GeneralExcerpt = 500
	}
	return &Synthesizer{config: config, registry: reg, generator: generator, logger: log}
}

// Synthesize issues exactly one text generation call and returns its output verbatim.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	query string,
	in models.Intent,
	results map[models.HandlerID]*models.HandlerResult,
	correlations map[string]*models.CorrelationInsight,
) (string, error) {
	req := s.Request(query, in, results, correlations)

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	s.logger.Debug("synthesizing response", map[string]interface{}{
		"intent":        in,
		"prompt_length": len(req.UserPrompt),
	})

	out, err := s.generator.Generate(ctx, req)
	if err != nil {
		metrics.SynthesisFailures.WithLabelValues(string(in)).Inc()
		s.logger.Warn("synthesis failed", map[string]interface{}{
			"intent": in,
			"error":  apperrors.Describe(err),
		})
		return "", apperrors.NewSynthesisFailedError(string(in), fmt.Errorf("%w: %v", ErrSynthesisFailed, apperrors.Describe(err)))
	}
	return out, nil
}

// Request builds the generation request for in without calling the generator.
func (s *Synthesizer) Request(
	query string,
	in models.Intent,
	results map[models.HandlerID]*models.HandlerResult,
	correlations map[string]*models.CorrelationInsight,
) genai.Request {
	var req genai.Request
	if tmpl, ok := TemplateFor(in); ok {
		req = genai.Request{
			SystemPrompt: tmpl.SystemPrompt,
			UserPrompt:   s.templatePrompt(tmpl, query, results, correlations),
			Temperature:  tmpl.Temperature,
			MaxTokens:    tmpl.MaxTokens,
		}
	} else {
		req = genai.Request{
			SystemPrompt: generalSystemPrompt,
			UserPrompt:   s.generalPrompt(query, results),
			Temperature:  generalTemperature,
			MaxTokens:    generalMaxTokens,
		}
	}

	if failed := s.failedHandlers(results); len(failed) > 0 {
		req.UserPrompt += failureNote(failed)
	}
	return req
}

func (s *Synthesizer) templatePrompt(
	tmpl Template,
	query string,
	results map[models.HandlerID]*models.HandlerResult,
	correlations map[string]*models.CorrelationInsight,
) string {
	replacer := strings.NewReplacer(
		"{query}", query,
		"{company}", intent.ExtractCompany(query, s.config.KnownEntities),
		"{audit_type}", intent.AuditType(query),
		"{time_period}", intent.TimePeriod(query),
	)

	var b strings.Builder
	b.WriteString(replacer.Replace(tmpl.Header))
	b.WriteString("\n\n")
	b.WriteString(tmpl.Section)
	b.WriteString("\n")
	for _, f := range tmpl.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, fieldText(results[f.Handler], tmpl.ExcerptChars))
	}

	if tmpl.Correlation != "" {
		if insight, ok := correlations[tmpl.Correlation]; ok {
			fmt.Fprintf(&b, "\nCorrelation Insights:\n%s\n", insight.Text())
		}
	}

	if len(tmpl.Checklist) > 0 {
		b.WriteString("\nRequirements:\n")
		for i, item := range tmpl.Checklist {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	}
	if tmpl.Closing != "" {
		b.WriteString("\n")
		b.WriteString(tmpl.Closing)
	}
	return b.String()
}

func (s *Synthesizer) generalPrompt(query string, results map[models.HandlerID]*models.HandlerResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provide a comprehensive audit intelligence response to: %s\n\nAvailable Data:\n", query)
	for _, id := range s.ordered(results) {
		r := results[id]
		if !r.Completed() {
			continue
		}
		fmt.Fprintf(&b, "\n%s DATA:\n%s\n", strings.ToUpper(string(id)), text.Excerpt(r.Response, s.config.GeneralExcerpt))
	}
	b.WriteString("\nProvide a well-structured, actionable response that addresses the query comprehensively.")
	return b.String()
}

func (s *Synthesizer) failedHandlers(results map[models.HandlerID]*models.HandlerResult) []models.HandlerID {
	var failed []models.HandlerID
	for _, id := range s.ordered(results) {
		if r := results[id]; r != nil && r.Status == models.StatusError {
			failed = append(failed, id)
		}
	}
	return failed
}

// ordered returns the result ids in registry order; unregistered ids sort last by name.
func (s *Synthesizer) ordered(results map[models.HandlerID]*models.HandlerResult) []models.HandlerID {
	ids := make([]models.HandlerID, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := s.position(ids[i]), s.position(ids[j])
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *Synthesizer) position(id models.HandlerID) int {
	if s.registry == nil {
		return 0
	}
	if p := s.registry.Position(id); p >= 0 {
		return p
	}
	return s.registry.Len()
}

func fieldText(r *models.HandlerResult, limit int) string {
	if !r.Completed() || strings.TrimSpace(r.Response) == "" {
		return notAvailable
	}
	return text.Excerpt(r.Response, limit)
}

func failureNote(failed []models.HandlerID) string {
	names := make([]string, len(failed))
	for i, id := range failed {
		names[i] = string(id)
	}
	return fmt.Sprintf("\n\nNote: the following knowledge sources failed and their data is unavailable: %s. "+
		"Acknowledge the gap where it affects the answer.", strings.Join(names, ", "))
}
