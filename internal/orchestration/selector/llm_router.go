// internal/orchestration/selector/llm_router.go
package selector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"audit-orchestrator/internal/capabilities/genai"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/common/validation"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/registry"
)

// FallbackDeterministic routes with the keyword Selector whenever LLM routing fails.
const FallbackDeterministic = "deterministic"

var (
	ErrRoutingParse = errors.New("ROUTING_PARSE_FAILED")
	ErrNoSelection  = errors.New("routing selected no handler")
)

const routingSystemPrompt = "You route pharmaceutical audit questions to knowledge handlers. " +
	"Answer only with a JSON object mapping every handler id to true or false."

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// LLMRouter asks the text generator which handlers to involve and falls back to the
// deterministic selector on any failure.
type LLMRouter struct {
	registry  *registry.Registry
	generator genai.Generator
	fallback  *Selector
	timeout   time.Duration
	logger    Logger
}

func NewLLMRouter(reg *registry.Registry, generator genai.Generator, fallback *Selector, timeout time.Duration, log Logger) *LLMRouter {
	return &LLMRouter{
		registry:  reg,
		generator: generator,
		fallback:  fallback,
		timeout:   timeout,
		logger:    log,
	}
}

func (r *LLMRouter) Route(ctx context.Context, query string, in models.Intent) []models.HandlerID {
	selected, err := r.route(ctx, query, in)
	if err != nil {
		metrics.RoutingFallbacks.Inc()
		r.logger.Warn("llm routing failed, using fallback", map[string]interface{}{
			"fallback": FallbackDeterministic,
			"error":    err.Error(),
		})
		return r.fallback.Select(query, in)
	}
	return selected
}

func (r *LLMRouter) route(ctx context.Context, query string, in models.Intent) ([]models.HandlerID, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.generator.Generate(ctx, genai.Request{
		SystemPrompt: routingSystemPrompt,
		UserPrompt:   r.prompt(query, in),
		Temperature:  0,
		MaxTokens:    200,
	})
	if err != nil {
		return nil, err
	}
	return r.parse(text)
}

func (r *LLMRouter) prompt(query string, in models.Intent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\nIntent: %s\n\nHandlers:\n", query, in)
	for _, d := range r.registry.Descriptors() {
		fmt.Fprintf(&b, "- %s: %s (keywords: %s)\n", d.ID, d.DisplayName, strings.Join(d.Keywords, ", "))
	}
	return b.String()
}

func (r *LLMRouter) parse(text string) ([]models.HandlerID, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, apperrors.NewRoutingParseFailedError(fmt.Errorf("%w: no JSON object in response", ErrRoutingParse))
	}

	result, err := validation.RoutingResponse.ValidateJSON([]byte(raw))
	if err != nil {
		return nil, apperrors.NewRoutingParseFailedError(fmt.Errorf("%w: %v", ErrRoutingParse, err))
	}
	if !result.Valid {
		return nil, apperrors.NewRoutingParseFailedError(fmt.Errorf("%w: %s", ErrRoutingParse, result.Summary()))
	}

	var choice map[string]bool
	if err := json.Unmarshal([]byte(raw), &choice); err != nil {
		return nil, apperrors.NewRoutingParseFailedError(fmt.Errorf("%w: %v", ErrRoutingParse, err))
	}

	var selected []models.HandlerID
	for _, id := range r.registry.IDs() {
		if choice[string(id)] {
			selected = append(selected, id)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoSelection
	}
	return selected, nil
}

// extractJSONObject returns the outermost {...} span of s, tolerating code fences and prose.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
