// internal/orchestration/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"audit-orchestrator/internal/capabilities/genai"
	"audit-orchestrator/internal/capabilities/knowledge"
	"audit-orchestrator/internal/common/config"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/common/observability"
	"audit-orchestrator/internal/handlers"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/aggregator"
	"audit-orchestrator/internal/orchestration/correlator"
	"audit-orchestrator/internal/orchestration/dispatcher"
	"audit-orchestrator/internal/orchestration/intent"
	"audit-orchestrator/internal/orchestration/registry"
	"audit-orchestrator/internal/orchestration/selector"
	"audit-orchestrator/internal/orchestration/synthesizer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	RoutingDeterministic = "deterministic"
	RoutingLLM           = "llm"
)

const (
	liveSupportSystemPrompt = "You are a live audit meeting assistant."
	liveSupportTemperature  = 0.3
	liveSupportMaxTokens    = 1000
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Components are the stages Process runs in order.
type Components struct {
	Registry    *registry.Registry
	Classifier  *intent.Classifier
	Router      selector.Router
	Dispatcher  *dispatcher.Dispatcher
	Aggregator  *aggregator.Aggregator
	Correlator  *correlator.Correlator
	Synthesizer *synthesizer.Synthesizer
	Generator   genai.Generator
}

// Orchestrator answers one audit query by routing it to knowledge handlers and
// synthesizing their answers.
type Orchestrator struct {
	components Components
	obs        *observability.Observability
	logger     Logger
	now        func() time.Time
}

func New(components Components, obs *observability.Observability, log Logger) *Orchestrator {
	return &Orchestrator{components: components, obs: obs, logger: log, now: time.Now}
}

// NewFromConfig wires every stage from application configuration.
func NewFromConfig(
	appConfig *config.Config,
	reg *registry.Registry,
	searcher knowledge.Searcher,
	generator genai.Generator,
	obs *observability.Observability,
	log Logger,
) *Orchestrator {
	sel := selector.NewSelector(reg, selector.NewSelectorConfig(appConfig))

	var router selector.Router = sel
	if strings.EqualFold(appConfig.Orchestrator.RoutingStrategy, RoutingLLM) {
		router = selector.NewLLMRouter(reg, generator, sel,
			config.GetDuration(appConfig.Orchestrator.RoutingTimeout), log)
	}

	set := handlers.NewSet(reg, searcher, generator, handlers.NewConfig(appConfig), log)

	return New(Components{
		Registry:    reg,
		Classifier:  intent.NewClassifier(),
		Router:      router,
		Dispatcher:  dispatcher.New(dispatcher.NewConfig(appConfig), set, obs, log),
		Aggregator:  aggregator.New(appConfig.Orchestrator.HighRelevanceThreshold),
		Correlator:  correlator.New(correlator.NewConfig(appConfig), generator, log),
		Synthesizer: synthesizer.New(synthesizer.NewConfig(appConfig), reg, generator, log),
		Generator:   generator,
	}, obs, log)
}

// Process runs the full pipeline for query. A nil in triggers classification. Handler
// and correlation failures degrade the result; only invalid input and synthesis failure
// return an error.
func (o *Orchestrator) Process(ctx context.Context, query string, in *models.Intent) (*models.OrchestrationResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewInvalidQueryError("query is empty")
	}
	if in != nil && !in.IsValid() {
		return nil, apperrors.NewInvalidIntentError(string(*in))
	}

	metrics.QueriesInFlight.Inc()
	defer metrics.QueriesInFlight.Dec()

	start := time.Now()
	requestID := uuid.New().String()

	ctx, span := o.obs.StartSpan(ctx, "orchestrator.process", attribute.String("request_id", requestID))

	resolved := o.classify(ctx, query, in)
	span.SetAttributes(attribute.String("intent", string(resolved)))

	result, err := o.run(ctx, requestID, query, resolved)

	outcome := "completed"
	switch {
	case err != nil:
		outcome = "failed"
	case result.Degraded:
		outcome = "degraded"
	}
	elapsed := time.Since(start)
	metrics.QueriesProcessed.WithLabelValues(string(resolved), outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(resolved)).Observe(elapsed.Seconds())
	o.obs.RecordQueryProcessed(ctx, string(resolved), outcome)
	o.obs.RecordQueryDuration(ctx, elapsed, string(resolved))
	observability.EndSpan(span, err)

	if err != nil {
		return nil, err
	}

	o.logger.Info("query processed", map[string]interface{}{
		"request_id":  requestID,
		"intent":      resolved,
		"handlers":    len(result.InvolvedHandlers),
		"failed":      len(result.FailedHandlers),
		"documents":   result.DocumentSummary.TotalDocuments,
		"duration_ms": elapsed.Milliseconds(),
	})
	return result, nil
}

func (o *Orchestrator) classify(ctx context.Context, query string, in *models.Intent) models.Intent {
	if in != nil {
		return *in
	}
	_, span := o.obs.StartSpan(ctx, "orchestrator.classify")
	defer span.End()
	return o.components.Classifier.Classify(query)
}

func (o *Orchestrator) run(ctx context.Context, requestID, query string, in models.Intent) (*models.OrchestrationResult, error) {
	c := o.components

	routeCtx, span := o.obs.StartSpan(ctx, "orchestrator.select")
	selected := c.Router.Route(routeCtx, query, in)
	span.SetAttributes(attribute.Int("handlers", len(selected)))
	span.End()

	o.logger.Debug("handlers selected", map[string]interface{}{
		"request_id": requestID,
		"intent":     in,
		"handlers":   selected,
	})

	tracker := dispatcher.NewRequestTracker(selected)
	dispatchCtx, span := o.obs.StartSpan(dispatcher.WithTracker(ctx, tracker), "orchestrator.dispatch")
	results := c.Dispatcher.Dispatch(dispatchCtx, query, selected)
	span.End()

	aggregated := c.Aggregator.Aggregate(results, selected)

	correlateCtx, span := o.obs.StartSpan(ctx, "orchestrator.correlate")
	insights := c.Correlator.Correlate(correlateCtx, results)
	span.End()

	synthCtx, span := o.obs.StartSpan(ctx, "orchestrator.synthesize")
	response, err := c.Synthesizer.Synthesize(synthCtx, query, in, results, insights)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	failed := failedHandlers(results, selected)
	if len(failed) > 0 {
		o.logger.Warn("query answered with degraded coverage", map[string]interface{}{
			"request_id":      requestID,
			"failed_handlers": failed,
		})
	}

	return &models.OrchestrationResult{
		RequestID:           requestID,
		Query:               query,
		Intent:              in,
		Response:            response,
		InvolvedHandlers:    selected,
		HandlerStatuses:     tracker.Snapshot(),
		Sources:             aggregated.Sources,
		Citations:           aggregated.Citations,
		DocumentSummary:     aggregated.Summary,
		CorrelationInsights: insights,
		FailedHandlers:      failed,
		Degraded:            len(failed) > 0,
		Timestamp:           o.now().UTC(),
	}, nil
}

// LiveAuditSupport answers a question raised during an audit meeting. It does not consult
// any knowledge handler.
func (o *Orchestrator) LiveAuditSupport(ctx context.Context, meetingContext, topic string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", apperrors.NewInvalidQueryError("topic is empty")
	}

	ctx, span := o.obs.StartSpan(ctx, "orchestrator.live_support")
	out, err := o.components.Generator.Generate(ctx, genai.Request{
		SystemPrompt: liveSupportSystemPrompt,
		UserPrompt:   liveSupportPrompt(meetingContext, topic),
		Temperature:  liveSupportTemperature,
		MaxTokens:    liveSupportMaxTokens,
	})
	observability.EndSpan(span, err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Registry exposes the handler registry the orchestrator routes over.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.components.Registry
}

func liveSupportPrompt(meetingContext, topic string) string {
	return fmt.Sprintf("Provide live audit support for current topic: %s\n\n"+
		"Meeting Context: %s\n\n"+
		"Provide:\n"+
		"1. Relevant questions to ask\n"+
		"2. Key areas to investigate\n"+
		"3. Regulatory considerations\n"+
		"4. Risk assessment for current topic\n\n"+
		"Keep response concise and actionable for live meeting use.", topic, meetingContext)
}

func failedHandlers(results map[models.HandlerID]*models.HandlerResult, order []models.HandlerID) []models.HandlerID {
	var failed []models.HandlerID
	for _, id := range order {
		if r, ok := results[id]; ok && !r.Completed() {
			failed = append(failed, id)
		}
	}
	return failed
}
