package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"audit-orchestrator/internal/capabilities/genai"
	apperrors "audit-orchestrator/internal/common/errors"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Doubles
// ==========================

type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(msg string, fields map[string]interface{}) {
	l.t.Logf("DEBUG: %s %v", msg, fields)
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}

type stubHandler struct {
	id     models.HandlerID
	output *models.HandlerOutput
	err    error
}

func (h *stubHandler) ID() models.HandlerID { return h.id }

func (h *stubHandler) ProcessQuery(ctx context.Context, query string) (*models.HandlerOutput, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.output, nil
}

func answer(id models.HandlerID, text string, scores ...float64) *stubHandler {
	out := &models.HandlerOutput{Response: text}
	for i, s := range scores {
		doc := models.Citation{DocumentID: "DOC_00" + string(rune('1'+i)), FileName: "f.pdf", FileExtension: ".pdf", RelevanceScore: s, HandlerID: id}
		out.Citations = append(out.Citations, doc)
		out.Sources = append(out.Sources, models.Source{DocumentID: doc.DocumentID, RelevanceScore: s, HandlerID: id})
	}
	return &stubHandler{id: id, output: out}
}

// scriptedGenerator answers by system prompt and records every request.
type scriptedGenerator struct {
	mu        sync.Mutex
	requests  []genai.Request
	synthErr  error
	synthText string
}

func (g *scriptedGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if strings.Contains(req.SystemPrompt, "correlating") || strings.Contains(req.SystemPrompt, "compliance analysis") {
		return "correlated", nil
	}
	if g.synthErr != nil {
		return "", g.synthErr
	}
	if g.synthText != "" {
		return g.synthText, nil
	}
	return "final answer", nil
}

func (g *scriptedGenerator) last() genai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

func fullSet() handlers.Set {
	return handlers.Set{
		models.HandlerInternalAudit:      answer(models.HandlerInternalAudit, "2 major findings", 0.75),
		models.HandlerSOP:                answer(models.HandlerSOP, "SOP-017 rev 4", 0.65),
		models.HandlerQualitySystems:     answer(models.HandlerQualitySystems, "3 open CAPAs", 0.9, 0.4),
		models.HandlerExternalRegulatory: answer(models.HandlerExternalRegulatory, "FDA guidance"),
		models.HandlerExternalConference: answer(models.HandlerExternalConference, "PDA conference"),
	}
}

func newOrchestrator(t *testing.T, set handlers.Set, gen genai.Generator) *Orchestrator {
	log := &TestLogger{t: t}
	reg := registry.Default()
	return New(Components{
		Registry:    reg,
		Classifier:  intent.NewClassifier(),
		Router:      selector.NewSelector(reg, selector.DefaultSelectorConfig()),
		Dispatcher:  dispatcher.New(&dispatcher.Config{HandlerTimeout: time.Second}, set, nil, log),
		Aggregator:  aggregator.New(0),
		Correlator:  correlator.New(&correlator.Config{ExcerptChars: 1000, Timeout: time.Second}, gen, log),
		Synthesizer: synthesizer.New(&synthesizer.Config{Timeout: time.Second, GeneralExcerpt: 500, KnownEntities: selector.DefaultSelectorConfig().KnownEntities}, reg, gen, log),
		Generator:   gen,
	}, nil, log)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestProcess_SupplierChecklist(t *testing.T) {
	gen := &scriptedGenerator{}
	o := newOrchestrator(t, fullSet(), gen)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	o.now = func() time.Time { return fixed }

	result, err := o.Process(context.Background(), "Generate a checklist for supplier audit of Acme Pharma", nil)
	require.NoError(t, err)

	assert.Equal(t, models.IntentAuditChecklist, result.Intent)
	assert.Equal(t, []models.HandlerID{models.HandlerInternalAudit, models.HandlerSOP, models.HandlerQualitySystems}, result.InvolvedHandlers)
	assert.Equal(t, "final answer", result.Response)
	assert.False(t, result.Degraded)
	assert.Empty(t, result.FailedHandlers)
	assert.Equal(t, fixed.UTC(), result.Timestamp)

	_, err = uuid.Parse(result.RequestID)
	assert.NoError(t, err)

	require.Len(t, result.HandlerStatuses, 3)
	for _, s := range result.HandlerStatuses {
		assert.Equal(t, models.StatusCompleted, s.Status, s.HandlerID)
	}

	assert.Len(t, result.Citations, 4)
	assert.Equal(t, 4, result.DocumentSummary.TotalDocuments)
	require.Len(t, result.DocumentSummary.HighRelevanceDocuments, 2)
	assert.Equal(t, 0.75, result.DocumentSummary.HighRelevanceDocuments[0].RelevanceScore)

	require.Contains(t, result.CorrelationInsights, correlator.QualityAuditCorrelation)
	assert.Equal(t, "correlated", result.CorrelationInsights[correlator.QualityAuditCorrelation].Text())
	assert.NotContains(t, result.CorrelationInsights, correlator.RegulatoryComplianceGaps)

	synth := gen.last()
	assert.Contains(t, synth.UserPrompt, "supplier audit of Acme Pharma")
}

func TestProcess_UnrecognizedQueryUsesDefaults(t *testing.T) {
	gen := &scriptedGenerator{}
	o := newOrchestrator(t, fullSet(), gen)

	result, err := o.Process(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, models.IntentGeneralAudit, result.Intent)
	assert.Equal(t, []models.HandlerID{models.HandlerInternalAudit}, result.InvolvedHandlers)
	assert.Empty(t, result.CorrelationInsights)

	synth := gen.last()
	assert.Equal(t, "You are an expert audit intelligence analyst.", synth.SystemPrompt)
	assert.Contains(t, synth.UserPrompt, "INTERNAL_AUDIT DATA:\n2 major findings")
}

func TestProcess_SuppliedIntentSkipsClassification(t *testing.T) {
	gen := &scriptedGenerator{}
	o := newOrchestrator(t, fullSet(), gen)

	in := models.IntentConferenceAnalysis
	result, err := o.Process(context.Background(), "hello", &in)
	require.NoError(t, err)

	assert.Equal(t, models.IntentConferenceAnalysis, result.Intent)
	assert.Contains(t, result.InvolvedHandlers, models.HandlerExternalConference)
}

func TestProcess_OneHandlerFailureDegrades(t *testing.T) {
	set := fullSet()
	set[models.HandlerSOP] = &stubHandler{id: models.HandlerSOP, err: errors.New("index unavailable")}

	gen := &scriptedGenerator{}
	o := newOrchestrator(t, set, gen)

	result, err := o.Process(context.Background(), "Generate a checklist for supplier audit of Acme Pharma", nil)
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.Response)
	assert.True(t, result.Degraded)
	assert.Equal(t, []models.HandlerID{models.HandlerSOP}, result.FailedHandlers)
	assert.Equal(t, models.StatusError, result.StatusOf(models.HandlerSOP))
	assert.Equal(t, models.StatusCompleted, result.StatusOf(models.HandlerInternalAudit))
	assert.Equal(t, models.StatusCompleted, result.StatusOf(models.HandlerQualitySystems))

	for _, c := range result.Citations {
		assert.NotEqual(t, models.HandlerSOP, c.HandlerID)
	}

	synth := gen.last()
	assert.Contains(t, synth.UserPrompt, "- SOP Information: not available")
	assert.Contains(t, synth.UserPrompt, "failed and their data is unavailable: sop.")
}

// ==========================
// Error Handling Tests
// ==========================

func TestProcess_InvalidInput(t *testing.T) {
	bogus := models.Intent("tax_filing")

	tests := []struct {
		name  string
		query string
		in    *models.Intent
		code  apperrors.ErrorCode
	}{
		{name: "empty query", query: "", code: apperrors.ErrCodeInvalidQuery},
		{name: "blank query", query: "   \n", code: apperrors.ErrCodeInvalidQuery},
		{name: "unknown intent", query: "hello", in: &bogus, code: apperrors.ErrCodeInvalidIntent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{}
			o := newOrchestrator(t, fullSet(), gen)

			result, err := o.Process(context.Background(), tt.query, tt.in)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			assert.Empty(t, gen.requests)
		})
	}
}

func TestProcess_SynthesisFailureIsFatal(t *testing.T) {
	gen := &scriptedGenerator{synthErr: apperrors.NewLLMFailedError(genai.ErrLLMFailed)}
	o := newOrchestrator(t, fullSet(), gen)

	result, err := o.Process(context.Background(), "Generate a checklist for supplier audit of Acme Pharma", nil)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrCodeSynthesisFailed, apperrors.CodeOf(err))
	assert.True(t, errors.Is(err, synthesizer.ErrSynthesisFailed))
}

// ==========================
// Live Support Tests
// ==========================

func TestLiveAuditSupport(t *testing.T) {
	gen := &scriptedGenerator{synthText: "Ask about cleaning validation"}
	o := newOrchestrator(t, fullSet(), gen)

	out, err := o.LiveAuditSupport(context.Background(), "Supplier audit day 2", "cleaning validation")
	require.NoError(t, err)
	assert.Equal(t, "Ask about cleaning validation", out)

	req := gen.last()
	assert.Equal(t, "You are a live audit meeting assistant.", req.SystemPrompt)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Contains(t, req.UserPrompt, "current topic: cleaning validation")
	assert.Contains(t, req.UserPrompt, "Meeting Context: Supplier audit day 2")

	_, err = o.LiveAuditSupport(context.Background(), "ctx", " ")
	assert.Equal(t, apperrors.ErrCodeInvalidQuery, apperrors.CodeOf(err))
}
