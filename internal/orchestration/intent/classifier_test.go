package intent

import (
	"testing"

	"audit-orchestrator/internal/models"

	"github.com/stretchr/testify/assert"
)

var knownEntities = []string{"acme pharma", "hovione", "boehringer", "thermo fisher", "grand river"}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name  string
		query string
		want  models.Intent
	}{
		{"checklist", "Generate a checklist for supplier audit of Acme Pharma", models.IntentAuditChecklist},
		{"no keywords", "hello", models.IntentGeneralAudit},
		{"empty", "", models.IntentGeneralAudit},
		{"case insensitive", "PREPARE THE AGENDA", models.IntentAuditAgenda},
		{"delta", "What changed since last inspection?", models.IntentDeltaAnalysis},
		{"health", "Give me a 360 overview of Hovione", models.IntentHealthAssessment},
		{"trend", "Show quality trends and metrics", models.IntentTrendAnalysis},
		{"conference", "Which industry conference presentations mention Boehringer?", models.IntentConferenceAnalysis},
		{"regulatory research", "Summarize new regulations and guidelines from FDA guidance", models.IntentRegulatoryResearch},
		{"quality", "List deviations and capas", models.IntentQualityAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.query))
		})
	}
}

func TestClassifier_TieBreaksTowardEarlierIntent(t *testing.T) {
	c := NewClassifier()

	// "procedures" scores audit_checklist and sop_review equally.
	scores := c.Scores("procedures")
	assert.Equal(t, 1.0, scores[models.IntentAuditChecklist])
	assert.Equal(t, 1.0, scores[models.IntentSOPReview])
	assert.Equal(t, models.IntentAuditChecklist, c.Classify("procedures"))

	custom := NewClassifierWithPatterns([]Pattern{
		{models.IntentSOPReview, []string{"Alpha"}, 1},
		{models.IntentAuditChecklist, []string{"alpha"}, 1},
	})
	assert.Equal(t, models.IntentSOPReview, custom.Classify("alpha"))
}

func TestClassifier_Scores(t *testing.T) {
	c := NewClassifier()

	scores := c.Scores("Generate a checklist for supplier audit of Acme Pharma")
	assert.Equal(t, map[models.Intent]float64{
		models.IntentAuditChecklist: 2,
		models.IntentSupplierAudit:  1,
	}, scores)

	assert.Empty(t, c.Scores("hello"))
}

func TestClassifier_IsDeterministic(t *testing.T) {
	c := NewClassifier()
	q := "audit report with findings on quality events and sop updates"
	first := c.Classify(q)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Classify(q))
	}
}

func TestExtractCompany(t *testing.T) {
	assert.Equal(t, "Acme Pharma", ExtractCompany("audit ACME pharma now", knownEntities))
	assert.Equal(t, "Thermo Fisher", ExtractCompany("thermo fisher health", knownEntities))
	assert.Equal(t, "the company", ExtractCompany("audit program review", knownEntities))
	assert.Equal(t, "the company", ExtractCompany("anything", nil))

	assert.True(t, MentionsEntity("Hovione supplier", knownEntities))
	assert.False(t, MentionsEntity("hello", knownEntities))
}

func TestAuditType(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"CDMO audit", AuditTypeSupplier},
		{"supplier and internal", AuditTypeSupplier},
		{"site walk", AuditTypeInternal},
		{"compliance review", AuditTypeRegulatory},
		{"general", AuditTypeComprehensive},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AuditType(tt.query), tt.query)
	}
}

func TestTimePeriod(t *testing.T) {
	assert.Equal(t, "last year", TimePeriod("changes in the Last Year"))
	assert.Equal(t, "last 6 months", TimePeriod("last 6 months"))
	assert.Equal(t, "last quarter", TimePeriod("since last quarter"))
	assert.Equal(t, "last audit", TimePeriod("since the previous visit"))
}
