// internal/models/intent.go
package models

// Intent is the discrete classification of what a query asks the platform to produce.
type Intent string

const (
	IntentAuditChecklist     Intent = "audit_checklist"
	IntentAuditAgenda        Intent = "audit_agenda"
	IntentAuditReport        Intent = "audit_report"
	IntentDeltaAnalysis      Intent = "delta_analysis"
	IntentHealthAssessment   Intent = "health_assessment"
	IntentTrendAnalysis      Intent = "trend_analysis"
	IntentSupplierAudit      Intent = "supplier_audit"
	IntentInternalAudit      Intent = "internal_audit"
	IntentRegulatoryAudit    Intent = "regulatory_audit"
	IntentQualityAnalysis    Intent = "quality_analysis"
	IntentSOPReview          Intent = "sop_review"
	IntentRegulatoryResearch Intent = "regulatory_research"
	IntentConferenceAnalysis Intent = "conference_analysis"
	IntentGeneralAudit       Intent = "general_audit"
)

// DefaultIntent is returned when no intent keyword matches.
const DefaultIntent = IntentGeneralAudit

// AllIntents lists the closed intent set in declaration order. Classification ties
// resolve toward the earlier entry.
var AllIntents = []Intent{
	IntentAuditChecklist,
	IntentAuditAgenda,
	IntentAuditReport,
	IntentDeltaAnalysis,
	IntentHealthAssessment,
	IntentTrendAnalysis,
	IntentSupplierAudit,
	IntentInternalAudit,
	IntentRegulatoryAudit,
	IntentQualityAnalysis,
	IntentSOPReview,
	IntentRegulatoryResearch,
	IntentConferenceAnalysis,
	IntentGeneralAudit,
}

// IsValid reports whether the intent belongs to the closed set.
func (i Intent) IsValid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}

// ParseIntent converts free text into an Intent, reporting false for unknown values.
func ParseIntent(s string) (Intent, bool) {
	intent := Intent(s)
	return intent, intent.IsValid()
}

// IntentNames returns the intent values as strings, in declaration order.
func IntentNames() []string {
	names := make([]string, len(AllIntents))
	for i, intent := range AllIntents {
		names[i] = string(intent)
	}
	return names
}
