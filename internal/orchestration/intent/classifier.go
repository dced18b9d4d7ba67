// internal/orchestration/intent/classifier.go
package intent

import (
	"strings"

	"audit-orchestrator/internal/models"
)

const keywordWeight = 1.0

// Pattern is the trigger keyword set of one intent.
type Pattern struct {
	Intent   models.Intent
	Keywords []string
	Weight   float64
}

// DefaultPatterns is the reference keyword table in intent declaration order.
var DefaultPatterns = []Pattern{
	{models.IntentAuditChecklist, []string{"checklist", "list", "steps", "procedures", "items to check", "audit items"}, keywordWeight},
	{models.IntentAuditAgenda, []string{"agenda", "schedule", "plan", "timeline", "meeting plan", "audit plan"}, keywordWeight},
	{models.IntentAuditReport, []string{"report", "findings", "observations", "summary", "conclusion", "audit report"}, keywordWeight},
	{models.IntentDeltaAnalysis, []string{"changed", "delta", "since last", "updates", "what changed", "differences", "modifications"}, keywordWeight},
	{models.IntentHealthAssessment, []string{"health", "status", "360", "overview", "assessment", "evaluation", "condition"}, keywordWeight},
	{models.IntentTrendAnalysis, []string{"insights", "trends", "patterns", "analysis", "statistics", "metrics", "performance"}, keywordWeight},
	{models.IntentSupplierAudit, []string{"supplier", "cdmo", "vendor", "contractor", "external", "third party"}, keywordWeight},
	{models.IntentInternalAudit, []string{"internal", "site", "facility", "own", "company", "in-house"}, keywordWeight},
	{models.IntentRegulatoryAudit, []string{"regulatory", "compliance", "fda", "ema", "gmp", "inspection", "regulatory audit"}, keywordWeight},
	{models.IntentQualityAnalysis, []string{"quality", "deviations", "capas", "non-conformances", "quality issues", "quality events"}, keywordWeight},
	{models.IntentSOPReview, []string{"sop", "procedures", "documentation", "policies", "standard operating procedures"}, keywordWeight},
	{models.IntentRegulatoryResearch, []string{"regulations", "guidelines", "fda guidance", "ema guidance", "regulatory updates"}, keywordWeight},
	{models.IntentConferenceAnalysis, []string{"conference", "meeting", "event", "presentation", "industry", "external engagement"}, keywordWeight},
}

// Classifier maps a query to one intent by keyword scoring. It is safe for concurrent use.
type Classifier struct {
	patterns []Pattern
}

func NewClassifier() *Classifier {
	return NewClassifierWithPatterns(DefaultPatterns)
}

// NewClassifierWithPatterns uses patterns in the given order; earlier patterns win ties.
func NewClassifierWithPatterns(patterns []Pattern) *Classifier {
	p := make([]Pattern, len(patterns))
	for i, pattern := range patterns {
		kw := make([]string, len(pattern.Keywords))
		for j, k := range pattern.Keywords {
			kw[j] = strings.ToLower(k)
		}
		p[i] = Pattern{Intent: pattern.Intent, Keywords: kw, Weight: pattern.Weight}
	}
	return &Classifier{patterns: p}
}

// Classify returns the strictly highest scoring intent, or general_audit when nothing matches.
func (c *Classifier) Classify(query string) models.Intent {
	best := models.DefaultIntent
	bestScore := 0.0
	q := strings.ToLower(query)

	for _, p := range c.patterns {
		score := p.score(q)
		if score > bestScore {
			best, bestScore = p.Intent, score
		}
	}
	return best
}

// Scores returns every non-zero intent score.
func (c *Classifier) Scores(query string) map[models.Intent]float64 {
	scores := make(map[models.Intent]float64)
	q := strings.ToLower(query)
	for _, p := range c.patterns {
		if s := p.score(q); s > 0 {
			scores[p.Intent] = s
		}
	}
	return scores
}

func (p Pattern) score(lowerQuery string) float64 {
	score := 0.0
	for _, k := range p.Keywords {
		if strings.Contains(lowerQuery, k) {
			score += p.Weight
		}
	}
	return score
}
