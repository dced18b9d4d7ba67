// internal/orchestration/aggregator/aggregator.go
package aggregator

import (
	"strings"

	"audit-orchestrator/internal/models"
)

const (
	DefaultHighRelevanceThreshold = 0.7
	UnknownExtension              = "unknown"
)

// Result is the merged evidence of one request.
type Result struct {
	Sources   []models.Source
	Citations []models.Citation
	Summary   models.DocumentSummary
}

// Aggregator merges handler results. It never fails.
type Aggregator struct {
	highRelevance float64
}

// New uses threshold as the strict lower bound for high-relevance documents; zero selects
// the default.
func New(threshold float64) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultHighRelevanceThreshold
	}
	return &Aggregator{highRelevance: threshold}
}

// Aggregate walks completed results in order and re-stamps every record with its handler.
func (a *Aggregator) Aggregate(results map[models.HandlerID]*models.HandlerResult, order []models.HandlerID) Result {
	out := Result{
		Sources:   []models.Source{},
		Citations: []models.Citation{},
	}

	for _, id := range order {
		r, ok := results[id]
		if !ok || !r.Completed() {
			continue
		}
		for _, s := range r.Sources {
			s.HandlerID = id
			out.Sources = append(out.Sources, s)
		}
		for _, c := range r.Citations {
			c.HandlerID = id
			out.Citations = append(out.Citations, c)
		}
	}

	out.Summary = Summarize(out.Citations, a.highRelevance)
	return out
}

// Summarize derives document statistics from citations alone.
func Summarize(citations []models.Citation, highRelevance float64) models.DocumentSummary {
	summary := models.DocumentSummary{
		TotalDocuments:         len(citations),
		DocumentTypes:          map[string]int{},
		HandlersUsed:           []models.HandlerID{},
		HighRelevanceDocuments: []models.Citation{},
		DocumentBreakdown:      map[models.HandlerID][]models.Citation{},
	}

	for _, c := range citations {
		summary.DocumentTypes[extensionBucket(c.FileExtension)]++

		if _, seen := summary.DocumentBreakdown[c.HandlerID]; !seen {
			summary.HandlersUsed = append(summary.HandlersUsed, c.HandlerID)
		}
		summary.DocumentBreakdown[c.HandlerID] = append(summary.DocumentBreakdown[c.HandlerID], c)

		if c.RelevanceScore > highRelevance {
			summary.HighRelevanceDocuments = append(summary.HighRelevanceDocuments, c)
		}
	}
	return summary
}

func extensionBucket(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == UnknownExtension {
		return UnknownExtension
	}
	return ext
}
