package aggregator

import (
	"testing"

	"audit-orchestrator/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func citation(doc string, ext string, score float64, h models.HandlerID) models.Citation {
	return models.Citation{DocumentID: doc, Title: doc, FileName: doc + ext, FileExtension: ext, RelevanceScore: score, HandlerID: h}
}

func TestAggregate_MergesCompletedInOrder(t *testing.T) {
	results := map[models.HandlerID]*models.HandlerResult{
		models.HandlerSOP: {
			HandlerID: models.HandlerSOP,
			Status:    models.StatusCompleted,
			Sources:   []models.Source{{DocumentID: "DOC_001"}},
			Citations: []models.Citation{citation("DOC_001", ".pdf", 0.9, "")},
		},
		models.HandlerInternalAudit: {
			HandlerID: models.HandlerInternalAudit,
			Status:    models.StatusCompleted,
			Sources:   []models.Source{{DocumentID: "DOC_001"}, {DocumentID: "DOC_002"}},
			Citations: []models.Citation{
				citation("DOC_001", ".docx", 0.75, models.HandlerSOP), // wrong stamp is corrected
				citation("DOC_002", "", 0.65, ""),
			},
		},
		models.HandlerQualitySystems: {
			HandlerID: models.HandlerQualitySystems,
			Status:    models.StatusError,
			Error:     "boom",
			Citations: []models.Citation{citation("DOC_009", ".pdf", 0.99, "")},
		},
	}
	order := []models.HandlerID{models.HandlerInternalAudit, models.HandlerSOP, models.HandlerQualitySystems}

	got := New(0).Aggregate(results, order)

	require.Len(t, got.Sources, 3)
	require.Len(t, got.Citations, 3)
	assert.Equal(t, models.HandlerInternalAudit, got.Sources[0].HandlerID)
	assert.Equal(t, models.HandlerSOP, got.Sources[2].HandlerID)

	wantCitations := []models.Citation{
		citation("DOC_001", ".docx", 0.75, models.HandlerInternalAudit),
		citation("DOC_002", "", 0.65, models.HandlerInternalAudit),
		citation("DOC_001", ".pdf", 0.9, models.HandlerSOP),
	}
	if diff := cmp.Diff(wantCitations, got.Citations); diff != "" {
		t.Errorf("citations mismatch (-want +got):\n%s", diff)
	}

	for _, c := range got.Citations {
		assert.NotEqual(t, models.HandlerQualitySystems, c.HandlerID)
	}

	s := got.Summary
	assert.Equal(t, 3, s.TotalDocuments)
	assert.Equal(t, map[string]int{".docx": 1, ".pdf": 1, "unknown": 1}, s.DocumentTypes)
	assert.Equal(t, []models.HandlerID{models.HandlerInternalAudit, models.HandlerSOP}, s.HandlersUsed)
	assert.Len(t, s.DocumentBreakdown[models.HandlerInternalAudit], 2)
	assert.Equal(t, "DOC_002", s.DocumentBreakdown[models.HandlerInternalAudit][1].DocumentID)
	require.Len(t, s.HighRelevanceDocuments, 2)
	assert.Equal(t, 0.75, s.HighRelevanceDocuments[0].RelevanceScore)
	assert.Equal(t, 0.9, s.HighRelevanceDocuments[1].RelevanceScore)
}

func TestSummarize_HighRelevanceIsStrict(t *testing.T) {
	s := Summarize([]models.Citation{
		citation("a", ".pdf", 0.65, models.HandlerSOP),
		citation("b", ".pdf", 0.75, models.HandlerSOP),
		citation("c", ".pdf", 0.7, models.HandlerSOP),
		citation("d", ".pdf", 0.70001, models.HandlerSOP),
	}, DefaultHighRelevanceThreshold)

	require.Len(t, s.HighRelevanceDocuments, 2)
	assert.Equal(t, "b", s.HighRelevanceDocuments[0].DocumentID)
	assert.Equal(t, "d", s.HighRelevanceDocuments[1].DocumentID)
	for _, c := range s.HighRelevanceDocuments {
		assert.NotEqual(t, "c", c.DocumentID, "a score equal to the threshold is not high relevance")
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, DefaultHighRelevanceThreshold)

	assert.Equal(t, 0, s.TotalDocuments)
	assert.NotNil(t, s.DocumentTypes)
	assert.NotNil(t, s.HandlersUsed)
	assert.Empty(t, s.HighRelevanceDocuments)
	assert.Empty(t, s.DocumentBreakdown)
}

func TestSummarize_ExtensionBuckets(t *testing.T) {
	s := Summarize([]models.Citation{
		citation("a", ".PDF", 0, models.HandlerSOP),
		citation("b", "Unknown", 0, models.HandlerSOP),
		citation("c", " ", 0, models.HandlerSOP),
	}, DefaultHighRelevanceThreshold)

	assert.Equal(t, map[string]int{".pdf": 1, "unknown": 2}, s.DocumentTypes)
}

func TestSummarize_IsPure(t *testing.T) {
	citations := []models.Citation{
		citation("a", ".pdf", 0.8, models.HandlerSOP),
		citation("b", ".xlsx", 0.1, models.HandlerInternalAudit),
	}
	first := Summarize(citations, DefaultHighRelevanceThreshold)
	second := Summarize(citations, DefaultHighRelevanceThreshold)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("summary not stable (-first +second):\n%s", diff)
	}
}

func TestAggregate_NoCompletedHandlers(t *testing.T) {
	got := New(0.7).Aggregate(map[models.HandlerID]*models.HandlerResult{
		models.HandlerSOP: {HandlerID: models.HandlerSOP, Status: models.StatusError},
	}, []models.HandlerID{models.HandlerSOP, models.HandlerInternalAudit})

	assert.Empty(t, got.Sources)
	assert.Empty(t, got.Citations)
	assert.Equal(t, 0, got.Summary.TotalDocuments)
}
