// internal/models/orchestration.go
package models

import (
	"fmt"
	"time"
)

// HandlerID identifies one specialized knowledge handler.
type HandlerID string

const (
	HandlerInternalAudit      HandlerID = "internal_audit"
	HandlerSOP                HandlerID = "sop"
	HandlerQualitySystems     HandlerID = "quality_systems"
	HandlerExternalRegulatory HandlerID = "external_regulatory"
	HandlerExternalConference HandlerID = "external_conference"
)

func (h HandlerID) String() string {
	return string(h)
}

type HandlerStatus string

const (
	StatusIdle      HandlerStatus = "idle"
	StatusRunning   HandlerStatus = "running"
	StatusCompleted HandlerStatus = "completed"
	StatusError     HandlerStatus = "error"
)

// HandlerDescriptor describes a handler's static affinity to intents and query keywords.
type HandlerDescriptor struct {
	ID               HandlerID `json:"id" yaml:"id"`
	DisplayName      string    `json:"displayName" yaml:"display_name"`
	PrimaryIntents   []Intent  `json:"primaryIntents" yaml:"primary_intents"`
	SecondaryIntents []Intent  `json:"secondaryIntents" yaml:"secondary_intents"`
	Keywords         []string  `json:"keywords" yaml:"keywords"`
	Weight           float64   `json:"weight" yaml:"weight"`
	EntitySensitive  bool      `json:"entitySensitive" yaml:"entity_sensitive"`
	Index            string    `json:"index" yaml:"index"`
	Namespace        string    `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	SystemPrompt     string    `json:"systemPrompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature      float64   `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens        int       `json:"maxTokens,omitempty" yaml:"max_tokens,omitempty"`
}

// HasPrimary reports whether intent is one of the descriptor's primary intents.
func (d HandlerDescriptor) HasPrimary(intent Intent) bool {
	return containsIntent(d.PrimaryIntents, intent)
}

// HasSecondary reports whether intent is one of the descriptor's secondary intents.
func (d HandlerDescriptor) HasSecondary(intent Intent) bool {
	return containsIntent(d.SecondaryIntents, intent)
}

func containsIntent(list []Intent, intent Intent) bool {
	for _, i := range list {
		if i == intent {
			return true
		}
	}
	return false
}

// FileMetadata carries the document attributes returned by knowledge search.
type FileMetadata struct {
	FilePath      string `json:"filePath"`
	FileName      string `json:"fileName"`
	FileExtension string `json:"fileExtension"`
	SourceType    string `json:"sourceType,omitempty"`
	Date          string `json:"date,omitempty"`
	Company       string `json:"company,omitempty"`
	Category      string `json:"category,omitempty"`
	PageNumber    string `json:"pageNumber,omitempty"`
	Section       string `json:"section,omitempty"`
}

// Source is a retrieved knowledge-base excerpt.
type Source struct {
	DocumentID     string       `json:"documentId"`
	Title          string       `json:"title"`
	RelevanceScore float64      `json:"relevanceScore"`
	Content        string       `json:"content"`
	HandlerID      HandlerID    `json:"handlerId"`
	Metadata       FileMetadata `json:"metadata"`
}

// Citation is the summarized reference form of a Source. DocumentID is numbered per
// handler result and is not globally unique.
type Citation struct {
	DocumentID     string    `json:"documentId"`
	Title          string    `json:"title"`
	FileName       string    `json:"fileName"`
	FileExtension  string    `json:"fileExtension"`
	RelevanceScore float64   `json:"relevanceScore"`
	HandlerID      HandlerID `json:"handlerId"`
}

// SearchHit is one knowledge search match.
type SearchHit struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MetadataString returns metadata[key] as a string, or "" when absent.
func (h SearchHit) MetadataString(key string) string {
	v, ok := h.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// HandlerOutput is what a knowledge handler returns from one query.
type HandlerOutput struct {
	Response  string     `json:"response"`
	Sources   []Source   `json:"sources"`
	Citations []Citation `json:"citations"`
}

// HandlerResult is the outcome of one handler invocation.
type HandlerResult struct {
	HandlerID  HandlerID     `json:"handlerId"`
	Status     HandlerStatus `json:"status"`
	Response   string        `json:"response,omitempty"`
	Sources    []Source      `json:"sources,omitempty"`
	Citations  []Citation    `json:"citations,omitempty"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"durationMs"`
}

// Completed reports whether the handler produced a usable result.
func (r *HandlerResult) Completed() bool {
	return r != nil && r.Status == StatusCompleted
}

// HandlerStatusEntry summarizes one handler's participation in a request.
type HandlerStatusEntry struct {
	HandlerID      HandlerID     `json:"handlerId"`
	Status         HandlerStatus `json:"status"`
	DocumentsFound int           `json:"documentsFound"`
	RelevanceTotal float64       `json:"relevanceTotal"`
	Error          string        `json:"error,omitempty"`
}

// DocumentSummary holds statistics derived from a request's citations.
type DocumentSummary struct {
	TotalDocuments         int                      `json:"totalDocuments"`
	DocumentTypes          map[string]int           `json:"documentTypes"`
	HandlersUsed           []HandlerID              `json:"handlersUsed"`
	HighRelevanceDocuments []Citation               `json:"highRelevanceDocuments"`
	DocumentBreakdown      map[HandlerID][]Citation `json:"documentBreakdown"`
}

// CorrelationKey is an ordered pair of handlers registered for correlation.
type CorrelationKey struct {
	First  HandlerID `json:"first"`
	Second HandlerID `json:"second"`
}

func (k CorrelationKey) String() string {
	return string(k.First) + "|" + string(k.Second)
}

// CorrelationInsight is the textual cross-handler analysis of one registered pair.
type CorrelationInsight struct {
	Name    string         `json:"name"`
	Key     CorrelationKey `json:"key"`
	Insight string         `json:"insight,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Failed reports whether the insight is an error marker.
func (c *CorrelationInsight) Failed() bool {
	return c != nil && c.Error != ""
}

// Text returns the insight, or the error marker when generation failed.
func (c *CorrelationInsight) Text() string {
	if c == nil {
		return ""
	}
	if c.Failed() {
		return c.Error
	}
	return c.Insight
}

// OrchestrationResult is the terminal aggregate returned for one query.
type OrchestrationResult struct {
	RequestID           string                         `json:"requestId"`
	Query               string                         `json:"query"`
	Intent              Intent                         `json:"intent"`
	Response            string                         `json:"response"`
	InvolvedHandlers    []HandlerID                    `json:"involvedHandlers"`
	HandlerStatuses     []HandlerStatusEntry           `json:"handlerStatuses"`
	Sources             []Source                       `json:"sources"`
	Citations           []Citation                     `json:"citations"`
	DocumentSummary     DocumentSummary                `json:"documentSummary"`
	CorrelationInsights map[string]*CorrelationInsight `json:"correlationInsights"`
	FailedHandlers      []HandlerID                    `json:"failedHandlers,omitempty"`
	Degraded            bool                           `json:"degraded"`
	Timestamp           time.Time                      `json:"timestamp"`
}

// StatusOf returns the recorded status of handler id, or "" when it was not involved.
func (r *OrchestrationResult) StatusOf(id HandlerID) HandlerStatus {
	for _, s := range r.HandlerStatuses {
		if s.HandlerID == id {
			return s.Status
		}
	}
	return ""
}
