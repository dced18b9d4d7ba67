// internal/workers/audit/process-audit-query/models.go
package processauditquery

import "audit-orchestrator/internal/models"

type Input struct {
	Query  string `json:"query"`
	Intent string `json:"intent,omitempty"`
}

// Output is flattened into process variables, so it carries the summary
// fields a gateway needs rather than the full result.
type Output struct {
	RequestID        string                 `json:"requestId"`
	Intent           models.Intent          `json:"intent"`
	Response         string                 `json:"response"`
	InvolvedHandlers []models.HandlerID     `json:"involvedHandlers"`
	FailedHandlers   []models.HandlerID     `json:"failedHandlers"`
	Degraded         bool                   `json:"degraded"`
	CitationCount    int                    `json:"citationCount"`
	DocumentSummary  models.DocumentSummary `json:"documentSummary"`
	Persisted        bool                   `json:"persisted"`
}
