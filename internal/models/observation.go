// internal/models/observation.go
package models

import (
	"strings"
	"time"
)

type RiskLevel string

const (
	RiskCritical RiskLevel = "Critical"
	RiskMajor    RiskLevel = "Major"
	RiskMinor    RiskLevel = "Minor"
)

// ParseRiskLevel accepts any casing of Critical, Major or Minor.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return RiskCritical, true
	case "major":
		return RiskMajor, true
	case "minor":
		return RiskMinor, true
	}
	return "", false
}

const (
	PriorityLabelCritical  = "🔥 Priority"
	PriorityLabelStandard  = "✅ Standard"
	PriorityLabelWatchlist = "⚠️ Watchlist"
)

// PriorityLabel maps a risk level onto the risk-based labels. Critical and Major
// findings are both priorities; Watchlist is reserved for checklist items.
func (r RiskLevel) PriorityLabel() string {
	switch r {
	case RiskCritical, RiskMajor:
		return PriorityLabelCritical
	default:
		return PriorityLabelStandard
	}
}

type ObservationStatus string

const (
	ObservationOpen       ObservationStatus = "open"
	ObservationInProgress ObservationStatus = "in_progress"
	ObservationClosed     ObservationStatus = "closed"
)

func (s ObservationStatus) IsValid() bool {
	switch s {
	case ObservationOpen, ObservationInProgress, ObservationClosed:
		return true
	}
	return false
}

// Observation is one structured audit finding.
type Observation struct {
	ID                string             `json:"id"`
	Company           string             `json:"company"`
	Area              string             `json:"area"`
	Finding           string             `json:"finding"`
	RiskLevel         RiskLevel          `json:"riskLevel"`
	Evidence          string             `json:"evidence"`
	Reference         string             `json:"reference,omitempty"`
	Status            ObservationStatus  `json:"status"`
	PriorityLabel     string             `json:"priorityLabel"`
	CorrectiveActions []CorrectiveAction `json:"correctiveActions,omitempty"`
	DueDate           *time.Time         `json:"dueDate,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// Overdue reports whether an unresolved observation has passed its due date.
func (o *Observation) Overdue(now time.Time) bool {
	return o.DueDate != nil && o.Status != ObservationClosed && o.DueDate.Before(now)
}

type CorrectiveAction struct {
	Action    string     `json:"action"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ObservationSummary counts observations by risk level, status and area.
type ObservationSummary struct {
	Company     string         `json:"company,omitempty"`
	Total       int            `json:"total"`
	ByRiskLevel map[string]int `json:"byRiskLevel"`
	ByStatus    map[string]int `json:"byStatus"`
	ByArea      map[string]int `json:"byArea"`
	Overdue     int            `json:"overdue"`
}
