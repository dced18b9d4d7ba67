// internal/workers/audit/log-audit-observation/models.go
package logauditobservation

import "time"

type Input struct {
	Company   string     `json:"company"`
	Area      string     `json:"area"`
	Finding   string     `json:"finding"`
	RiskLevel string     `json:"riskLevel"`
	Evidence  string     `json:"evidence"`
	Reference string     `json:"reference,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

type Output struct {
	ObservationID     string `json:"observationId"`
	RiskLevel         string `json:"riskLevel"`
	PriorityLabel     string `json:"priorityLabel"`
	Status            string `json:"status"`
	EmailSent         bool   `json:"emailSent"`
	SMSSent           int    `json:"smsSent"`
	NotificationError string `json:"notificationError,omitempty"`
}
