// internal/observations/notifier.go
package observations

import (
	"context"
	"fmt"
	"strings"

	awsclient "audit-orchestrator/internal/common/aws"
	"audit-orchestrator/internal/common/config"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"
)

type NotifierConfig struct {
	EmailEnabled bool
	FromEmail    string
	Recipients   []string
	SMSEnabled   bool
	PhoneNumbers []string
}

func NewNotifierConfig(appConfig *config.Config) *NotifierConfig {
	n := appConfig.Notifications
	return &NotifierConfig{
		EmailEnabled: n.Email.Enabled,
		FromEmail:    n.Email.FromEmail,
		Recipients:   n.Email.Recipients,
		SMSEnabled:   n.SMS.Enabled,
		PhoneNumbers: n.SMS.PhoneNumbers,
	}
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Notification reports which channels an alert reached.
type Notification struct {
	EmailSent bool `json:"emailSent"`
	SMSSent   int  `json:"smsSent"`
}

// Notifier alerts quality leads about Critical observations.
type Notifier struct {
	config *NotifierConfig
	ses    awsclient.SESService
	sns    awsclient.SNSService
	logger Logger
}

func NewNotifier(config *NotifierConfig, ses awsclient.SESService, sns awsclient.SNSService, log Logger) *Notifier {
	return &Notifier{config: config, ses: ses, sns: sns, logger: log}
}

// NotifyCritical does nothing for non-Critical observations. An SMS failure is logged;
// an email failure is returned.
func (n *Notifier) NotifyCritical(ctx context.Context, obs *models.Observation) (*Notification, error) {
	result := &Notification{}
	if obs.RiskLevel != models.RiskCritical {
		return result, nil
	}

	subject := fmt.Sprintf("%s Critical audit observation: %s / %s", obs.PriorityLabel, obs.Company, obs.Area)

	if n.config.EmailEnabled && len(n.config.Recipients) > 0 && n.ses != nil {
		input := awsclient.PlainTextEmail(n.config.FromEmail, n.config.Recipients, subject, emailBody(obs))
		if _, err := n.ses.SendEmail(ctx, input); err != nil {
			return result, apperrors.NewNotificationSendFailedError("email", err)
		}
		result.EmailSent = true
	}

	if n.config.SMSEnabled && n.sns != nil {
		msg := fmt.Sprintf("Critical audit finding at %s (%s): %s", obs.Company, obs.Area, obs.Finding)
		for _, phone := range n.config.PhoneNumbers {
			if _, err := n.sns.Publish(ctx, awsclient.SMS(phone, msg)); err != nil {
				n.logger.Warn("sms alert failed", map[string]interface{}{
					"observationId": obs.ID,
					"error":         err.Error(),
				})
				continue
			}
			result.SMSSent++
		}
	}

	n.logger.Info("critical observation alert sent", map[string]interface{}{
		"observationId": obs.ID,
		"email":         result.EmailSent,
		"sms":           result.SMSSent,
	})
	return result, nil
}

func emailBody(obs *models.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", obs.Company)
	fmt.Fprintf(&b, "Area: %s\n", obs.Area)
	fmt.Fprintf(&b, "Risk Level: %s (%s)\n", obs.RiskLevel, obs.PriorityLabel)
	fmt.Fprintf(&b, "Finding: %s\n", obs.Finding)
	if obs.Evidence != "" {
		fmt.Fprintf(&b, "Evidence: %s\n", obs.Evidence)
	}
	if obs.Reference != "" {
		fmt.Fprintf(&b, "Reference: %s\n", obs.Reference)
	}
	if obs.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", obs.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Observation ID: %s\n", obs.ID)
	return b.String()
}
