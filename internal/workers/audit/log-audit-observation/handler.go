// internal/workers/audit/log-audit-observation/handler.go
package logauditobservation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/observations"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "log-audit-observation"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type ObservationCreator interface {
	Create(ctx context.Context, in observations.NewObservation) (*models.Observation, error)
}

type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, obs *models.Observation) (*observations.Notification, error)
}

type Handler struct {
	config   *Config
	store    ObservationCreator
	notifier CriticalNotifier
	errors   *apperrors.ErrorHandler
	logger   Logger
}

func NewHandler(config *Config, store ObservationCreator, notifier CriticalNotifier, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		store:    store,
		notifier: notifier,
		errors:   apperrors.NewErrorHandler(l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewObservationInvalidError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Execute stores the observation and alerts on Critical findings. A failed alert
// is reported in the output; the job still completes so a retry cannot store the
// observation twice.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	obs, err := h.store.Create(ctx, observations.NewObservation{
		Company:   input.Company,
		Area:      input.Area,
		Finding:   input.Finding,
		RiskLevel: input.RiskLevel,
		Evidence:  input.Evidence,
		Reference: input.Reference,
		DueDate:   input.DueDate,
	})
	if err != nil {
		return nil, err
	}

	output := &Output{
		ObservationID: obs.ID,
		RiskLevel:     string(obs.RiskLevel),
		PriorityLabel: obs.PriorityLabel,
		Status:        string(obs.Status),
	}

	if h.notifier != nil {
		sent, err := h.notifier.NotifyCritical(ctx, obs)
		if sent != nil {
			output.EmailSent = sent.EmailSent
			output.SMSSent = sent.SMSSent
		}
		if err != nil {
			output.NotificationError = apperrors.Describe(err)
			h.logger.Warn("critical observation alert failed", map[string]interface{}{
				"observationId": obs.ID,
				"error":         output.NotificationError,
			})
		}
	}

	h.logger.Info("audit observation logged", map[string]interface{}{
		"observationId": obs.ID,
		"company":       obs.Company,
		"riskLevel":     obs.RiskLevel,
	})
	return output, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
