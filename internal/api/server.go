// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"audit-orchestrator/internal/checklist"
	"audit-orchestrator/internal/common/auth"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/observations"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// QueryService is satisfied by the orchestrator.
type QueryService interface {
	Process(ctx context.Context, query string, in *models.Intent) (*models.OrchestrationResult, error)
	LiveAuditSupport(ctx context.Context, meetingContext, topic string) (string, error)
}

type ResultStore interface {
	Save(ctx context.Context, result *models.OrchestrationResult) error
	Get(ctx context.Context, requestID string) (*models.OrchestrationResult, error)
}

type ObservationStore interface {
	Create(ctx context.Context, in observations.NewObservation) (*models.Observation, error)
	Get(ctx context.Context, id string) (*models.Observation, error)
	ListByCompany(ctx context.Context, company string) ([]*models.Observation, error)
	ListByRisk(ctx context.Context, levels ...models.RiskLevel) ([]*models.Observation, error)
	ListByArea(ctx context.Context, area string) ([]*models.Observation, error)
	ListOpen(ctx context.Context) ([]*models.Observation, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Observation, error)
	UpdateStatus(ctx context.Context, id string, status models.ObservationStatus) error
	AddCorrectiveAction(ctx context.Context, id, action string, dueDate *time.Time) error
	Summary(ctx context.Context, company string) (*models.ObservationSummary, error)
	Report(ctx context.Context, company string, format observations.ReportFormat) (string, error)
	Export(ctx context.Context, company string, format observations.ExportFormat, w io.Writer) error
}

type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, obs *models.Observation) (*observations.Notification, error)
}

type ChecklistGenerator interface {
	Generate(req checklist.Request) (*checklist.Checklist, error)
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Dependencies are the services behind the HTTP API. Results, Observations and
// Notifier may be nil; their routes then answer 503. Checklists defaults to the
// built-in checklist library.
type Dependencies struct {
	Queries        QueryService
	Results        ResultStore
	PersistResults bool
	Observations   ObservationStore
	Notifier       CriticalNotifier
	Checklists     ChecklistGenerator
	Validator      auth.TokenValidator
	Checks         map[string]ReadinessCheck
	RequestTimeout time.Duration
	Now            func() time.Time
}

type Server struct {
	deps   Dependencies
	logger Logger
}

func NewServer(deps Dependencies, log Logger) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Checklists == nil {
		deps.Checklists = checklist.NewGenerator(nil)
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 3 * time.Minute
	}
	return &Server{deps: deps, logger: log}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.deps.RequestTimeout))
		if s.deps.Validator != nil {
			r.Use(auth.Middleware(s.deps.Validator))
		}

		r.Post("/query", s.handleQuery)
		r.Get("/results/{id}", s.handleGetResult)
		r.Post("/live-support", s.handleLiveSupport)
		r.Post("/checklists", s.handleGenerateChecklist)

		r.Route("/observations", func(r chi.Router) {
			r.Post("/", s.handleCreateObservation)
			r.Get("/", s.handleListObservations)
			r.Get("/summary", s.handleObservationSummary)
			r.Get("/report", s.handleObservationReport)
			r.Get("/export", s.handleExportObservations)
			r.Get("/{id}", s.handleGetObservation)
			r.Put("/{id}/status", s.handleUpdateStatus)
			r.Post("/{id}/actions", s.handleAddCorrectiveAction)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto its StandardError code and HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"path":      r.URL.Path,
		"requestId": middleware.GetReqID(r.Context()),
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Warn("request rejected", fields)
	}
	writeJSON(w, status, map[string]interface{}{"error": stdErr})
}

func writeUnavailable(w http.ResponseWriter, feature string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"error": apperrors.NewBusinessRuleError("Feature not configured", feature+" is disabled"),
	})
}
