// internal/api/handlers.go
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"audit-orchestrator/internal/checklist"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/validation"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/observations"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type queryRequest struct {
	Query  string `json:"query"`
	Intent string `json:"intent,omitempty"`
}

type liveSupportRequest struct {
	MeetingContext string `json:"meetingContext"`
	Topic          string `json:"topic"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type correctiveActionRequest struct {
	Action  string     `json:"action"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

type observationResponse struct {
	Observation  *models.Observation        `json:"observation"`
	Notification *observations.Notification `json:"notification,omitempty"`
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// validate returns the error built by reject when body does not satisfy v.
func validate(v *validation.Validator, body []byte, reject func(details string) error) error {
	result, err := v.ValidateJSON(body)
	if err != nil {
		return reject(err.Error())
	}
	if !result.Valid {
		return reject(result.Summary())
	}
	return nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidQueryError(err.Error()))
		return
	}

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apperrors.NewInvalidQueryError("request body is not valid JSON"))
		return
	}
	if err := validate(validation.QueryRequest, body, func(details string) error {
		if req.Intent != "" && !models.Intent(req.Intent).IsValid() {
			return apperrors.NewInvalidIntentError(req.Intent)
		}
		return apperrors.NewInvalidQueryError(details)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	var in *models.Intent
	if req.Intent != "" {
		parsed := models.Intent(req.Intent)
		in = &parsed
	}

	result, err := s.deps.Queries.Process(r.Context(), req.Query, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.deps.PersistResults && s.deps.Results != nil {
		if err := s.deps.Results.Save(r.Context(), result); err != nil {
			s.logger.Warn("result not persisted", map[string]interface{}{
				"requestId": result.RequestID,
				"error":     apperrors.Describe(err),
			})
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.deps.Results == nil {
		writeUnavailable(w, "result persistence")
		return
	}

	result, err := s.deps.Results.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLiveSupport(w http.ResponseWriter, r *http.Request) {
	var req liveSupportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewInvalidQueryError("request body is not valid JSON"))
		return
	}

	guidance, err := s.deps.Queries.LiveAuditSupport(r.Context(), req.MeetingContext, req.Topic)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"topic": req.Topic, "guidance": guidance})
}

func (s *Server) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, apperrors.NewObservationInvalidError(err.Error()))
		return
	}
	if err := validate(validation.ObservationRequest, body, func(details string) error {
		return apperrors.NewObservationInvalidError(details)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req observations.NewObservation
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apperrors.NewObservationInvalidError(err.Error()))
		return
	}

	obs, err := s.deps.Observations.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := observationResponse{Observation: obs}
	if s.deps.Notifier != nil {
		sent, err := s.deps.Notifier.NotifyCritical(r.Context(), obs)
		if err != nil {
			s.logger.Warn("critical observation alert failed", map[string]interface{}{
				"observationId": obs.ID,
				"error":         apperrors.Describe(err),
			})
		}
		resp.Notification = sent
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListObservations applies the first filter present among company, risk, area
// and overdue=true. Without a filter it lists open observations.
func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	q := r.URL.Query()
	ctx := r.Context()
	var (
		list []*models.Observation
		err  error
	)
	switch {
	case q.Get("company") != "":
		list, err = s.deps.Observations.ListByCompany(ctx, q.Get("company"))
	case q.Get("risk") != "":
		levels, perr := parseRiskLevels(q.Get("risk"))
		if perr != nil {
			s.writeError(w, r, perr)
			return
		}
		list, err = s.deps.Observations.ListByRisk(ctx, levels...)
	case q.Get("area") != "":
		list, err = s.deps.Observations.ListByArea(ctx, q.Get("area"))
	case q.Get("overdue") == "true":
		list, err = s.deps.Observations.ListOverdue(ctx, s.deps.Now())
	default:
		list, err = s.deps.Observations.ListOpen(ctx)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"observations": list, "count": len(list)})
}

func parseRiskLevels(raw string) ([]models.RiskLevel, error) {
	var levels []models.RiskLevel
	for _, part := range strings.Split(raw, ",") {
		level, ok := models.ParseRiskLevel(strings.TrimSpace(part))
		if !ok {
			return nil, apperrors.NewObservationInvalidError(fmt.Sprintf("unknown risk level %q", part))
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func (s *Server) handleObservationSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	summary, err := s.deps.Observations.Summary(r.Context(), r.URL.Query().Get("company"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleObservationReport renders ?company= observations as markdown in the ?format= layout.
func (s *Server) handleObservationReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	format, ok := observations.ParseReportFormat(r.URL.Query().Get("format"))
	if !ok {
		s.writeError(w, r, apperrors.NewObservationInvalidError(fmt.Sprintf("unknown report format %q", r.URL.Query().Get("format"))))
		return
	}

	report, err := s.deps.Observations.Report(r.Context(), r.URL.Query().Get("company"), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}

func (s *Server) handleExportObservations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	format, ok := observations.ParseExportFormat(r.URL.Query().Get("format"))
	if !ok {
		s.writeError(w, r, apperrors.NewObservationInvalidError(fmt.Sprintf("unknown export format %q", r.URL.Query().Get("format"))))
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Observations.Export(r.Context(), r.URL.Query().Get("company"), format, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit_observations.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	obs, err := s.deps.Observations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewObservationInvalidError("request body is not valid JSON"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.deps.Observations.UpdateStatus(r.Context(), id, models.ObservationStatus(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

func (s *Server) handleAddCorrectiveAction(w http.ResponseWriter, r *http.Request) {
	if s.deps.Observations == nil {
		writeUnavailable(w, "observation log")
		return
	}

	var req correctiveActionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewObservationInvalidError("request body is not valid JSON"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.deps.Observations.AddCorrectiveAction(r.Context(), id, req.Action, req.DueDate); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "action": req.Action})
}

// handleGenerateChecklist answers with the checklist JSON, or only its markdown
// when ?format=markdown.
func (s *Server) handleGenerateChecklist(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidQueryError(err.Error()))
		return
	}
	if err := validate(validation.ChecklistRequest, body, func(details string) error {
		return apperrors.NewInvalidQueryError(details)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req checklist.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, apperrors.NewInvalidQueryError(err.Error()))
		return
	}

	list, err := s.deps.Checklists.Generate(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("checklist generated", map[string]interface{}{
		"company":    list.Company,
		"auditType":  list.AuditType,
		"totalItems": list.TotalItems,
	})
	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, list.Markdown)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
