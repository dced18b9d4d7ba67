// internal/observations/report.go
package observations

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"
)

type ReportFormat string

const (
	ReportStructured ReportFormat = "structured"
	ReportSummary    ReportFormat = "summary"
	ReportDetailed   ReportFormat = "detailed"
)

// ParseReportFormat defaults an empty value to the structured layout.
func ParseReportFormat(s string) (ReportFormat, bool) {
	switch f := ReportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ReportStructured, true
	case ReportStructured, ReportSummary, ReportDetailed:
		return f, true
	}
	return "", false
}

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat defaults an empty value to JSON.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return ExportJSON, true
	case ExportJSON, ExportCSV:
		return f, true
	}
	return "", false
}

// ContentType is the HTTP media type of the export.
func (f ExportFormat) ContentType() string {
	if f == ExportCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

var csvHeader = []string{
	"ID", "Company", "Area", "Finding", "Risk Level", "Priority", "Evidence", "Reference",
	"Status", "Date", "Corrective Actions", "Due Date",
}

const reportTemplateText = `
{{- define "observation"}}
### {{.Area}}

**Finding:** {{.Finding}}

**Risk Level:** {{.RiskLevel}} {{.PriorityLabel}}

**Evidence:** {{.Evidence}}

**Reference:** {{.Reference}}

**Status:** {{status .Status}}

**Date:** {{date .CreatedAt}}
{{end}}

{{- define "structured" -}}
# Audit Observations Report
Generated: {{.Generated}}
{{- if .Company}}
Company: {{.Company}}
{{- end}}
{{if not .Observations}}
No observations found.
{{else}}
## Summary
- Total Observations: {{.Summary.Total}}
- Critical: {{index .Summary.ByRiskLevel "Critical"}}
- Major: {{index .Summary.ByRiskLevel "Major"}}
- Minor: {{index .Summary.ByRiskLevel "Minor"}}
{{range .Groups}}
## {{.Heading}}
{{range .Observations}}{{template "observation" .}}{{end}}
{{- end}}
{{- end}}
{{- end}}

{{- define "summary" -}}
# Audit Observations Summary
Generated: {{.Generated}}
{{- if .Company}}
Company: {{.Company}}
{{- end}}

## Statistics
- Total Observations: {{.Summary.Total}}
- Critical: {{index .Summary.ByRiskLevel "Critical"}}
- Major: {{index .Summary.ByRiskLevel "Major"}}
- Minor: {{index .Summary.ByRiskLevel "Minor"}}

## Status
- Open: {{index .Summary.ByStatus "open"}}
- In Progress: {{index .Summary.ByStatus "in_progress"}}
- Closed: {{index .Summary.ByStatus "closed"}}
- Overdue: {{.Summary.Overdue}}
{{end}}

{{- define "detailed" -}}
{{template "structured" .}}
## Detailed Information
{{range .Observations}}
### Observation ID: {{.ID}}

**Company:** {{.Company}}
**Area:** {{.Area}}
**Finding:** {{.Finding}}
**Risk Level:** {{.RiskLevel}}
**Priority:** {{.PriorityLabel}}
**Evidence:** {{.Evidence}}
**Reference:** {{.Reference}}
**Status:** {{status .Status}}
**Date:** {{datetime .CreatedAt}}
{{- range .CorrectiveActions}}
**Corrective Action:** {{.Action}}{{if .DueDate}} (due {{date .DueDate}}){{end}}
{{- end}}
{{- if .DueDate}}
**Due Date:** {{date .DueDate}}
{{- end}}

---
{{end}}
{{- end}}`

var reportTemplates = template.Must(template.New("report").Funcs(template.FuncMap{
	"status": statusLabel,
	"date": func(t interface{}) string {
		switch v := t.(type) {
		case time.Time:
			return v.Format("2006-01-02")
		case *time.Time:
			if v != nil {
				return v.Format("2006-01-02")
			}
		}
		return ""
	},
	"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}).Parse(reportTemplateText))

type riskGroup struct {
	Heading      string
	Observations []*models.Observation
}

type reportData struct {
	Company      string
	Generated    string
	Summary      *models.ObservationSummary
	Groups       []riskGroup
	Observations []*models.Observation
}

// Report renders the observations of company (all companies when empty) as markdown.
func (s *Store) Report(ctx context.Context, company string, format ReportFormat) (string, error) {
	if _, ok := ParseReportFormat(string(format)); !ok {
		return "", apperrors.NewObservationInvalidError(fmt.Sprintf("unknown report format %q", format))
	}
	list, err := s.listFor(ctx, "report", company)
	if err != nil {
		return "", err
	}
	return RenderReport(company, list, format, s.now())
}

// RenderReport lays out list in the structured, summary or detailed format.
// Structured groups observations by risk level, Critical first.
func RenderReport(company string, list []*models.Observation, format ReportFormat, now time.Time) (string, error) {
	if format == "" {
		format = ReportStructured
	}

	data := reportData{
		Company:      company,
		Generated:    now.UTC().Format("2006-01-02 15:04:05"),
		Summary:      Summarize(company, list, now),
		Observations: list,
	}
	for _, g := range []struct {
		level   models.RiskLevel
		heading string
	}{
		{models.RiskCritical, "🔥 Critical Observations"},
		{models.RiskMajor, "⚠️ Major Observations"},
		{models.RiskMinor, "✅ Minor Observations"},
	} {
		var group []*models.Observation
		for _, o := range list {
			if o.RiskLevel == g.level {
				group = append(group, o)
			}
		}
		if len(group) > 0 {
			data.Groups = append(data.Groups, riskGroup{Heading: g.heading, Observations: group})
		}
	}

	var buf bytes.Buffer
	if err := reportTemplates.ExecuteTemplate(&buf, string(format), data); err != nil {
		return "", fmt.Errorf("render %s report: %w", format, err)
	}
	return buf.String(), nil
}

// Export writes the observations of company (all companies when empty) to w.
func (s *Store) Export(ctx context.Context, company string, format ExportFormat, w io.Writer) error {
	if _, ok := ParseExportFormat(string(format)); !ok {
		return apperrors.NewObservationInvalidError(fmt.Sprintf("unknown export format %q", format))
	}
	list, err := s.listFor(ctx, "export", company)
	if err != nil {
		return err
	}

	if format == ExportCSV {
		return WriteCSV(w, list)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// WriteCSV writes one row per observation after a header row.
func WriteCSV(w io.Writer, list []*models.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range list {
		actions := make([]string, len(o.CorrectiveActions))
		for i, a := range o.CorrectiveActions {
			actions[i] = a.Action
		}
		due := ""
		if o.DueDate != nil {
			due = o.DueDate.Format("2006-01-02")
		}
		if err := cw.Write([]string{
			o.ID, o.Company, o.Area, o.Finding, string(o.RiskLevel), o.PriorityLabel,
			o.Evidence, o.Reference, statusLabel(o.Status), o.CreatedAt.Format("2006-01-02"),
			strings.Join(actions, "; "), due,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func statusLabel(s models.ObservationStatus) string {
	switch s {
	case models.ObservationOpen:
		return "Open"
	case models.ObservationInProgress:
		return "In Progress"
	case models.ObservationClosed:
		return "Closed"
	}
	return string(s)
}
