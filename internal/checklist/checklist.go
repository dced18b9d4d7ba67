// internal/checklist/checklist.go
package checklist

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var embeddedLibrary []byte

type ItemType string

const (
	DocumentReview    ItemType = "Document Review"
	Interview         ItemType = "Interview"
	OnSiteObservation ItemType = "On-site Observation"
	SystemReview      ItemType = "System Review"
	FacilityTour      ItemType = "Facility Tour"
)

func (t ItemType) valid() bool {
	switch t {
	case DocumentReview, Interview, OnSiteObservation, SystemReview, FacilityTour:
		return true
	}
	return false
}

// Priority holds one of the risk-based priority labels.
type Priority string

const (
	PriorityCritical  Priority = models.PriorityLabelCritical
	PriorityStandard  Priority = models.PriorityLabelStandard
	PriorityWatchlist Priority = models.PriorityLabelWatchlist
)

// Score orders priorities, highest first.
func (p Priority) Score() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityStandard:
		return 2
	}
	return 1
}

// UnmarshalYAML accepts the level names critical, standard and watchlist.
func (p *Priority) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "critical":
		*p = PriorityCritical
	case "standard":
		*p = PriorityStandard
	case "watchlist":
		*p = PriorityWatchlist
	default:
		return fmt.Errorf("line %d: unknown priority %q", node.Line, node.Value)
	}
	return nil
}

type Item struct {
	Area                string   `json:"area" yaml:"area"`
	Item                string   `json:"item" yaml:"item"`
	Type                ItemType `json:"checklistType" yaml:"type"`
	Priority            Priority `json:"priority" yaml:"priority"`
	Notes               string   `json:"notes" yaml:"notes"`
	EvidenceRequired    string   `json:"evidenceRequired" yaml:"evidence"`
	RegulatoryReference string   `json:"regulatoryReference,omitempty" yaml:"regulatory_reference"`
	SOPReference        string   `json:"sopReference,omitempty" yaml:"sop_reference"`
}

type riskRule struct {
	Match string `yaml:"match"`
	Item  `yaml:",inline"`
}

// Library is the set of item templates a checklist is assembled from.
type Library struct {
	Common     []Item            `yaml:"common"`
	Modalities map[string][]Item `yaml:"modalities"`
	AuditTypes map[string][]Item `yaml:"audit_types"`
	RiskRules  []riskRule        `yaml:"risk_factors"`
}

// ParseLibrary decodes and checks a library document.
func ParseLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse checklist library: %w", err)
	}

	check := func(where string, items []Item) error {
		for i, it := range items {
			if it.Area == "" || it.Item == "" {
				return fmt.Errorf("%s[%d]: area and item are required", where, i)
			}
			if it.Priority == "" {
				return fmt.Errorf("%s[%d]: priority is required", where, i)
			}
			if !it.Type.valid() {
				return fmt.Errorf("%s[%d]: unknown checklist type %q", where, i, it.Type)
			}
		}
		return nil
	}
	if err := check("common", lib.Common); err != nil {
		return nil, err
	}
	for name, items := range lib.Modalities {
		if err := check("modalities."+name, items); err != nil {
			return nil, err
		}
	}
	for name, items := range lib.AuditTypes {
		if err := check("audit_types."+name, items); err != nil {
			return nil, err
		}
	}
	for i, rule := range lib.RiskRules {
		if rule.Match == "" {
			return nil, fmt.Errorf("risk_factors[%d]: match is required", i)
		}
		if err := check("risk_factors", []Item{rule.Item}); err != nil {
			return nil, err
		}
	}
	return &lib, nil
}

// DefaultLibrary returns the built-in pharmaceutical GMP library.
func DefaultLibrary() *Library {
	lib, err := ParseLibrary(embeddedLibrary)
	if err != nil {
		panic(err)
	}
	return lib
}

// ModalityNames lists the product modalities with dedicated items, sorted.
func (l *Library) ModalityNames() []string {
	names := make([]string, 0, len(l.Modalities))
	for name := range l.Modalities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Request struct {
	AuditType       string   `json:"auditType"`
	Company         string   `json:"company"`
	ProductModality string   `json:"productModality,omitempty"`
	RiskFactors     []string `json:"riskFactors,omitempty"`
	CustomAreas     []string `json:"customAreas,omitempty"`
}

type Checklist struct {
	Company           string         `json:"company"`
	AuditType         string         `json:"auditType"`
	ProductModality   string         `json:"productModality,omitempty"`
	GeneratedAt       time.Time      `json:"generatedAt"`
	TotalItems        int            `json:"totalItems"`
	PriorityBreakdown map[string]int `json:"priorityBreakdown"`
	Markdown          string         `json:"checklist"`
	Items             []Item         `json:"items"`
}

type Generator struct {
	library *Library
	now     func() time.Time
}

// NewGenerator builds a generator over lib, or the default library when lib is nil.
func NewGenerator(lib *Library) *Generator {
	if lib == nil {
		lib = DefaultLibrary()
	}
	return &Generator{library: lib, now: time.Now}
}

// Generate assembles the checklist for one audit. Items are common ones, then
// modality, audit type, risk factor and custom area items, stably ordered by
// priority. Unknown modalities and audit types contribute nothing.
func (g *Generator) Generate(req Request) (*Checklist, error) {
	company := strings.TrimSpace(req.Company)
	auditType := strings.TrimSpace(req.AuditType)
	if company == "" {
		return nil, apperrors.NewInvalidQueryError("checklist company is required")
	}
	if auditType == "" {
		return nil, apperrors.NewInvalidQueryError("checklist audit type is required")
	}

	items := append([]Item(nil), g.library.Common...)
	if modality := strings.ToLower(strings.TrimSpace(req.ProductModality)); modality != "" {
		items = append(items, g.library.Modalities[modality]...)
	}
	items = append(items, g.library.AuditTypes[strings.ToLower(auditType)]...)
	items = append(items, g.riskItems(req.RiskFactors)...)
	items = append(items, customItems(req.CustomAreas)...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Score() > items[j].Priority.Score()
	})

	out := &Checklist{
		Company:           company,
		AuditType:         auditType,
		ProductModality:   strings.TrimSpace(req.ProductModality),
		GeneratedAt:       g.now().UTC(),
		TotalItems:        len(items),
		PriorityBreakdown: Breakdown(items),
		Items:             items,
	}
	md, err := Render(out)
	if err != nil {
		return nil, err
	}
	out.Markdown = md
	return out, nil
}

func (g *Generator) riskItems(factors []string) []Item {
	var items []Item
	for _, factor := range factors {
		lower := strings.ToLower(factor)
		for _, rule := range g.library.RiskRules {
			if !strings.Contains(lower, strings.ToLower(rule.Match)) {
				continue
			}
			it := rule.Item
			it.Item = strings.ReplaceAll(it.Item, "{factor}", factor)
			it.Notes = strings.ReplaceAll(it.Notes, "{factor}", factor)
			items = append(items, it)
			break
		}
	}
	return items
}

func customItems(areas []string) []Item {
	var items []Item
	for _, area := range areas {
		area = strings.TrimSpace(area)
		if area == "" {
			continue
		}
		items = append(items, Item{
			Area:                area,
			Item:                fmt.Sprintf("Review %s procedures and controls", area),
			Type:                SystemReview,
			Priority:            PriorityStandard,
			Notes:               fmt.Sprintf("Assess %s procedures and implementation", area),
			EvidenceRequired:    fmt.Sprintf("%s SOPs, records, and documentation", area),
			RegulatoryReference: "Applicable regulations",
		})
	}
	return items
}

// Breakdown counts items per priority under the keys Critical, Standard and Watchlist.
func Breakdown(items []Item) map[string]int {
	counts := map[string]int{"Critical": 0, "Standard": 0, "Watchlist": 0}
	for _, it := range items {
		switch it.Priority {
		case PriorityCritical:
			counts["Critical"]++
		case PriorityStandard:
			counts["Standard"]++
		case PriorityWatchlist:
			counts["Watchlist"]++
		}
	}
	return counts
}

var markdownTemplate = template.Must(template.New("checklist").Funcs(template.FuncMap{
	"cell": func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
}).Parse(`# Audit Checklist - {{.Company}}
**Audit Type:** {{.AuditType}}
{{- if .ProductModality}}
**Product Modality:** {{.ProductModality}}
{{- end}}
**Generated:** {{.GeneratedAt.Format "2006-01-02 15:04:05"}}

## Checklist Items

| Area | Checklist Item | Type | Priority | Notes |
|------|----------------|------|----------|-------|
{{range .Items}}| {{cell .Area}} | {{cell .Item}} | {{.Type}} | {{.Priority}} | {{cell .Notes}} |
{{end}}
## Evidence Requirements
{{range .Items}}
### {{.Area}}
- **Item:** {{.Item}}
- **Evidence Required:** {{.EvidenceRequired}}
{{- if .RegulatoryReference}}
- **Regulatory Reference:** {{.RegulatoryReference}}
{{- end}}
{{- if .SOPReference}}
- **SOP Reference:** {{.SOPReference}}
{{- end}}
{{end}}`))

// Render lays the checklist out as a markdown table followed by evidence requirements.
func Render(c *Checklist) (string, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("render checklist: %w", err)
	}
	return buf.String(), nil
}
