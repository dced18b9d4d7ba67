// internal/orchestration/synthesizer/templates.go
package synthesizer

import (
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/correlator"
)

// Field names one handler answer that feeds a template.
type Field struct {
	Label   string
	Handler models.HandlerID
}

// Template describes how one intent's final answer is requested from the text generator.
// Header may reference {query}, {company}, {audit_type} and {time_period}.
type Template struct {
	Name         string
	Header       string
	Section      string
	Fields       []Field
	ExcerptChars int
	Correlation  string
	Checklist    []string
	Closing      string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

var checklistTemplate = Template{
	Name:    "audit_checklist",
	Header:  "Create a comprehensive, risk-based audit checklist for {audit_type} audit of {company}.",
	Section: "Context:",
	Fields: []Field{
		{"SOP Information", models.HandlerSOP},
		{"Quality Systems Data", models.HandlerQualitySystems},
		{"Audit Procedures", models.HandlerInternalAudit},
	},
	ExcerptChars: 1000,
	Checklist: []string{
		"Use risk-based prioritization (🔥 Priority, ✅ Standard, ⚠️ Watchlist)",
		"Include specific areas: Facilities, Systems, Processes, Documentation",
		"Add evidence requirements for each item",
		"Include regulatory references where applicable",
		"Format as a structured table with columns: Area, Checklist Item, Type, Priority, Notes",
	},
	Closing:      "Generate a professional, comprehensive checklist suitable for a qualified auditor.",
	SystemPrompt: "You are an expert audit checklist creator with deep GMP knowledge.",
	Temperature:  0.2,
	MaxTokens:    3000,
}

var templates = map[models.Intent]Template{
	models.IntentAuditChecklist:  checklistTemplate,
	models.IntentSupplierAudit:   checklistTemplate,
	models.IntentInternalAudit:   checklistTemplate,
	models.IntentRegulatoryAudit: checklistTemplate,

	models.IntentAuditAgenda: {
		Name:    "audit_agenda",
		Header:  "Analyze this audit agenda and provide insights and recommendations:\n\nAgenda Content: {query}",
		Section: "Recent Changes:",
		Fields: []Field{
			{"SOP Updates", models.HandlerSOP},
			{"Quality Events", models.HandlerQualitySystems},
		},
		ExcerptChars: 500,
		Checklist: []string{
			"🔥 Critical areas that need attention",
			"✅ Standard areas that are well-covered",
			"⚠️ Watchlist items that should be monitored",
			"Suggested additions based on recent changes",
			"Risk assessment for each agenda item",
		},
		Closing:      "Format as a structured analysis with clear recommendations.",
		SystemPrompt: "You are an expert audit agenda analyst.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentAuditReport: {
		Name:    "audit_report",
		Header:  "Generate a comprehensive audit report for {company} following the FORM-0046210 template.\n\nRequest: {query}",
		Section: "Audit Evidence:",
		Fields: []Field{
			{"Audit Findings", models.HandlerInternalAudit},
			{"Quality Systems Data", models.HandlerQualitySystems},
		},
		ExcerptChars: 1000,
		Correlation:  correlator.QualityAuditCorrelation,
		Checklist: []string{
			"Executive Summary",
			"Audit Scope and Objectives",
			"Audit Team and Methodology",
			"Summary of Audit",
			"Observations (Critical/Major/Minor)",
			"Conclusion",
			"Recommended Actions",
		},
		Closing:      "Ensure professional tone, clear findings classification, and actionable recommendations.",
		SystemPrompt: "You are an expert audit report writer.",
		Temperature:  0.2,
		MaxTokens:    3000,
	},

	models.IntentDeltaAnalysis: {
		Name:    "delta_analysis",
		Header:  "Generate a comprehensive delta analysis for {company} covering changes since {time_period}:",
		Section: "Changes to Analyze:",
		Fields: []Field{
			{"SOP Updates", models.HandlerSOP},
			{"Quality System Changes", models.HandlerQualitySystems},
			{"Regulatory Updates", models.HandlerExternalRegulatory},
		},
		ExcerptChars: 1000,
		Checklist: []string{
			"🔥 Critical Changes (High Impact)",
			"⚠️ Moderate Changes (Medium Impact)",
			"✅ Minor Changes (Low Impact)",
			"Impact assessment for each change",
			"Recommendations for audit focus areas",
		},
		Closing:      "Format as a structured delta report with clear impact classifications.",
		SystemPrompt: "You are an expert change management analyst.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentHealthAssessment: {
		Name:    "health_assessment",
		Header:  "Provide a comprehensive 360° health assessment for {company}:",
		Section: "Data Sources:",
		Fields: []Field{
			{"Quality Systems", models.HandlerQualitySystems},
			{"Regulatory Status", models.HandlerExternalRegulatory},
			{"Audit History", models.HandlerInternalAudit},
		},
		ExcerptChars: 1000,
		Correlation:  correlator.QualityAuditCorrelation,
		Checklist: []string{
			"🔥 Critical Issues (Immediate attention required)",
			"⚠️ Risk Areas (Monitor closely)",
			"✅ Stable Areas (Well-controlled)",
			"📈 Performance Trends",
			"🎯 Recommendations",
		},
		Closing:      "Provide actionable insights and risk-based recommendations.",
		SystemPrompt: "You are an expert quality systems analyst.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentTrendAnalysis: {
		Name:    "trend_analysis",
		Header:  "Analyze trends and patterns in the audit data:",
		Section: "Data:",
		Fields: []Field{
			{"Quality Systems Data", models.HandlerQualitySystems},
			{"Audit History", models.HandlerInternalAudit},
			{"Industry Signals", models.HandlerExternalConference},
		},
		ExcerptChars: 1000,
		Checklist: []string{
			"📊 Key Trends Identified",
			"🔥 Critical Patterns",
			"⚠️ Emerging Risks",
			"📈 Performance Metrics",
			"🎯 Strategic Recommendations",
		},
		Closing:      "Focus on actionable insights and risk mitigation strategies.",
		SystemPrompt: "You are an expert trend analyst.",
		Temperature:  0.2,
		MaxTokens:    2000,
	},

	models.IntentQualityAnalysis: {
		Name:    "quality_analysis",
		Header:  "Provide a comprehensive quality analysis based on the following data:",
		Section: "Data:",
		Fields: []Field{
			{"Quality Systems Data", models.HandlerQualitySystems},
			{"Internal Audit Data", models.HandlerInternalAudit},
		},
		ExcerptChars: 1500,
		Correlation:  correlator.QualityAuditCorrelation,
		Checklist: []string{
			"Quality system effectiveness",
			"Deviation trends and patterns",
			"CAPA effectiveness and closure rates",
			"Risk areas and compliance gaps",
			"Recommendations for improvement",
			"Regulatory compliance status",
		},
		Closing:      "Ensure comprehensive coverage with specific examples and actionable recommendations.",
		SystemPrompt: "You are an expert quality systems analyst with deep GMP knowledge.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentSOPReview: {
		Name:    "sop_review",
		Header:  "Conduct a comprehensive SOP review and analysis:",
		Section: "Data:",
		Fields: []Field{
			{"SOP Data", models.HandlerSOP},
			{"Regulatory Data", models.HandlerExternalRegulatory},
		},
		ExcerptChars: 1500,
		Correlation:  correlator.RegulatoryComplianceGaps,
		Checklist: []string{
			"SOP completeness and coverage",
			"Regulatory compliance status",
			"Procedure effectiveness and clarity",
			"Training and implementation status",
			"Gap analysis and recommendations",
			"Update requirements and priorities",
		},
		Closing:      "Ensure comprehensive coverage with specific examples and actionable recommendations.",
		SystemPrompt: "You are an expert SOP analyst with deep regulatory knowledge.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentRegulatoryResearch: {
		Name:    "regulatory_research",
		Header:  "Conduct comprehensive regulatory research and analysis:",
		Section: "Data:",
		Fields: []Field{
			{"Regulatory Data", models.HandlerExternalRegulatory},
			{"SOP Data", models.HandlerSOP},
		},
		ExcerptChars: 1500,
		Correlation:  correlator.RegulatoryComplianceGaps,
		Checklist: []string{
			"Current regulatory landscape",
			"Recent regulatory changes and updates",
			"Compliance requirements and deadlines",
			"Impact on existing procedures",
			"Risk assessment and mitigation strategies",
			"Implementation recommendations",
		},
		Closing:      "Ensure comprehensive coverage with specific regulatory references and actionable recommendations.",
		SystemPrompt: "You are an expert regulatory affairs specialist.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},

	models.IntentConferenceAnalysis: {
		Name:    "conference_analysis",
		Header:  "Conduct comprehensive conference and industry analysis:",
		Section: "Data:",
		Fields: []Field{
			{"Conference Data", models.HandlerExternalConference},
			{"Quality Systems Data", models.HandlerQualitySystems},
		},
		ExcerptChars: 1500,
		Checklist: []string{
			"Industry trends and developments",
			"Best practices and benchmarking",
			"Emerging technologies and methodologies",
			"Regulatory developments and guidance",
			"Networking and collaboration opportunities",
			"Strategic recommendations for improvement",
		},
		Closing:      "Ensure comprehensive coverage with specific examples and actionable recommendations.",
		SystemPrompt: "You are an expert industry analyst with deep pharmaceutical knowledge.",
		Temperature:  0.2,
		MaxTokens:    2500,
	},
}

const (
	generalSystemPrompt = "You are an expert audit intelligence analyst."
	generalTemperature  = 0.3
	generalMaxTokens    = 2000
)

// TemplateFor returns the template registered for intent. ok is false for the general fallback.
func TemplateFor(in models.Intent) (Template, bool) {
	t, ok := templates[in]
	return t, ok
}
