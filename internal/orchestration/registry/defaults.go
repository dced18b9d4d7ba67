// internal/orchestration/registry/defaults.go
package registry

import "audit-orchestrator/internal/models"

const (
	internalAuditPrompt = `You are the Internal Audit handler specializing in audit procedures, checklists and compliance guidelines.
You create audit checklists and questionnaires, write audit reports with findings and recommendations,
and support audit planning and execution. Ground every statement in the provided documents.`

	sopPrompt = `You are the SOP handler specializing in standard operating procedures and audit protocols.
You interpret procedures, derive audit protocols and checklists from SOPs, and identify SOP changes over time.
Ground every statement in the provided documents.`

	qualitySystemsPrompt = `You are the Quality Systems handler specializing in supplier notifications of change and quality events.
You analyze deviations, CAPAs and non-conformances, track quality events per company over time,
and surface supplier quality trends. Ground every statement in the provided documents.`

	externalRegulatoryPrompt = `You are the External Regulatory handler specializing in FDA warning letters, 483 observations,
establishment inspection reports and regulatory guidance. You relate regulatory findings to the audited company.
Ground every statement in the provided documents.`

	externalConferencePrompt = `You are the External Conference handler specializing in conference data, industry events and presentations.
You extract dates, companies and topics from conference material and relate industry trends to audit planning.
Ground every statement in the provided documents.`
)

// DefaultDescriptors is the reference handler table.
func DefaultDescriptors() []models.HandlerDescriptor {
	return []models.HandlerDescriptor{
		{
			ID:          models.HandlerInternalAudit,
			DisplayName: "Internal Audit",
			PrimaryIntents: []models.Intent{
				models.IntentAuditChecklist, models.IntentAuditAgenda, models.IntentAuditReport, models.IntentInternalAudit,
			},
			SecondaryIntents: []models.Intent{
				models.IntentHealthAssessment, models.IntentTrendAnalysis, models.IntentGeneralAudit,
			},
			Keywords:     []string{"audit", "checklist", "procedures", "compliance", "inspection"},
			Weight:       1.0,
			Index:        "internal-audit",
			SystemPrompt: internalAuditPrompt,
			Temperature:  0.1,
			MaxTokens:    2000,
		},
		{
			ID:          models.HandlerSOP,
			DisplayName: "Standard Operating Procedures",
			PrimaryIntents: []models.Intent{
				models.IntentSOPReview, models.IntentAuditChecklist, models.IntentAuditAgenda,
			},
			SecondaryIntents: []models.Intent{
				models.IntentDeltaAnalysis, models.IntentHealthAssessment, models.IntentQualityAnalysis,
			},
			Keywords:     []string{"sop", "procedures", "documentation", "policies", "standard operating"},
			Weight:       1.0,
			Index:        "sop",
			SystemPrompt: sopPrompt,
			Temperature:  0.1,
			MaxTokens:    1500,
		},
		{
			ID:          models.HandlerQualitySystems,
			DisplayName: "Quality Systems",
			PrimaryIntents: []models.Intent{
				models.IntentQualityAnalysis, models.IntentHealthAssessment, models.IntentTrendAnalysis,
			},
			SecondaryIntents: []models.Intent{
				models.IntentDeltaAnalysis, models.IntentAuditReport, models.IntentSupplierAudit,
			},
			Keywords:        []string{"quality", "deviations", "capas", "non-conformances", "quality events"},
			Weight:          1.0,
			EntitySensitive: true,
			Index:           "quality-systems",
			SystemPrompt:    qualitySystemsPrompt,
			Temperature:     0.1,
			MaxTokens:       1500,
		},
		{
			ID:          models.HandlerExternalRegulatory,
			DisplayName: "External Regulatory",
			PrimaryIntents: []models.Intent{
				models.IntentRegulatoryResearch, models.IntentRegulatoryAudit, models.IntentSupplierAudit,
			},
			SecondaryIntents: []models.Intent{
				models.IntentHealthAssessment, models.IntentDeltaAnalysis,
			},
			Keywords:     []string{"fda", "warning", "483", "eir", "regulatory", "guidance", "compliance"},
			Weight:       1.0,
			Index:        "external-regulatory",
			SystemPrompt: externalRegulatoryPrompt,
			Temperature:  0.1,
			MaxTokens:    1500,
		},
		{
			ID:          models.HandlerExternalConference,
			DisplayName: "External Conference",
			PrimaryIntents: []models.Intent{
				models.IntentConferenceAnalysis, models.IntentTrendAnalysis,
			},
			SecondaryIntents: []models.Intent{
				models.IntentHealthAssessment, models.IntentDeltaAnalysis,
			},
			Keywords:     []string{"conference", "meeting", "event", "presentation", "industry", "external"},
			Weight:       1.0,
			Index:        "external-conference",
			SystemPrompt: externalConferencePrompt,
			Temperature:  0.1,
			MaxTokens:    1500,
		},
	}
}

// Default returns the reference registry with internal_audit as the default handler.
func Default() *Registry {
	r, err := New(DefaultDescriptors(), models.HandlerInternalAudit)
	if err != nil {
		panic(err)
	}
	return r
}
