// internal/common/validation/schemas.go
package validation

import (
	"fmt"
	"strings"

	"audit-orchestrator/internal/models"
)

func intentEnum() string {
	quoted := make([]string, len(models.AllIntents))
	for i, intent := range models.AllIntents {
		quoted[i] = fmt.Sprintf("%q", intent)
	}
	return strings.Join(quoted, ",")
}

// QueryRequestSchema covers POST /api/v1/query and process-audit-query job variables.
var QueryRequestSchema = `{
  "type": "object",
  "required": ["query"],
  "properties": {
    "query": {"type": "string", "minLength": 1, "pattern": "\\S"},
    "intent": {"type": "string", "enum": [` + intentEnum() + `]}
  }
}`

// RoutingResponseSchema covers the {handler_id: bool} map returned by LLM routing.
const RoutingResponseSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {"type": "boolean"}
}`

// RegistrySchema covers the handler registry YAML after decoding.
const RegistrySchema = `{
  "type": "object",
  "required": ["handlers"],
  "properties": {
    "default_handler": {"type": "string"},
    "handlers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "primary_intents", "keywords"],
        "properties": {
          "id": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
          "display_name": {"type": "string"},
          "primary_intents": {"type": "array", "items": {"type": "string"}},
          "secondary_intents": {"type": "array", "items": {"type": "string"}},
          "keywords": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "weight": {"type": "number", "minimum": 0},
          "entity_sensitive": {"type": "boolean"},
          "index": {"type": "string"},
          "namespace": {"type": "string"},
          "system_prompt": {"type": "string"},
          "temperature": {"type": "number", "minimum": 0, "maximum": 2},
          "max_tokens": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

// ObservationRequestSchema covers POST /api/v1/observations and log-audit-observation jobs.
const ObservationRequestSchema = `{
  "type": "object",
  "required": ["company", "area", "finding", "riskLevel"],
  "properties": {
    "company": {"type": "string", "minLength": 1},
    "area": {"type": "string", "minLength": 1},
    "finding": {"type": "string", "minLength": 1},
    "riskLevel": {"type": "string", "enum": ["Critical", "Major", "Minor", "critical", "major", "minor"]},
    "evidence": {"type": "string"},
    "reference": {"type": "string"},
    "dueDate": {"type": "string", "format": "date-time"}
  }
}`

// ChecklistRequestSchema covers POST /api/v1/checklists.
const ChecklistRequestSchema = `{
  "type": "object",
  "required": ["company", "auditType"],
  "properties": {
    "company": {"type": "string", "minLength": 1},
    "auditType": {"type": "string", "minLength": 1},
    "productModality": {"type": "string"},
    "riskFactors": {"type": "array", "items": {"type": "string"}},
    "customAreas": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	QueryRequest       = MustValidator("query request", QueryRequestSchema)
	RoutingResponse    = MustValidator("routing response", RoutingResponseSchema)
	Registry           = MustValidator("registry", RegistrySchema)
	ObservationRequest = MustValidator("observation request", ObservationRequestSchema)
	ChecklistRequest   = MustValidator("checklist request", ChecklistRequestSchema)
)
