// Package errors provides the structured error taxonomy shared by the orchestrator, its
// transports and the Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

type ErrorCode string

// Orchestration failures
const (
	ErrCodeInvalidQuery            ErrorCode = "INVALID_QUERY"
	ErrCodeInvalidIntent           ErrorCode = "INVALID_INTENT"
	ErrCodeHandlerInvocationFailed ErrorCode = "HANDLER_INVOCATION_FAILED"
	ErrCodeCorrelationFailed       ErrorCode = "CORRELATION_FAILED"
	ErrCodeSynthesisFailed         ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeRoutingParseFailed      ErrorCode = "ROUTING_PARSE_FAILED"
)

// Capability failures
const (
	ErrCodeLLMTimeout             ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMFailed              ErrorCode = "LLM_FAILED"
	ErrCodeKnowledgeSearchFailed  ErrorCode = "KNOWLEDGE_SEARCH_FAILED"
	ErrCodeKnowledgeSearchTimeout ErrorCode = "KNOWLEDGE_SEARCH_TIMEOUT"
)

// Persistence and delivery failures
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeResultPersistFailed      ErrorCode = "RESULT_PERSIST_FAILED"
	ErrCodeResultNotFound           ErrorCode = "RESULT_NOT_FOUND"
	ErrCodeObservationInvalid       ErrorCode = "OBSERVATION_INVALID"
	ErrCodeObservationNotFound      ErrorCode = "OBSERVATION_NOT_FOUND"
	ErrCodeObservationStoreFailed   ErrorCode = "OBSERVATION_STORE_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Generic codes used by infrastructure wrappers.
const (
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout          ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule     ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is reaches package sentinels.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ""
}

// Describe renders err for result payloads: "CODE: details" for a StandardError.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	stdErr, ok := AsStandardError(err)
	if !ok {
		return err.Error()
	}
	msg := stdErr.Details
	if msg == "" {
		msg = stdErr.Message
	}
	return fmt.Sprintf("%s: %s", stdErr.Code, msg)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the variables attached to failed or thrown jobs.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func NewInvalidQueryError(details string) *StandardError {
	return newError(ErrCodeInvalidQuery, "Query must be a non-empty string", details, false, nil)
}

func NewInvalidIntentError(intent string) *StandardError {
	return newError(ErrCodeInvalidIntent, "Intent is not a recognised value",
		fmt.Sprintf("intent: %s", intent), false, nil)
}

// NewHandlerInvocationFailedError describes one isolated handler failure.
func NewHandlerInvocationFailedError(handlerID string, err error) *StandardError {
	return newError(ErrCodeHandlerInvocationFailed, "Knowledge handler invocation failed",
		fmt.Sprintf("handler: %s, error: %s", handlerID, errDetails(err)), true, err).
		WithMetadata("handlerId", handlerID)
}

func NewCorrelationFailedError(name string, err error) *StandardError {
	return newError(ErrCodeCorrelationFailed, "Cross-handler correlation failed",
		fmt.Sprintf("correlation: %s, error: %s", name, errDetails(err)), true, err)
}

// NewSynthesisFailedError is fatal for the request.
func NewSynthesisFailedError(intent string, err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Response synthesis failed",
		fmt.Sprintf("intent: %s, error: %s", intent, errDetails(err)), true, err)
}

func NewRoutingParseFailedError(err error) *StandardError {
	return newError(ErrCodeRoutingParseFailed, "LLM routing response could not be parsed",
		errDetails(err), false, err)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Text generation timeout", errDetails(err), true, err)
}

func NewLLMFailedError(err error) *StandardError {
	return newError(ErrCodeLLMFailed, "Text generation API error", errDetails(err), true, err)
}

func NewKnowledgeSearchFailedError(index string, err error) *StandardError {
	return newError(ErrCodeKnowledgeSearchFailed, "Knowledge search failed",
		fmt.Sprintf("index: %s, error: %s", index, errDetails(err)), true, err)
}

func NewKnowledgeSearchTimeoutError(index string, err error) *StandardError {
	return newError(ErrCodeKnowledgeSearchTimeout, "Knowledge search timeout",
		fmt.Sprintf("index: %s", index), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), true, err)
}

func NewResultPersistFailedError(requestID string, err error) *StandardError {
	return newError(ErrCodeResultPersistFailed, "Orchestration result could not be stored",
		fmt.Sprintf("requestId: %s, error: %s", requestID, errDetails(err)), true, err)
}

func NewResultNotFoundError(requestID string) *StandardError {
	return newError(ErrCodeResultNotFound, "Orchestration result not found",
		fmt.Sprintf("requestId: %s", requestID), false, nil)
}

func NewObservationInvalidError(details string) *StandardError {
	return newError(ErrCodeObservationInvalid, "Audit observation is invalid", details, false, nil)
}

func NewObservationNotFoundError(id string) *StandardError {
	return newError(ErrCodeObservationNotFound, "Audit observation not found",
		fmt.Sprintf("observationId: %s", id), false, nil)
}

func NewObservationStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeObservationStoreFailed, "Observation store operation failed",
		fmt.Sprintf("operation: %s, error: %s", op, errDetails(err)), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", channel, errDetails(err)), true, err)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service),
		errDetails(err), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service),
		errDetails(err), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service),
		details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes modelled on BPMN boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidQuery:             "INVALID_QUERY",
	ErrCodeInvalidIntent:            "INVALID_INTENT",
	ErrCodeSynthesisFailed:          "SYNTHESIS_FAILED",
	ErrCodeLLMTimeout:               "LLM_TIMEOUT",
	ErrCodeLLMFailed:                "LLM_FAILED",
	ErrCodeKnowledgeSearchFailed:    "KNOWLEDGE_SEARCH_FAILED",
	ErrCodeKnowledgeSearchTimeout:   "KNOWLEDGE_SEARCH_TIMEOUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeResultPersistFailed:      "RESULT_PERSIST_FAILED",
	ErrCodeObservationInvalid:       "OBSERVATION_INVALID",
	ErrCodeObservationStoreFailed:   "OBSERVATION_STORE_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSynthesisFailed,
		ErrCodeLLMFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeResultPersistFailed,
		ErrCodeObservationStoreFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeKnowledgeSearchFailed,
		ErrCodeKnowledgeSearchTimeout,
		ErrCodeTimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for log aggregation.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "INTENT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "HANDLER") || strings.Contains(codeStr, "ROUTING"):
		return "ROUTING"
	case strings.Contains(codeStr, "CORRELATION") || strings.Contains(codeStr, "SYNTHESIS") ||
		strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "KNOWLEDGE"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "RESULT") ||
		strings.Contains(codeStr, "OBSERVATION"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTHENTICATION"):
		return "AUTH"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps a code onto the status the HTTP API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidQuery, ErrCodeInvalidIntent, ErrCodeObservationInvalid:
		return 400
	case ErrCodeAuthentication:
		return 401
	case ErrCodeResultNotFound, ErrCodeObservationNotFound, ErrCodeResourceNotFound:
		return 404
	case ErrCodeSynthesisFailed, ErrCodeLLMFailed, ErrCodeExternalService:
		return 502
	case ErrCodeLLMTimeout, ErrCodeTimeout, ErrCodeKnowledgeSearchTimeout:
		return 504
	default:
		return 500
	}
}
