// internal/capabilities/genai/client.go
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	httpclient "audit-orchestrator/internal/common/http"
)

const generatePath = "/api/ai/generate"

var (
	ErrLLMTimeout = errors.New("LLM_TIMEOUT")
	ErrLLMFailed  = errors.New("LLM_FAILED")
)

// Request is one text generation call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	Model        string
}

// Generator produces text from a prompt. Implementations must honour ctx.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type generateRequest struct {
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

type generateResponse struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Client calls the GenAI gateway.
type Client struct {
	config *Config
	http   *httpclient.Client
	logger Logger
}

// NewClient leaves the transport without its own timeout; every call is bounded by ctx
// and Config.Timeout.
func NewClient(config *Config, log Logger) *Client {
	return &Client{
		config: config,
		http:   httpclient.NewClient(0).WithBearer(config.APIKey),
		logger: log,
	}
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}
	body := generateRequest{
		Model:        model,
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.UserPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	}
	url := strings.TrimSuffix(c.config.BaseURL, "/") + generatePath

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", contextError(ctx.Err())
			}
		}

		var resp generateResponse
		err := c.http.PostJSON(ctx, url, body, &resp)
		if err == nil {
			if strings.TrimSpace(resp.Text) == "" {
				return "", apperrors.NewLLMFailedError(fmt.Errorf("%w: empty text", ErrLLMFailed))
			}
			return resp.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", contextError(ctx.Err())
		}

		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			break
		}

		c.logger.Warn("text generation attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return "", apperrors.NewLLMFailedError(fmt.Errorf("%w: %v", ErrLLMFailed, lastErr))
}

// contextError maps an expired deadline to ErrLLMTimeout. A cancelled caller is a
// plain failure.
func contextError(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return apperrors.NewLLMTimeoutError(fmt.Errorf("%w: %v", ErrLLMTimeout, cause))
	}
	return apperrors.NewLLMFailedError(fmt.Errorf("%w: %v", ErrLLMFailed, cause))
}
