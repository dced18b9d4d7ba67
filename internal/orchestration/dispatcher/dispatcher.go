// internal/orchestration/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audit-orchestrator/internal/common/config"
	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/common/observability"
	"audit-orchestrator/internal/handlers"
	"audit-orchestrator/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownHandler = errors.New("unknown handler")
	ErrHandlerPanic   = errors.New("handler panicked")
	ErrHandlerTimeout = errors.New("handler timed out")
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type Config struct {
	HandlerTimeout time.Duration
}

func NewConfig(appConfig *config.Config) *Config {
	return &Config{HandlerTimeout: config.GetDuration(appConfig.Orchestrator.HandlerTimeout)}
}

// Dispatcher fans a query out to handlers and isolates their failures.
type Dispatcher struct {
	config   *Config
	handlers handlers.Set
	obs      *observability.Observability
	logger   Logger
}

func New(config *Config, set handlers.Set, obs *observability.Observability, log Logger) *Dispatcher {
	return &Dispatcher{config: config, handlers: set, obs: obs, logger: log}
}

// Dispatch runs every listed handler concurrently and returns exactly one result per id.
// It never fails: errors, panics, timeouts and unknown ids become error results.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, ids []models.HandlerID) map[models.HandlerID]*models.HandlerResult {
	ids = unique(ids)
	tracker := TrackerFromContext(ctx)
	if tracker == nil {
		tracker = NewRequestTracker(ids)
	}

	slots := make([]*models.HandlerResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		tracker.Start(id)
		g.Go(func() error {
			slots[i] = d.invoke(ctx, query, id)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[models.HandlerID]*models.HandlerResult, len(ids))
	for _, r := range slots {
		if r.Completed() {
			tracker.Complete(r.HandlerID, len(r.Sources), relevanceTotal(r.Citations))
		} else {
			tracker.Fail(r.HandlerID, r.Error)
		}
		results[r.HandlerID] = r
	}
	return results
}

func (d *Dispatcher) invoke(ctx context.Context, query string, id models.HandlerID) *models.HandlerResult {
	start := time.Now()
	ctx, span := d.obs.StartSpan(ctx, "handler.process_query", attribute.String("handler.id", string(id)))

	out, err := d.call(ctx, query, id)

	duration := time.Since(start)
	result := &models.HandlerResult{HandlerID: id, DurationMs: duration.Milliseconds()}
	if err != nil {
		result.Status = models.StatusError
		result.Error = apperrors.Describe(err)
		err = apperrors.NewHandlerInvocationFailedError(string(id), err)
		d.logger.Warn("handler failed", map[string]interface{}{
			"handlerId": string(id),
			"error":     result.Error,
		})
	} else {
		result.Status = models.StatusCompleted
		result.Response = out.Response
		result.Sources = out.Sources
		result.Citations = out.Citations
	}

	metrics.HandlerInvocations.WithLabelValues(string(id), string(result.Status)).Inc()
	metrics.HandlerDuration.WithLabelValues(string(id)).Observe(duration.Seconds())
	d.obs.RecordHandlerInvoked(ctx, string(id), string(result.Status))
	observability.EndSpan(span, err)

	return result
}

type outcome struct {
	out *models.HandlerOutput
	err error
}

func (d *Dispatcher) call(ctx context.Context, query string, id models.HandlerID) (*models.HandlerOutput, error) {
	h, ok := d.handlers.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, id)
	}

	if d.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.HandlerTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
			}
		}()
		out, err := h.ProcessQuery(ctx, query)
		if err == nil && out == nil {
			out = &models.HandlerOutput{}
		}
		done <- outcome{out: out, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
		if o.err == nil {
			return o.out, nil
		}
	case <-ctx.Done():
		o.err = ctx.Err()
	}

	if d.config.HandlerTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrHandlerTimeout, d.config.HandlerTimeout)
	}
	return nil, o.err
}

func unique(ids []models.HandlerID) []models.HandlerID {
	seen := make(map[models.HandlerID]bool, len(ids))
	out := make([]models.HandlerID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func relevanceTotal(citations []models.Citation) float64 {
	total := 0.0
	for _, c := range citations {
		total += c.RelevanceScore
	}
	return total
}
