// internal/orchestration/dispatcher/tracker.go
package dispatcher

import (
	"context"
	"sync"

	"audit-orchestrator/internal/models"
)

type trackerKey struct{}

// RequestTracker records the status of every handler involved in one request.
type RequestTracker struct {
	mu      sync.Mutex
	order   []models.HandlerID
	entries map[models.HandlerID]*models.HandlerStatusEntry
}

// NewRequestTracker marks every handler idle.
func NewRequestTracker(ids []models.HandlerID) *RequestTracker {
	t := &RequestTracker{entries: make(map[models.HandlerID]*models.HandlerStatusEntry, len(ids))}
	for _, id := range ids {
		t.track(id)
	}
	return t
}

func (t *RequestTracker) track(id models.HandlerID) *models.HandlerStatusEntry {
	e, ok := t.entries[id]
	if !ok {
		e = &models.HandlerStatusEntry{HandlerID: id, Status: models.StatusIdle}
		t.entries[id] = e
		t.order = append(t.order, id)
	}
	return e
}

func (t *RequestTracker) Start(id models.HandlerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.track(id).Status = models.StatusRunning
}

func (t *RequestTracker) Complete(id models.HandlerID, documents int, relevanceTotal float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.track(id)
	e.Status = models.StatusCompleted
	e.DocumentsFound = documents
	e.RelevanceTotal = relevanceTotal
	e.Error = ""
}

func (t *RequestTracker) Fail(id models.HandlerID, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.track(id)
	e.Status = models.StatusError
	e.Error = msg
}

func (t *RequestTracker) Status(id models.HandlerID) models.HandlerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.Status
	}
	return ""
}

// Snapshot returns the entries in the order handlers were first tracked.
func (t *RequestTracker) Snapshot() []models.HandlerStatusEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.HandlerStatusEntry, len(t.order))
	for i, id := range t.order {
		out[i] = *t.entries[id]
	}
	return out
}

func WithTracker(ctx context.Context, t *RequestTracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the request's tracker, or nil.
func TrackerFromContext(ctx context.Context) *RequestTracker {
	t, _ := ctx.Value(trackerKey{}).(*RequestTracker)
	return t
}
