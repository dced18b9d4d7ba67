// internal/orchestration/selector/selector.go
package selector

import (
	"context"
	"strings"

	"audit-orchestrator/internal/common/config"
	"audit-orchestrator/internal/models"
	"audit-orchestrator/internal/orchestration/intent"
	"audit-orchestrator/internal/orchestration/registry"
)

// Router chooses the handlers that should answer a query.
type Router interface {
	Route(ctx context.Context, query string, in models.Intent) []models.HandlerID
}

type SelectorConfig struct {
	PrimaryWeight   float64
	SecondaryWeight float64
	KeywordWeight   float64
	EntityBonus     float64
	Threshold       float64
	KnownEntities   []string
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		PrimaryWeight:   3.0,
		SecondaryWeight: 1.5,
		KeywordWeight:   1.0,
		EntityBonus:     1.0,
		Threshold:       1.0,
		KnownEntities:   []string{"acme pharma", "hovione", "boehringer", "thermo fisher", "grand river"},
	}
}

func NewSelectorConfig(appConfig *config.Config) SelectorConfig {
	o := appConfig.Orchestrator
	return SelectorConfig{
		PrimaryWeight:   o.PrimaryWeight,
		SecondaryWeight: o.SecondaryWeight,
		KeywordWeight:   o.KeywordWeight,
		EntityBonus:     o.EntityBonus,
		Threshold:       o.Threshold,
		KnownEntities:   o.KnownEntities,
	}
}

// Selector scores every registered handler against the query and intent.
type Selector struct {
	registry *registry.Registry
	config   SelectorConfig
}

func NewSelector(reg *registry.Registry, cfg SelectorConfig) *Selector {
	entities := make([]string, len(cfg.KnownEntities))
	for i, e := range cfg.KnownEntities {
		entities[i] = strings.ToLower(e)
	}
	cfg.KnownEntities = entities
	return &Selector{registry: reg, config: cfg}
}

// Select returns qualifying handlers in registry order, or the default handler alone.
func (s *Selector) Select(query string, in models.Intent) []models.HandlerID {
	var selected []models.HandlerID
	for _, d := range s.registry.Descriptors() {
		if s.score(d, strings.ToLower(query), in) >= s.config.Threshold {
			selected = append(selected, d.ID)
		}
	}
	if len(selected) == 0 {
		return []models.HandlerID{s.registry.DefaultHandler()}
	}
	return selected
}

func (s *Selector) Route(_ context.Context, query string, in models.Intent) []models.HandlerID {
	return s.Select(query, in)
}

// Scores returns the raw score of every registered handler.
func (s *Selector) Scores(query string, in models.Intent) map[models.HandlerID]float64 {
	q := strings.ToLower(query)
	scores := make(map[models.HandlerID]float64, s.registry.Len())
	for _, d := range s.registry.Descriptors() {
		scores[d.ID] = s.score(d, q, in)
	}
	return scores
}

func (s *Selector) score(d models.HandlerDescriptor, lowerQuery string, in models.Intent) float64 {
	score := 0.0
	if d.HasPrimary(in) {
		score += s.config.PrimaryWeight
	} else if d.HasSecondary(in) {
		score += s.config.SecondaryWeight
	}

	for _, k := range d.Keywords {
		if strings.Contains(lowerQuery, strings.ToLower(k)) {
			score += s.config.KeywordWeight * d.Weight
		}
	}

	if d.EntitySensitive && intent.MentionsEntity(lowerQuery, s.config.KnownEntities) {
		score += s.config.EntityBonus
	}
	return score
}
