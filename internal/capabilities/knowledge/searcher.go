// internal/capabilities/knowledge/searcher.go
package knowledge

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/database"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "audit:kb:"

var (
	ErrSearchFailed  = errors.New("KNOWLEDGE_SEARCH_FAILED")
	ErrSearchTimeout = errors.New("KNOWLEDGE_SEARCH_TIMEOUT")
)

// Query is one knowledge search against a handler's index.
type Query struct {
	HandlerID models.HandlerID
	Index     string
	Namespace string
	Text      string
	TopK      int
}

// Searcher returns the topK most relevant hits with scores in [0,1].
type Searcher interface {
	Search(ctx context.Context, q Query) ([]models.SearchHit, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ElasticSearcher searches Elasticsearch and caches hit lists in Redis.
type ElasticSearcher struct {
	config *Config
	es     *elasticsearch.Client
	cache  *redis.Client
	logger Logger
}

// NewElasticSearcher accepts a nil cache client, which disables caching.
func NewElasticSearcher(config *Config, es *elasticsearch.Client, cache *redis.Client, log Logger) *ElasticSearcher {
	return &ElasticSearcher{config: config, es: es, cache: cache, logger: log}
}

func (s *ElasticSearcher) Search(ctx context.Context, q Query) ([]models.SearchHit, error) {
	index := database.IndexName(s.config.IndexPrefix, q.Index)
	key := CacheKey(index, q.Namespace, q.Text, q.TopK)

	if hits, ok := s.readCache(ctx, key); ok {
		return hits, nil
	}

	searchCtx := ctx
	if s.config.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.config.SearchTimeout)
		defer cancel()
	}

	hits, err := s.query(searchCtx, index, q)
	if err != nil {
		if searchCtx.Err() != nil {
			return nil, apperrors.NewKnowledgeSearchTimeoutError(index, fmt.Errorf("%w: %v", ErrSearchTimeout, err))
		}
		return nil, apperrors.NewKnowledgeSearchFailedError(index, fmt.Errorf("%w: %v", ErrSearchFailed, err))
	}

	s.writeCache(ctx, key, hits)
	return hits, nil
}

func (s *ElasticSearcher) readCache(ctx context.Context, key string) ([]models.SearchHit, bool) {
	if s.cache == nil || !s.config.CacheEnabled {
		return nil, false
	}

	val, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("knowledge cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		metrics.KnowledgeCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var hits []models.SearchHit
	if err := json.Unmarshal([]byte(val), &hits); err != nil {
		s.logger.Warn("knowledge cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		metrics.KnowledgeCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.KnowledgeCache.WithLabelValues("hit").Inc()
	return hits, true
}

func (s *ElasticSearcher) writeCache(ctx context.Context, key string, hits []models.SearchHit) {
	if s.cache == nil || !s.config.CacheEnabled {
		return
	}
	data, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.config.CacheTTL).Err(); err != nil {
		s.logger.Warn("knowledge cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func buildSearchBody(q Query) map[string]interface{} {
	boolQuery := map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q.Text,
					"fields": []string{"title^2", "content"},
				},
			},
		},
	}
	if q.Namespace != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"namespace": q.Namespace}},
		}
	}
	return map[string]interface{}{
		"size":  q.TopK,
		"query": map[string]interface{}{"bool": boolQuery},
	}
}

type searchResponse struct {
	Hits struct {
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticSearcher) query(ctx context.Context, index string, q Query) ([]models.SearchHit, error) {
	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	maxScore := 0.0
	if r.Hits.MaxScore != nil {
		maxScore = *r.Hits.MaxScore
	}

	hits := make([]models.SearchHit, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		raw := 0.0
		if h.Score != nil {
			raw = *h.Score
		}

		content, _ := h.Source["content"].(string)
		metadata := make(map[string]interface{}, len(h.Source))
		for k, v := range h.Source {
			if k != "content" {
				metadata[k] = v
			}
		}

		hits = append(hits, models.SearchHit{
			ID:       h.ID,
			Score:    normalizeScore(raw, maxScore),
			Content:  content,
			Metadata: metadata,
		})
	}

	s.logger.Debug("knowledge search completed", map[string]interface{}{
		"handlerId": string(q.HandlerID),
		"index":     index,
		"hits":      len(hits),
	})
	return hits, nil
}

// normalizeScore maps an Elasticsearch score into [0,1] relative to the best hit.
func normalizeScore(score, maxScore float64) float64 {
	if maxScore > 0 {
		score = score / maxScore
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// CacheKey is audit:kb:<index>:<sha1(namespace|query)>:<topK>.
func CacheKey(index, namespace, query string, topK int) string {
	material := strings.TrimSpace(query)
	if namespace != "" {
		material = namespace + "|" + material
	}
	sum := sha1.Sum([]byte(material))
	return cacheKeyPrefix + index + ":" + hex.EncodeToString(sum[:]) + ":" + strconv.Itoa(topK)
}
