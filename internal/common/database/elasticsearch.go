// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"strings"

	"audit-orchestrator/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient wraps the client used for knowledge search.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.GetAddresses()
	if len(addresses) == 0 {
		return nil, fmt.Errorf("no elasticsearch addresses configured")
	}

	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

// Ping checks that the cluster answers.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// IndicesExist reports which of the given knowledge indices are missing.
func (c *ElasticsearchClient) IndicesExist(ctx context.Context, indices []string) ([]string, error) {
	var missing []string
	for _, index := range indices {
		res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.Client)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch index check %s: %w", index, err)
		}
		res.Body.Close()
		if res.StatusCode == 404 {
			missing = append(missing, index)
		}
	}
	return missing, nil
}

// IndexName joins the configured prefix and a handler index.
func IndexName(prefix, index string) string {
	if prefix == "" || strings.HasPrefix(index, prefix) {
		return index
	}
	return prefix + index
}
