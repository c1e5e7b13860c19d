package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/dr-haathi/healthbot/internal/logger"
	"github.com/dr-haathi/healthbot/internal/models"
)

// Client wraps go-elasticsearch with helpers for the knowledge index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
	now   func() time.Time
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":        {"type": "keyword"},
      "title":     {"type": "text"},
      "text":      {"type": "text"},
      "url":       {"type": "keyword"},
      "source":    {"type": "keyword"},
      "language":  {"type": "keyword"},
      "keywords":  {"type": "keyword"},
      "timestamp": {"type": "date"}
    }
  }
}`

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{es: es, index: index, log: logger.OrDiscard(log), now: time.Now}, nil
}

// Name identifies the source in logs.
func (c *Client) Name() string {
	return "knowledge_index"
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the knowledge index with its mapping unless it exists.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("knowledge index created", slog.String("index", c.index))
	return nil
}

// IndexDocument writes a knowledge document into Elasticsearch.
func (c *Client) IndexDocument(ctx context.Context, doc models.KnowledgeDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// SearchTopic returns the best matching document in lang for topic. Every
// word of the topic has to match within one field.
func (c *Client) SearchTopic(ctx context.Context, topic string, lang models.Language) (models.KnowledgeDocument, error) {
	body := map[string]any{
		"size": 1,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{
						"multi_match": map[string]any{
							"query":    topic,
							"fields":   []string{"title^3", "keywords^2", "text"},
							"operator": "and",
						},
					},
				},
				"filter": []map[string]any{
					{"term": map[string]any{"language": string(lang)}},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return models.KnowledgeDocument{}, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return models.KnowledgeDocument{}, fmt.Errorf("%w: search: %v", models.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return models.KnowledgeDocument{}, fmt.Errorf("%w: search failed: %s", statusError(res.StatusCode), strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.KnowledgeDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return models.KnowledgeDocument{}, fmt.Errorf("%w: decode search response: %v", models.ErrUpstreamMalformed, err)
	}
	if len(parsed.Hits.Hits) == 0 {
		return models.KnowledgeDocument{}, fmt.Errorf("%w: no indexed document for %q", models.ErrNotFound, topic)
	}

	return parsed.Hits.Hits[0].Source, nil
}

// FetchSummary serves the knowledge index as a retrieval source.
func (c *Client) FetchSummary(ctx context.Context, topic string, lang models.Language) (models.RawSummary, error) {
	doc, err := c.SearchTopic(ctx, topic, lang)
	if err != nil {
		return models.RawSummary{}, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return models.RawSummary{}, fmt.Errorf("%w: document %q has no text", models.ErrUpstreamMalformed, doc.ID)
	}
	return doc.Summary(c.now().UTC()), nil
}

// DeleteOlderThan removes documents older than ttl using batched delete-by-query.
// It loops until a batch returns fewer deleted documents than the requested batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := c.now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"timestamp": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health checks cluster health to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusNotFound:
		return models.ErrNotFound
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return models.ErrUpstreamUnavailable
	default:
		return models.ErrUpstreamMalformed
	}
}
