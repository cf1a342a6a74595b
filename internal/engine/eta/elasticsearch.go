// internal/engine/eta/elasticsearch.go
package eta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"intake-engine/internal/common/database"
	"intake-engine/internal/models"
)

// ElasticsearchSink appends transition samples to an index consumed by
// the downstream ETA aggregation.
type ElasticsearchSink struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchSink(client *database.ElasticsearchClient, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Index(ctx context.Context, event models.StatusTransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transition event: %w", err)
	}

	res, err := s.client.Client.Index(
		s.index,
		bytes.NewReader(payload),
		s.client.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index transition event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("transition event rejected: %s", res.Status())
	}
	return nil
}
