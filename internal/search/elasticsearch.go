package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/SteveArevalo/CS499-CapStone/config"
	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultSearchSize = 25

// searchFields are the AAC text fields matched by SearchAnimals
var searchFields = []string{
	models.FieldName + "^2",
	models.FieldBreed,
	models.FieldColor,
	models.FieldAnimalType,
	models.FieldOutcomeType,
	models.FieldAnimalID,
}

// ElasticClient indexes and searches animal records in Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		index:  config.FormatIndex(cfg, cfg.Index),
	}, nil
}

// Index returns the name of the animals index
func (c *ElasticClient) Index() string {
	return c.index
}

// IndexAnimal indexes record. When the record has an animal_id it is used as
// the document id so re-indexing replaces the previous document.
func (c *ElasticClient) IndexAnimal(ctx context.Context, record models.Record) error {
	doc := make(map[string]interface{}, len(record))
	for k, v := range record {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal animal document")
	}

	req := esapi.IndexRequest{
		Index:   c.index,
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}
	if id, ok := record[models.FieldAnimalID].(string); ok && id != "" {
		req.DocumentID = id
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res.Body)
	}

	log.Debug().Str("index", c.index).Str("animal_id", req.DocumentID).Msg("Animal indexed")
	return nil
}

// SearchAnimals runs a multi_match query for text and returns the matching
// documents, best match first.
func (c *ElasticClient) SearchAnimals(ctx context.Context, text string, size int) ([]map[string]interface{}, error) {
	if size <= 0 {
		size = defaultSearchSize
	}

	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": searchFields,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.Body)
	}

	var result searchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]map[string]interface{}, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		if hit.Source != nil {
			docs = append(docs, hit.Source)
		}
	}
	return docs, nil
}

// Ping checks that the cluster answers
func (c *ElasticClient) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "elasticsearch ping failed")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func responseError(op string, body io.Reader) error {
	var e map[string]interface{}
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return errors.Wrapf(err, "failed to parse Elasticsearch %s error response", op)
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e["error"])
}
