package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/thisisjab/logtable/entity"
)

type OpenSearchStoreConfig struct {
	Addresses []string
	Username  string
	Password  string
	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool
}

// OpenSearchStore writes each table into a lowercased index. Documents are
// routed by partition key and identified by partition and row key, and are
// only ever created, never overwritten.
type OpenSearchStore struct {
	client *opensearch.Client
}

func NewOpenSearchStore(cfg OpenSearchStoreConfig) (*OpenSearchStore, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &OpenSearchStore{client: client}, nil
}

func indexName(table string) string {
	return strings.ToLower(table)
}

const openSearchMapping = `{
	"mappings": {
		"properties": {
			"PartitionKey": {"type": "keyword"},
			"RowKey": {"type": "keyword"},
			"LoggerName": {"type": "keyword"},
			"Level": {"type": "keyword"},
			"LogTimeStamp": {"type": "date"},
			"Message": {"type": "text"},
			"FullMessage": {"type": "text"}
		}
	}
}`

func (s *OpenSearchStore) CreateIfAbsent(ctx context.Context, table string) error {
	idx := indexName(table)

	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{idx}}
	exists, err := existsReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", idx, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	createReq := opensearchapi.IndicesCreateRequest{
		Index: idx,
		Body:  strings.NewReader(openSearchMapping),
	}
	res, err := createReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", idx, err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// ExecuteBatch sends one bulk request of create operations. OpenSearch applies
// bulk items independently, so a failed item fails the whole call but may
// leave its siblings written.
func (s *OpenSearchStore) ExecuteBatch(ctx context.Context, table, partitionKey string, entities []entity.EncodedEntity) error {
	if err := validateBatch(partitionKey, entities); err != nil {
		return err
	}

	idx := indexName(table)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, e := range entities {
		meta := map[string]any{
			"create": map[string]string{
				"_index":  idx,
				"_id":     e.PartitionKey + "/" + e.RowKey,
				"routing": e.PartitionKey,
			},
		}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(e.Document()); err != nil {
			return fmt.Errorf("couldn't encode entity %s/%s: %w", e.PartitionKey, e.RowKey, err)
		}
	}

	req := opensearchapi.BulkRequest{Body: &buf}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch bulk error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("couldn't decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	for _, item := range br.Items {
		for _, r := range item {
			if r.Error == nil {
				continue
			}
			if r.Status == http.StatusConflict {
				return fmt.Errorf("%w: %s", ErrConflict, r.ID)
			}
			return fmt.Errorf("opensearch rejected %s: %s: %s", r.ID, r.Error.Type, r.Error.Reason)
		}
	}
	return fmt.Errorf("opensearch bulk reported errors")
}

func (s *OpenSearchStore) Close() error {
	return nil
}
