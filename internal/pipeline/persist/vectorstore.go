package persist

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

const schemaVersion = 1

// VectorStore upserts one point per Q/A pair: a single default vector of
// fixed size, cosine distance, payload indexed on domain. Grounded on
// persistence/databases/qdrant_vector.go, replacing its UUID-from-string
// point id scheme with a deterministic 63-bit integer id so point identity
// survives re-ingestion of the same (domain, source, row) triple.
type VectorStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewVectorStore dials Qdrant's gRPC endpoint and, if recreate is true,
// drops and recreates the collection with the given fixed dimensionality
// and cosine distance before any ingestion.
func NewVectorStore(ctx context.Context, dsn, collection string, dimension int, recreate bool) (*VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("persist: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("persist: invalid qdrant port: %w", err)
	}
	config := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		config.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		config.APIKey = apiKey
	}
	client, err := qdrant.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("persist: create qdrant client: %w", err)
	}

	vs := &VectorStore{client: client, collection: collection, dimension: dimension}
	if err := vs.ensureCollection(ctx, recreate); err != nil {
		client.Close()
		return nil, fmt.Errorf("persist: ensure collection: %w", err)
	}
	return vs, nil
}

func (v *VectorStore) ensureCollection(ctx context.Context, recreate bool) error {
	exists, err := v.client.CollectionExists(ctx, v.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		if !recreate {
			return nil
		}
		if err := v.client.DeleteCollection(ctx, v.collection); err != nil {
			return fmt.Errorf("drop existing collection: %w", err)
		}
	}
	if v.dimension <= 0 {
		return fmt.Errorf("qdrant requires a positive vector dimension")
	}
	err = v.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(v.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	fieldType := qdrant.FieldType_FieldTypeKeyword
	_, err = v.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: v.collection,
		FieldName:      DomainField,
		FieldType:      &fieldType,
	})
	if err != nil {
		return fmt.Errorf("create domain field index: %w", err)
	}
	return nil
}

// UpsertBatch builds one point per Q/A pair with payload
// {domain, question, answer, source, created_at, schema_version} and a
// deterministic point id, then upserts in one batch call.
func (v *VectorStore) UpsertBatch(ctx context.Context, domain, source string, pairs []pipeline.QAPair, vectors [][]float32, createdAt time.Time) error {
	if len(pairs) != len(vectors) {
		return fmt.Errorf("persist: pairs/vectors length mismatch: %d vs %d", len(pairs), len(vectors))
	}
	points := make([]*qdrant.PointStruct, 0, len(pairs))
	for i, p := range pairs {
		id := PointID(domain, source, i)
		payload := qdrant.NewValueMap(map[string]any{
			"domain":         domain,
			"question":       p.Question,
			"answer":         p.Answer,
			"source":         source,
			"created_at":     createdAt.UTC().Format(time.RFC3339),
			"schema_version": schemaVersion,
		})
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(id),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		})
	}
	_, err := v.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: v.collection, Points: points})
	if err != nil {
		return fmt.Errorf("persist: upsert points: %w", err)
	}
	return nil
}

// DomainField is the indexed payload field name, kept as a constant since
// every collection this package manages indexes on the same field.
const DomainField = "domain"

// SearchResult is one hit returned by Search, carrying back the payload
// fields an agent's search tool needs to reconstruct a QAPair.
type SearchResult struct {
	Question string
	Answer   string
	Score    float64
}

// Search runs a nearest-neighbor query against this collection, grounded on
// persistence/databases/qdrant_vector.go's SimilaritySearch.
func (v *VectorStore) Search(ctx context.Context, queryVector []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	lim := uint64(limit)
	hits, err := v.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQueryDense(queryVector),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("persist: query points: %w", err)
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		var q, a string
		if hit.Payload != nil {
			q = hit.Payload["question"].GetStringValue()
			a = hit.Payload["answer"].GetStringValue()
		}
		results = append(results, SearchResult{Question: q, Answer: a, Score: float64(hit.Score)})
	}
	return results, nil
}

// ListCollections lists every collection this Qdrant instance holds,
// grounded on the same client the persistor uses for ingestion.
func (v *VectorStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := v.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("persist: list collections: %w", err)
	}
	return names, nil
}

func (v *VectorStore) Close() error {
	return v.client.Close()
}
