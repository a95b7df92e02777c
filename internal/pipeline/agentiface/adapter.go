package agentiface

import (
	"context"
	"fmt"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/embedprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/persist"
)

// QdrantAdapter implements KnowledgeBase over one VectorStore per
// collection, embedding queries with the same provider used to ingest the
// collection's points.
type QdrantAdapter struct {
	embedder embedprovider.Provider
	stores   map[string]*persist.VectorStore
}

func NewQdrantAdapter(embedder embedprovider.Provider) *QdrantAdapter {
	return &QdrantAdapter{embedder: embedder, stores: make(map[string]*persist.VectorStore)}
}

// Register makes a previously opened VectorStore available under the name
// an agent would pass as "collection".
func (a *QdrantAdapter) Register(collection string, store *persist.VectorStore) {
	a.stores[collection] = store
}

func (a *QdrantAdapter) SearchKnowledgeBase(ctx context.Context, query, collection string) ([]pipeline.QAPair, error) {
	store, ok := a.stores[collection]
	if !ok {
		return nil, fmt.Errorf("agentiface: unknown collection %q", collection)
	}
	vecs, err := a.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("agentiface: embed query: %w", err)
	}
	hits, err := store.Search(ctx, vecs[0], 5)
	if err != nil {
		return nil, fmt.Errorf("agentiface: search: %w", err)
	}
	pairs := make([]pipeline.QAPair, 0, len(hits))
	for _, h := range hits {
		pairs = append(pairs, pipeline.QAPair{Question: h.Question, Answer: h.Answer, DatasetTag: collection})
	}
	return pairs, nil
}

func (a *QdrantAdapter) ListCollections(ctx context.Context) ([]string, error) {
	for _, store := range a.stores {
		return store.ListCollections(ctx)
	}
	return nil, fmt.Errorf("agentiface: no collections registered")
}
