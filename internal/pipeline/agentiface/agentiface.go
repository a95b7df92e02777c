// Package agentiface defines the tool-call surface a conversational agent
// would use against the knowledge base this pipeline populates. The agent
// itself is out of scope; this package only carries the two interfaces
// such an agent would call, plus a thin adapter over the persisted Qdrant
// collections.
package agentiface

import (
	"context"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// KnowledgeBase is the tool-call surface an external agent plugs into: a
// semantic search over previously ingested Q/A pairs, and a collection
// listing, mirroring original_source/agent_tools.py's
// search_rag_knowledge_base and list_rag_collections tools.
type KnowledgeBase interface {
	SearchKnowledgeBase(ctx context.Context, query, collection string) ([]pipeline.QAPair, error)
	ListCollections(ctx context.Context) ([]string, error)
}
