package knowledge

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Repository stores the generic per-agent knowledge base
type Repository interface {
	Store(ctx context.Context, e *Entry) error

	// Latest returns errors.ErrNotFound when the agent has no entry of the type
	Latest(ctx context.Context, agentID, entryType string) (*Entry, error)

	// LatestPerType returns the newest entry of each type for the agent
	LatestPerType(ctx context.Context, agentID string) ([]*Entry, error)

	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Query selects legal documents
type Query struct {
	AgentID string
	Type    DocumentType
	// Categories matches documents whose category or categories contain any value
	Categories []string
	// OrderBy is "relevance" or "recent"
	OrderBy string
	Limit   int
}

// DocumentRepository stores legal documents
type DocumentRepository interface {
	Insert(ctx context.Context, d *Document) error

	ExistsBySourceID(ctx context.Context, docType DocumentType, sourceID string) (bool, error)

	Find(ctx context.Context, q Query) ([]*Document, error)

	// SearchSimilar ranks documents matching q by cosine distance to embedding
	SearchSimilar(ctx context.Context, q Query, embedding pgvector.Vector) ([]*Document, error)
}
