package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/pkg/errors"
)

var _ knowledge.DocumentRepository = (*DocumentRepository)(nil)

const documentColumns = `id, source_id, agent_id, type, category, categories, title, url,
	content, relevance_score, embedding, published_at, timestamp`

// DocumentRepository implements knowledge.DocumentRepository over legal_data
type DocumentRepository struct {
	db DBTX
}

// NewDocumentRepository creates a new legal document repository
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Insert stores a document. A duplicate (type, source_id) is silently kept as is.
func (r *DocumentRepository) Insert(ctx context.Context, d *knowledge.Document) error {
	if d.Categories == nil {
		d.Categories = pq.StringArray{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO legal_data (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13)
		ON CONFLICT (type, source_id) DO NOTHING`,
		d.ID, d.SourceID, d.AgentID, d.Type, d.Category, d.Categories, d.Title, d.URL,
		jsonText(d.Content), d.RelevanceScore, d.Embedding, d.PublishedAt, d.Timestamp,
	)
	return errors.Wrap(err, "insert legal document")
}

// ExistsBySourceID reports whether a document of the type was already stored from the source id
func (r *DocumentRepository) ExistsBySourceID(ctx context.Context, docType knowledge.DocumentType, sourceID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM legal_data WHERE type = $1 AND source_id = $2)`, docType, sourceID)
	if err != nil {
		return false, errors.Wrap(err, "check legal document")
	}
	return exists, nil
}

// Find lists documents matching q
func (r *DocumentRepository) Find(ctx context.Context, q knowledge.Query) ([]*knowledge.Document, error) {
	where, args := buildDocumentFilter(q)

	order := "timestamp DESC"
	if q.OrderBy == "relevance" {
		order = "relevance_score DESC, timestamp DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM legal_data WHERE %s ORDER BY %s`, documentColumns, where, order)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	docs := []*knowledge.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, errors.Wrap(err, "find legal documents")
	}
	return docs, nil
}

// SearchSimilar ranks documents by cosine distance, skipping rows without an embedding
func (r *DocumentRepository) SearchSimilar(ctx context.Context, q knowledge.Query, embedding pgvector.Vector) ([]*knowledge.Document, error) {
	where, args := buildDocumentFilter(q)
	args = append(args, embedding)
	vecArg := len(args)

	query := fmt.Sprintf(`SELECT %s FROM legal_data WHERE %s AND embedding IS NOT NULL ORDER BY embedding <=> $%d`,
		documentColumns, where, vecArg)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	docs := []*knowledge.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, errors.Wrap(err, "search similar legal documents")
	}
	return docs, nil
}

func buildDocumentFilter(q knowledge.Query) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}

	if q.AgentID != "" {
		args = append(args, q.AgentID)
		clauses = append(clauses, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if q.Type != "" {
		args = append(args, q.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(q.Categories) > 0 {
		args = append(args, pq.StringArray(q.Categories))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(category = ANY($%d) OR categories && $%d)", n, n))
	}

	return strings.Join(clauses, " AND "), args
}
