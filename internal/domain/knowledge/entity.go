package knowledge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Entry is one versioned row of an agent's general knowledge base.
// The newest entry per (agent, type) wins.
type Entry struct {
	ID        string          `db:"id" json:"id"`
	AgentID   string          `db:"agent_id" json:"agent_id"`
	Type      string          `db:"type" json:"type"`
	Data      json.RawMessage `db:"data" json:"data"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// DocumentType classifies legal documents
type DocumentType string

const (
	TypeLegalKnowledge DocumentType = "legal_knowledge"
	TypeRuling         DocumentType = "ruling"
	TypeGuideline      DocumentType = "guideline"
	TypeTemplate       DocumentType = "template"
	TypeBankruptcy     DocumentType = "bankruptcy"
	TypeProcedure      DocumentType = "procedure"
)

// Document is a scraped or curated legal source
type Document struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	SourceID       string           `db:"source_id" json:"source_id"`
	AgentID        string           `db:"agent_id" json:"agent_id"`
	Type           DocumentType     `db:"type" json:"type"`
	Category       string           `db:"category" json:"category"`
	Categories     pq.StringArray   `db:"categories" json:"categories"`
	Title          string           `db:"title" json:"title"`
	URL            string           `db:"url" json:"url"`
	Content        json.RawMessage  `db:"content" json:"content"`
	RelevanceScore float64          `db:"relevance_score" json:"relevance_score"`
	Embedding      *pgvector.Vector `db:"embedding" json:"-"`
	PublishedAt    *time.Time       `db:"published_at" json:"published_at,omitempty"`
	Timestamp      time.Time        `db:"timestamp" json:"timestamp"`
}

// Ruling is the structured content of a court ruling document
type Ruling struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Content    string   `json:"content"`
	Judges     []string `json:"judges"`
	Categories []string `json:"categories"`
	Source     string   `json:"source"`
	URL        string   `json:"url"`
	Timestamp  string   `json:"timestamp"`
}

// Guideline is the structured content of guideline, bankruptcy and procedure documents
type Guideline struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	URL      string `json:"url"`
	Source   string `json:"source"`
}
