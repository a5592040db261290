package shimon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"agentsplatform/internal/adapters/config"
	"agentsplatform/internal/adapters/embeddings"
	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

const (
	maxRulings    = 5
	maxGuidelines = 3

	updateLockKey = "knowledge:shimon:update"
	updateLockTTL = 30 * time.Minute

	// maxPageBytes caps a scraped page
	maxPageBytes = 5 << 20
)

// Locker serializes knowledge updates across replicas
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// KnowledgeDeps are the collaborators of the knowledge manager. Embedder and
// Locker are optional.
type KnowledgeDeps struct {
	Documents  knowledge.DocumentRepository
	Embedder   embeddings.Provider
	Locker     Locker
	HTTPClient *http.Client
	Sources    config.KnowledgeConfig
}

// RelevantKnowledge is the legal context handed to the model
type RelevantKnowledge struct {
	Rulings    []*knowledge.Document `json:"rulings"`
	Guidelines []*knowledge.Document `json:"guidelines"`
	LastUpdate time.Time             `json:"last_update"`
}

// KnowledgeManager scrapes legal sources into the document store and answers
// knowledge lookups for the agent
type KnowledgeManager struct {
	agentID  string
	docs     knowledge.DocumentRepository
	embedder embeddings.Provider
	locker   Locker
	client   *http.Client
	sources  config.KnowledgeConfig
	now      func() time.Time
	log      *logger.Logger

	mu         sync.RWMutex
	lastUpdate time.Time
}

// NewKnowledgeManager creates a knowledge manager for an agent
func NewKnowledgeManager(agentID string, deps KnowledgeDeps) *KnowledgeManager {
	client := deps.HTTPClient
	if client == nil {
		timeout := deps.Sources.FetchTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &KnowledgeManager{
		agentID:    agentID,
		docs:       deps.Documents,
		embedder:   deps.Embedder,
		locker:     deps.Locker,
		client:     client,
		sources:    deps.Sources,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.Get().With("component", "shimon_knowledge", "agent_id", agentID),
		lastUpdate: time.Now().UTC(),
	}
}

// LastUpdate returns the time of the last successful full update
func (m *KnowledgeManager) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}

// UpdateAll refreshes rulings, guidelines, bankruptcy info and execution
// procedures concurrently. A source that cannot be fetched or parsed is
// skipped; a storage failure fails the update.
func (m *KnowledgeManager) UpdateAll(ctx context.Context) error {
	if m.locker != nil {
		ok, err := m.locker.AcquireLock(ctx, updateLockKey, updateLockTTL)
		if err != nil {
			m.log.Warnw("Knowledge lock unavailable, updating without it", "error", err)
		} else if !ok {
			m.log.Infow("Knowledge update already running elsewhere, skipping")
			return nil
		} else {
			defer func() {
				if err := m.locker.ReleaseLock(context.WithoutCancel(ctx), updateLockKey); err != nil {
					m.log.Warnw("Failed to release knowledge lock", "error", err)
				}
			}()
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.updateCourtRulings(gctx) })
	g.Go(func() error { return m.updateGuidelines(gctx, m.sources.LegalUpdates, "guideline-item", knowledge.TypeGuideline) })
	g.Go(func() error { return m.updateGuidelines(gctx, m.sources.Bankruptcy, "bankruptcy-item", knowledge.TypeBankruptcy) })
	g.Go(func() error { return m.updateGuidelines(gctx, m.sources.LegalUpdates, "procedure-item", knowledge.TypeProcedure) })

	if err := g.Wait(); err != nil {
		m.log.Errorw("Failed to update knowledge", "error", err)
		return errors.NewAgentError(m.agentID, "update knowledge", fmt.Errorf("%w: %w", errors.ErrKnowledgeBase, err))
	}

	m.mu.Lock()
	m.lastUpdate = m.now()
	m.mu.Unlock()

	m.log.Infow("Updated all legal knowledge", "duration", time.Since(start))
	return nil
}

func (m *KnowledgeManager) updateCourtRulings(ctx context.Context) error {
	for _, source := range m.sources.CourtRulings {
		body, err := m.fetch(ctx, source)
		if err != nil {
			m.log.Errorw("Error fetching rulings", "source", source, "error", err)
			continue
		}
		rulings, err := ParseRulings(strings.NewReader(body), source, m.now())
		if err != nil {
			m.log.Errorw("Error parsing rulings", "source", source, "error", err)
			continue
		}
		if err := m.storeRulings(ctx, rulings); err != nil {
			return errors.Wrapf(err, "store rulings from %s", source)
		}
	}
	return nil
}

func (m *KnowledgeManager) updateGuidelines(ctx context.Context, sources []string, itemClass string, docType knowledge.DocumentType) error {
	for _, source := range sources {
		body, err := m.fetch(ctx, source)
		if err != nil {
			m.log.Errorw("Error fetching guidelines", "source", source, "type", docType, "error", err)
			continue
		}
		items, err := ParseGuidelines(strings.NewReader(body), itemClass, source)
		if err != nil {
			m.log.Errorw("Error parsing guidelines", "source", source, "type", docType, "error", err)
			continue
		}
		if err := m.storeGuidelines(ctx, items, docType); err != nil {
			return errors.Wrapf(err, "store %s from %s", docType, source)
		}
	}
	return nil
}

func (m *KnowledgeManager) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(errors.ErrExternal, "unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *KnowledgeManager) storeRulings(ctx context.Context, rulings []knowledge.Ruling) error {
	for i := range rulings {
		r := &rulings[i]
		exists, err := m.docs.ExistsBySourceID(ctx, knowledge.TypeRuling, r.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := json.Marshal(r)
		if err != nil {
			return err
		}
		now := m.now()
		doc := &knowledge.Document{
			ID:             uuid.New(),
			SourceID:       r.ID,
			AgentID:        m.agentID,
			Type:           knowledge.TypeRuling,
			Category:       primaryCategory(r.Categories),
			Categories:     r.Categories,
			Title:          r.Title,
			URL:            r.URL,
			Content:        content,
			RelevanceScore: Relevance(r, now),
			Timestamp:      now,
		}
		if published, ok := ParseDate(r.Date); ok {
			doc.PublishedAt = &published
		}
		m.attachEmbedding(ctx, doc, r.Title+"\n"+r.Content)

		if err := m.docs.Insert(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *KnowledgeManager) storeGuidelines(ctx context.Context, items []knowledge.Guideline, docType knowledge.DocumentType) error {
	for i := range items {
		g := &items[i]
		exists, err := m.docs.ExistsBySourceID(ctx, docType, g.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := json.Marshal(g)
		if err != nil {
			return err
		}
		doc := &knowledge.Document{
			ID:             uuid.New(),
			SourceID:       g.ID,
			AgentID:        m.agentID,
			Type:           docType,
			Category:       CategoryKey(g.Category),
			Title:          g.Title,
			URL:            g.URL,
			Content:        content,
			RelevanceScore: 0.5,
			Timestamp:      m.now(),
		}
		if g.Category != "" {
			doc.Categories = []string{g.Category}
		}
		m.attachEmbedding(ctx, doc, g.Title+"\n"+g.Content)

		if err := m.docs.Insert(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *KnowledgeManager) attachEmbedding(ctx context.Context, doc *knowledge.Document, text string) {
	if m.embedder == nil {
		return
	}
	vec, err := m.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		m.log.Warnw("Embedding failed, storing document without it", "source_id", doc.SourceID, "error", err)
		return
	}
	v := pgvector.NewVector(vec)
	doc.Embedding = &v
}

// GetRelevantKnowledge returns the top rulings and newest guidelines of a
// category. With an embedder, rulings are ranked by similarity to the query.
func (m *KnowledgeManager) GetRelevantKnowledge(ctx context.Context, query, category string) (*RelevantKnowledge, error) {
	categories := filterValues(category)

	rulingsQuery := knowledge.Query{
		Type:       knowledge.TypeRuling,
		Categories: categories,
		OrderBy:    "relevance",
		Limit:      maxRulings,
	}
	rulings, err := m.findRulings(ctx, query, rulingsQuery)
	if err != nil {
		return nil, errors.Wrap(errors.ErrKnowledgeBase, "get rulings: "+err.Error())
	}

	guidelines, err := m.docs.Find(ctx, knowledge.Query{
		Type:       knowledge.TypeGuideline,
		Categories: categories,
		OrderBy:    "recent",
		Limit:      maxGuidelines,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrKnowledgeBase, "get guidelines: "+err.Error())
	}

	return &RelevantKnowledge{
		Rulings:    rulings,
		Guidelines: guidelines,
		LastUpdate: m.LastUpdate(),
	}, nil
}

func (m *KnowledgeManager) findRulings(ctx context.Context, query string, q knowledge.Query) ([]*knowledge.Document, error) {
	if m.embedder == nil || strings.TrimSpace(query) == "" {
		return m.docs.Find(ctx, q)
	}
	vec, err := m.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		m.log.Warnw("Query embedding failed, ranking by relevance", "error", err)
		return m.docs.Find(ctx, q)
	}
	return m.docs.SearchSimilar(ctx, q, pgvector.NewVector(vec))
}

// primaryCategory is the key of the first recognized category label
func primaryCategory(labels []string) string {
	for _, l := range labels {
		if key := MatchCategory(l); key != CategoryGeneral {
			return key
		}
	}
	if len(labels) > 0 {
		return strings.TrimSpace(labels[0])
	}
	return ""
}
