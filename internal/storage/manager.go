// Package storage combines the Postgres repositories with a Redis read-through cache.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/internal/domain/snapshot"
	"agentsplatform/internal/domain/usercontext"
	"agentsplatform/pkg/errors"
	"agentsplatform/pkg/logger"
)

// Cache key prefixes
const (
	PrefixKnowledge = "knowledge:"
	PrefixLegal     = "legal:"
	PrefixUser      = "user:"
	PrefixMetrics   = "metrics:"
)

const (
	DefaultTTL           = time.Hour
	DefaultRetentionDays = 30
	latestMetricsTTL     = 5 * time.Minute
	latestMetricsKey     = PrefixMetrics + "latest"
)

// Cache is the subset of the Redis adapter the manager needs
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Health(ctx context.Context) error
}

// Migrator applies the database schema
type Migrator interface {
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error
}

// Repositories groups the stores behind the manager
type Repositories struct {
	Knowledge    knowledge.Repository
	Interactions interaction.Repository
	Users        usercontext.Repository
	Snapshots    snapshot.Repository
}

// Manager is the single entry point for knowledge, metrics and user context persistence
type Manager struct {
	db         Migrator
	cache      Cache
	repos      Repositories
	defaultTTL time.Duration
	log        *logger.Logger
}

// NewManager creates a storage manager. A zero defaultTTL means one hour.
func NewManager(db Migrator, cache Cache, repos Repositories, defaultTTL time.Duration) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Manager{
		db:         db,
		cache:      cache,
		repos:      repos,
		defaultTTL: defaultTTL,
		log:        logger.Get().With("component", "storage"),
	}
}

// Initialize creates the tables
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.db.Migrate(ctx); err != nil {
		return errors.Wrap(err, "initialize storage")
	}
	return nil
}

func knowledgeKey(agentID, knowledgeType string) string {
	return fmt.Sprintf("%s%s:%s", PrefixKnowledge, agentID, knowledgeType)
}

// StoreAgentKnowledge persists data and caches it. ttl <= 0 uses the default TTL.
func (m *Manager) StoreAgentKnowledge(ctx context.Context, agentID, knowledgeType string, data interface{}, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(errors.ErrInvalidInput, err.Error())
	}

	now := time.Now().UTC()
	entry := &knowledge.Entry{
		ID:        fmt.Sprintf("%s_%s_%d", agentID, knowledgeType, now.UnixNano()),
		AgentID:   agentID,
		Type:      knowledgeType,
		Data:      raw,
		Timestamp: now,
	}
	if err := m.repos.Knowledge.Store(ctx, entry); err != nil {
		return "", errors.Wrapf(err, "store knowledge for %s", agentID)
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.cacheSet(ctx, knowledgeKey(agentID, knowledgeType), json.RawMessage(raw), ttl)

	return entry.ID, nil
}

// GetAgentKnowledge returns the newest data of the type, or nil when there is none
func (m *Manager) GetAgentKnowledge(ctx context.Context, agentID, knowledgeType string) (json.RawMessage, error) {
	key := knowledgeKey(agentID, knowledgeType)

	var cached json.RawMessage
	if m.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	entry, err := m.repos.Knowledge.Latest(ctx, agentID, knowledgeType)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get knowledge for %s", agentID)
	}

	m.cacheSet(ctx, key, entry.Data, m.defaultTTL)
	return entry.Data, nil
}

// LoadKnowledgeBase returns the newest entry of every type keyed by type
func (m *Manager) LoadKnowledgeBase(ctx context.Context, agentID string) (map[string]json.RawMessage, error) {
	entries, err := m.repos.Knowledge.LatestPerType(ctx, agentID)
	if err != nil {
		return nil, errors.Wrapf(err, "load knowledge base for %s", agentID)
	}
	kb := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		kb[e.Type] = e.Data
	}
	return kb, nil
}

// StoreMetrics persists a snapshot and caches it as the latest
func (m *Manager) StoreMetrics(ctx context.Context, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}

	s := &snapshot.Snapshot{ID: uuid.New(), Data: raw, Timestamp: time.Now().UTC()}
	if err := m.repos.Snapshots.Store(ctx, s); err != nil {
		return errors.Wrap(err, "store metrics")
	}

	m.cacheSet(ctx, latestMetricsKey, json.RawMessage(raw), latestMetricsTTL)
	return nil
}

// LatestMetrics returns the cached latest snapshot, nil when expired
func (m *Manager) LatestMetrics(ctx context.Context) json.RawMessage {
	var raw json.RawMessage
	if m.cacheGet(ctx, latestMetricsKey, &raw) {
		return raw
	}
	return nil
}

// StoreInteraction persists one processed message
func (m *Manager) StoreInteraction(ctx context.Context, i *interaction.Interaction) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	return m.repos.Interactions.Store(ctx, i)
}

// CountInteractionsSince counts stored interactions
func (m *Manager) CountInteractionsSince(ctx context.Context, since time.Time) (int, error) {
	return m.repos.Interactions.CountSince(ctx, since)
}

// GetUserContext returns the user's context, or nil when there is none
func (m *Manager) GetUserContext(ctx context.Context, userID string) (map[string]interface{}, error) {
	key := PrefixUser + userID

	var data map[string]interface{}
	if m.cacheGet(ctx, key, &data) {
		return data, nil
	}

	uc, err := m.repos.Users.Get(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user context %s", userID)
	}

	if err := json.Unmarshal(uc.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "decode user context %s", userID)
	}
	m.cacheSet(ctx, key, data, DefaultTTL)
	return data, nil
}

// SaveUserContext replaces the user's context and refreshes the cache
func (m *Manager) SaveUserContext(ctx context.Context, userID string, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	uc := &usercontext.UserContext{UserID: userID, Data: raw, UpdatedAt: time.Now().UTC()}
	if err := m.repos.Users.Save(ctx, uc); err != nil {
		return errors.Wrapf(err, "save user context %s", userID)
	}
	m.cacheSet(ctx, PrefixUser+userID, data, DefaultTTL)
	return nil
}

type retention struct {
	table  string
	delete func(context.Context, time.Time) (int64, error)
}

// CleanupOldData deletes metrics, knowledge and interactions older than days.
// A failing table is logged and the remaining tables are still cleaned.
func (m *Manager) CleanupOldData(ctx context.Context, days int) error {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	for _, r := range []retention{
		{"metrics", m.repos.Snapshots.DeleteBefore},
		{"knowledge_base", m.repos.Knowledge.DeleteBefore},
		{"interactions", m.repos.Interactions.DeleteBefore},
	} {
		n, err := r.delete(ctx, cutoff)
		if err != nil {
			m.log.Errorw("Cleanup failed", "table", r.table, "error", err)
			continue
		}
		m.log.Infow("Cleaned old data", "table", r.table, "deleted", n, "cutoff", cutoff)
	}
	return nil
}

// Health pings the database and the cache
func (m *Manager) Health(ctx context.Context) error {
	if err := m.db.Health(ctx); err != nil {
		return errors.Wrap(err, "postgres")
	}
	if m.cache != nil {
		if err := m.cache.Health(ctx); err != nil {
			return errors.Wrap(err, "redis")
		}
	}
	return nil
}

// cacheGet reports a hit. Cache failures other than a miss are logged and treated as a miss.
func (m *Manager) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if m.cache == nil {
		return false
	}
	err := m.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, errors.ErrNotFound) {
		m.log.Warnw("Cache read failed", "key", key, "error", err)
	}
	return false
}

func (m *Manager) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, key, value, ttl); err != nil {
		m.log.Warnw("Cache write failed", "key", key, "error", err)
	}
}
