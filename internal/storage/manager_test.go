package storage

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsplatform/internal/domain/interaction"
	"agentsplatform/internal/domain/knowledge"
	"agentsplatform/internal/domain/snapshot"
	"agentsplatform/internal/domain/usercontext"
	"agentsplatform/pkg/errors"
)

type cacheItem struct {
	data []byte
	ttl  time.Duration
}

type memCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	fail  bool
}

func newMemCache() *memCache { return &memCache{items: map[string]cacheItem{}} }

func (c *memCache) Set(_ context.Context, key string, v interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.ErrUnavailable
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.items[key] = cacheItem{data: data, ttl: ttl}
	return nil
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.ErrUnavailable
	}
	item, ok := c.items[key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal(item.data, dest)
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *memCache) Health(context.Context) error { return nil }

type fakeDB struct{ migrated bool }

func (f *fakeDB) Migrate(context.Context) error {
	f.migrated = true
	return nil
}

func (f *fakeDB) Health(context.Context) error { return nil }

type fakeKnowledge struct {
	entries   []*knowledge.Entry
	deleteErr error
	deleted   bool
}

func (f *fakeKnowledge) Store(_ context.Context, e *knowledge.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeKnowledge) Latest(_ context.Context, agentID, t string) (*knowledge.Entry, error) {
	var latest *knowledge.Entry
	for _, e := range f.entries {
		if e.AgentID == agentID && e.Type == t && (latest == nil || e.Timestamp.After(latest.Timestamp)) {
			latest = e
		}
	}
	if latest == nil {
		return nil, errors.ErrNotFound
	}
	return latest, nil
}

func (f *fakeKnowledge) LatestPerType(_ context.Context, agentID string) ([]*knowledge.Entry, error) {
	byType := map[string]*knowledge.Entry{}
	for _, e := range f.entries {
		if cur, ok := byType[e.Type]; e.AgentID == agentID && (!ok || e.Timestamp.After(cur.Timestamp)) {
			byType[e.Type] = e
		}
	}
	out := make([]*knowledge.Entry, 0, len(byType))
	for _, e := range byType {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeKnowledge) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted = true
	return 0, f.deleteErr
}

type fakeInteractions struct{ deleted bool }

func (f *fakeInteractions) Store(context.Context, *interaction.Interaction) error { return nil }
func (f *fakeInteractions) CountSince(context.Context, time.Time) (int, error)    { return 0, nil }
func (f *fakeInteractions) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted = true
	return 2, nil
}

type fakeUsers struct {
	users map[string]*usercontext.UserContext
	gets  int
}

func (f *fakeUsers) Get(_ context.Context, id string) (*usercontext.UserContext, error) {
	f.gets++
	uc, ok := f.users[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return uc, nil
}

func (f *fakeUsers) Save(_ context.Context, uc *usercontext.UserContext) error {
	f.users[uc.UserID] = uc
	return nil
}

type fakeSnapshots struct {
	stored  []*snapshot.Snapshot
	deleted bool
}

func (f *fakeSnapshots) Store(_ context.Context, s *snapshot.Snapshot) error {
	f.stored = append(f.stored, s)
	return nil
}

func (f *fakeSnapshots) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted = true
	return 1, nil
}

type fixture struct {
	mgr       *Manager
	cache     *memCache
	knowledge *fakeKnowledge
	inter     *fakeInteractions
	users     *fakeUsers
	snaps     *fakeSnapshots
}

func newFixture() *fixture {
	f := &fixture{
		cache:     newMemCache(),
		knowledge: &fakeKnowledge{},
		inter:     &fakeInteractions{},
		users:     &fakeUsers{users: map[string]*usercontext.UserContext{}},
		snaps:     &fakeSnapshots{},
	}
	f.mgr = NewManager(&fakeDB{}, f.cache, Repositories{
		Knowledge: f.knowledge, Interactions: f.inter, Users: f.users, Snapshots: f.snaps,
	}, 0)
	return f
}

func TestStoreAgentKnowledge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	id, err := f.mgr.StoreAgentKnowledge(ctx, "shimon", "faq", map[string]string{"q": "a"}, 0)
	require.NoError(t, err)
	assert.Regexp(t, `^shimon_faq_\d+$`, id)

	item, ok := f.cache.items["knowledge:shimon:faq"]
	require.True(t, ok)
	assert.Equal(t, time.Hour, item.ttl)

	_, err = f.mgr.StoreAgentKnowledge(ctx, "shimon", "short", "x", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, f.cache.items["knowledge:shimon:short"].ttl)
}

func TestGetAgentKnowledge(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.cache.Set(ctx, "knowledge:shimon:faq", json.RawMessage(`{"cached":true}`), time.Hour))

		data, err := f.mgr.GetAgentKnowledge(ctx, "shimon", "faq")
		require.NoError(t, err)
		assert.JSONEq(t, `{"cached":true}`, string(data))
	})

	t.Run("db fallback refills cache", func(t *testing.T) {
		f := newFixture()
		f.knowledge.entries = []*knowledge.Entry{
			{AgentID: "shimon", Type: "faq", Data: json.RawMessage(`{"v":1}`), Timestamp: time.Now().Add(-time.Hour)},
			{AgentID: "shimon", Type: "faq", Data: json.RawMessage(`{"v":2}`), Timestamp: time.Now()},
		}

		data, err := f.mgr.GetAgentKnowledge(ctx, "shimon", "faq")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(data))
		assert.Contains(t, f.cache.items, "knowledge:shimon:faq")
	})

	t.Run("missing is nil", func(t *testing.T) {
		f := newFixture()
		data, err := f.mgr.GetAgentKnowledge(ctx, "shimon", "none")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("broken cache falls through", func(t *testing.T) {
		f := newFixture()
		f.cache.fail = true
		f.knowledge.entries = []*knowledge.Entry{{AgentID: "shimon", Type: "faq", Data: json.RawMessage(`1`), Timestamp: time.Now()}}

		data, err := f.mgr.GetAgentKnowledge(ctx, "shimon", "faq")
		require.NoError(t, err)
		assert.JSONEq(t, `1`, string(data))
	})
}

func TestStoreMetrics(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.mgr.StoreMetrics(ctx, map[string]int{"total_requests": 3}))
	require.Len(t, f.snaps.stored, 1)
	assert.Equal(t, 5*time.Minute, f.cache.items["metrics:latest"].ttl)
	assert.JSONEq(t, `{"total_requests":3}`, string(f.mgr.LatestMetrics(ctx)))
}

func TestUserContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	data, err := f.mgr.GetUserContext(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, data)

	f.users.users["u2"] = &usercontext.UserContext{UserID: "u2", Data: json.RawMessage(`{"lang":"he"}`)}
	data, err = f.mgr.GetUserContext(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "he", data["lang"])

	// second read is served from cache
	_, err = f.mgr.GetUserContext(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.users.gets)

	require.NoError(t, f.mgr.SaveUserContext(ctx, "u1", map[string]interface{}{"step": "intro"}))
	data, err = f.mgr.GetUserContext(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "intro", data["step"])
}

func TestCleanupOldDataContinuesAfterFailure(t *testing.T) {
	f := newFixture()
	f.knowledge.deleteErr = errors.ErrTimeout

	require.NoError(t, f.mgr.CleanupOldData(context.Background(), 30))
	assert.True(t, f.snaps.deleted)
	assert.True(t, f.knowledge.deleted)
	assert.True(t, f.inter.deleted)
}

func TestInitialize(t *testing.T) {
	db := &fakeDB{}
	mgr := NewManager(db, nil, Repositories{}, 0)
	require.NoError(t, mgr.Initialize(context.Background()))
	assert.True(t, db.migrated)
}
