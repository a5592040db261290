package shimon

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"agentsplatform/internal/adapters/ai"
	"agentsplatform/internal/domain/knowledge"
)

type memDocs struct {
	mu          sync.Mutex
	docs        []*knowledge.Document
	findErr     error
	insertErr   error
	similarUsed bool
}

func (m *memDocs) Insert(_ context.Context, d *knowledge.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.docs {
		if existing.Type == d.Type && existing.SourceID == d.SourceID {
			return nil
		}
	}
	m.docs = append(m.docs, d)
	return nil
}

func (m *memDocs) ExistsBySourceID(_ context.Context, docType knowledge.DocumentType, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.Type == docType && d.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDocs) Find(_ context.Context, q knowledge.Query) ([]*knowledge.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*knowledge.Document
	for _, d := range m.docs {
		if q.AgentID != "" && d.AgentID != q.AgentID {
			continue
		}
		if q.Type != "" && d.Type != q.Type {
			continue
		}
		if len(q.Categories) > 0 && !matchesAny(d, q.Categories) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy == "relevance" {
			return out[i].RelevanceScore > out[j].RelevanceScore
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memDocs) SearchSimilar(ctx context.Context, q knowledge.Query, _ pgvector.Vector) ([]*knowledge.Document, error) {
	m.mu.Lock()
	m.similarUsed = true
	m.mu.Unlock()
	return m.Find(ctx, q)
}

func (m *memDocs) byType(t knowledge.DocumentType) []*knowledge.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*knowledge.Document
	for _, d := range m.docs {
		if d.Type == t {
			out = append(out, d)
		}
	}
	return out
}

func matchesAny(d *knowledge.Document, values []string) bool {
	for _, v := range values {
		if d.Category == v {
			return true
		}
		for _, c := range d.Categories {
			if c == v {
				return true
			}
		}
	}
	return false
}

// scriptedChat answers the classifier prompt with classification and everything else with answer
type scriptedChat struct {
	mu             sync.Mutex
	classification string
	answer         string
	answerErr      error
	requests       []ai.ChatRequest
}

func (s *scriptedChat) Complete(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if req.MaxTokens == classifierMaxTokens {
		return &ai.ChatResponse{Content: s.classification}, nil
	}
	if s.answerErr != nil {
		return nil, s.answerErr
	}
	return &ai.ChatResponse{Content: s.answer}, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.GenerateEmbedding(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeLocker struct {
	acquired bool
	released bool
}

func (f *fakeLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	return f.acquired, nil
}

func (f *fakeLocker) ReleaseLock(context.Context, string) error {
	f.released = true
	return nil
}
