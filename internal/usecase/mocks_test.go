// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sort"
	"sync"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/domain/ports/repository"
)

// memPostRepo is a small in-memory implementation with the same
// compare-and-swap semantics as the SQL stores.
type memPostRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Post
	afterGet func() // called after every GetByID, outside the lock
	// updateErr, when set, may fail an Update before it touches the store.
	updateErr func(expected model.PostStatus) error
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{store: make(map[string]*model.Post)}
}

func (m *memPostRepo) Create(ctx context.Context, tx repository.Tx, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[post.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.store[post.ID] = post.Clone()
	return nil
}

func (m *memPostRepo) GetByID(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
	m.mu.RLock()
	p, ok := m.store[id]
	if ok {
		p = p.Clone()
	}
	m.mu.RUnlock()
	if m.afterGet != nil {
		m.afterGet()
	}
	if !ok || p.OwnerID != ownerID || p.Status == model.PostStatusDeleted {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPostRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64, limit int) ([]*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Post
	for _, p := range m.store {
		if p.OwnerID == ownerID && p.Status != model.PostStatusDeleted {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPostRepo) Update(ctx context.Context, tx repository.Tx, post *model.Post, expected model.PostStatus) error {
	if m.updateErr != nil {
		if err := m.updateErr(expected); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[post.ID]
	if !ok || cur.OwnerID != post.OwnerID {
		return domain.ErrNotFound
	}
	if cur.Status != expected || cur.Version != post.Version {
		return domain.ErrConflict
	}
	post.Version++
	m.store[post.ID] = post.Clone()
	return nil
}

func (m *memPostRepo) raw(id string) *model.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id].Clone()
}

// stubGenerator is a ContentGenerator driven by GenerateFunc.
type stubGenerator struct {
	mu           sync.Mutex
	calls        int
	requests     []adapter.GenerationRequest
	GenerateFunc func(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error)
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.GenerateFunc(ctx, req)
}

func (s *stubGenerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubCoordinator is a PublishCoordinator driven by PublishFunc.
type stubCoordinator struct {
	mu          sync.Mutex
	calls       int
	configured  []model.Platform
	PublishFunc func(ctx context.Context, content model.Content, platforms []model.Platform) map[model.Platform]model.PublicationResult
}

func (s *stubCoordinator) PublishToAll(ctx context.Context, content model.Content, platforms []model.Platform) map[model.Platform]model.PublicationResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.PublishFunc(ctx, content, platforms)
}

func (s *stubCoordinator) Configured() []model.Platform { return s.configured }

func (s *stubCoordinator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
