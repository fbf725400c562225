package staff

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Service manages therapist records. Lookups by id go through an LRU cache
// since every transfer and conflict check resolves at least one therapist.
type Service struct {
	repo Repository

	mu    sync.RWMutex
	cache *lru.Cache[uuid.UUID, Therapist]
}

func NewService(repo Repository, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[uuid.UUID, Therapist](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create therapist cache: %w", err)
	}
	return &Service{repo: repo, cache: cache}, nil
}

func (s *Service) Create(ctx context.Context, t *Therapist) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.Create(ctx, t)
}

// Lookup returns a copy of the therapist, serving from cache when possible.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	s.mu.RLock()
	cached, ok := s.cache.Get(id)
	s.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache.Add(id, *t)
	s.mu.Unlock()
	out := *t
	return &out, nil
}

func (s *Service) Update(ctx context.Context, t *Therapist) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	s.Invalidate(t.ID)
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Therapist, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}

// Invalidate drops a cached therapist.
func (s *Service) Invalidate(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}
