package staff

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	therapists map[uuid.UUID]*Therapist
	gets       int
}

func newMockRepo() *mockRepo {
	return &mockRepo{therapists: make(map[uuid.UUID]*Therapist)}
}

func (m *mockRepo) Create(_ context.Context, t *Therapist) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	cp := *t
	m.therapists[t.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Therapist, error) {
	m.gets++
	t, ok := m.therapists[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, t *Therapist) error {
	if _, ok := m.therapists[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.therapists[t.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*Therapist, int, error) {
	var result []*Therapist
	for _, t := range m.therapists {
		if activeOnly && !t.Active {
			continue
		}
		result = append(result, t)
	}
	return result, len(result), nil
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	svc, err := NewService(repo, 8)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)
	th := &Therapist{Name: "  Dr. Ana  ", Active: true}
	if err := svc.Create(context.Background(), th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if th.Name != "Dr. Ana" {
		t.Errorf("expected trimmed name, got %q", th.Name)
	}
}

func TestCreate_NameRequired(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Create(context.Background(), &Therapist{Name: "  "}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestLookup_Caches(t *testing.T) {
	svc, repo := newTestService(t)
	th := &Therapist{Name: "Dr. Ana"}
	svc.Create(context.Background(), th)

	for i := 0; i < 3; i++ {
		got, err := svc.Lookup(context.Background(), th.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != "Dr. Ana" {
			t.Errorf("expected Dr. Ana, got %q", got.Name)
		}
	}
	if repo.gets != 1 {
		t.Errorf("expected 1 repository read, got %d", repo.gets)
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	svc, _ := newTestService(t)
	th := &Therapist{Name: "Dr. Ana"}
	svc.Create(context.Background(), th)

	first, _ := svc.Lookup(context.Background(), th.ID)
	first.Name = "mutated"
	second, _ := svc.Lookup(context.Background(), th.ID)
	if second.Name != "Dr. Ana" {
		t.Errorf("cache entry was mutated: %q", second.Name)
	}
}

func TestLookup_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Lookup(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	svc, repo := newTestService(t)
	th := &Therapist{Name: "Dr. Ana"}
	svc.Create(context.Background(), th)
	svc.Lookup(context.Background(), th.ID)

	th.Name = "Dr. Ana Reyes"
	if err := svc.Update(context.Background(), th); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Lookup(context.Background(), th.ID)
	if got.Name != "Dr. Ana Reyes" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if repo.gets != 2 {
		t.Errorf("expected cache miss after update, got %d reads", repo.gets)
	}
}
