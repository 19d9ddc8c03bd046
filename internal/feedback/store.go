package feedback

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrStoreNotFound = errors.New("task not found in store")

// Store journals feedback task transitions. The journal is an
// operational record, not the source of truth; the queue's in-memory
// state drives execution.
type Store interface {
	SaveTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, taskID string) (Task, error)
	ListRecent(ctx context.Context, limit int) ([]Task, error)
	Close() error
}

// MemoryStore keeps the journal in process. Used when no DATABASE_URL
// is configured, and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]Task)}
}

func (s *MemoryStore) SaveTask(ctx context.Context, task Task) error {
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, ErrStoreNotFound
	}
	return task, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Task, error) {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.After(out[j].EnqueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
