package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpattn/permitsync/internal/domain"
)

// MemoryPermitStore keeps permits in insertion order with a key index. The
// mutex serializes the merge step so the caller may parallelize reads.
type MemoryPermitStore struct {
	mu      sync.Mutex
	permits []domain.Permit
	index   map[string]int
}

func NewMemoryPermitStore(seed []domain.Permit) *MemoryPermitStore {
	s := &MemoryPermitStore{index: make(map[string]int, len(seed))}
	for _, p := range seed {
		s.index[p.IngestKey] = len(s.permits)
		s.permits = append(s.permits, p)
	}
	return s
}

func (s *MemoryPermitStore) List(ctx context.Context) ([]domain.Permit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Permit, len(s.permits))
	copy(out, s.permits)
	return out, nil
}

func (s *MemoryPermitStore) Get(ctx context.Context, ingestKey string) (domain.Permit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.index[ingestKey]; ok {
		return s.permits[idx], true, nil
	}
	return domain.Permit{}, false, nil
}

func (s *MemoryPermitStore) Insert(ctx context.Context, permit domain.Permit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[permit.IngestKey]; exists {
		return fmt.Errorf("permit %s already exists", permit.IngestKey)
	}
	s.index[permit.IngestKey] = len(s.permits)
	s.permits = append(s.permits, permit)
	return nil
}

func (s *MemoryPermitStore) Update(ctx context.Context, permit domain.Permit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, exists := s.index[permit.IngestKey]
	if !exists {
		return fmt.Errorf("permit %s not found", permit.IngestKey)
	}
	s.permits[idx] = permit
	return nil
}

// MemoryStatusHistoryStore is the in-memory append-only event log.
type MemoryStatusHistoryStore struct {
	mu     sync.Mutex
	events []domain.StatusChangeEvent
}

func NewMemoryStatusHistoryStore(seed []domain.StatusChangeEvent) *MemoryStatusHistoryStore {
	return &MemoryStatusHistoryStore{events: append([]domain.StatusChangeEvent(nil), seed...)}
}

func (s *MemoryStatusHistoryStore) List(ctx context.Context) ([]domain.StatusChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StatusChangeEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStatusHistoryStore) Append(ctx context.Context, event domain.StatusChangeEvent) (domain.StatusChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID int64
	for _, existing := range s.events {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	event.ID = maxID + 1
	s.events = append(s.events, event)
	return event, nil
}

// MemoryRunStore is the in-memory ordered run log.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs []domain.IngestionRun
}

func NewMemoryRunStore(seed []domain.IngestionRun) *MemoryRunStore {
	return &MemoryRunStore{runs: append([]domain.IngestionRun(nil), seed...)}
}

func (s *MemoryRunStore) List(ctx context.Context) ([]domain.IngestionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.IngestionRun, len(s.runs))
	copy(out, s.runs)
	return out, nil
}

func (s *MemoryRunStore) Append(ctx context.Context, run domain.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// MemoryCatalog is a fixed in-memory source catalog, mainly for tests.
type MemoryCatalog struct {
	mu      sync.Mutex
	sources []domain.SourceDefinition
}

func NewMemoryCatalog(sources []domain.SourceDefinition) *MemoryCatalog {
	return &MemoryCatalog{sources: append([]domain.SourceDefinition(nil), sources...)}
}

func (c *MemoryCatalog) List(ctx context.Context) ([]domain.SourceDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.SourceDefinition, len(c.sources))
	copy(out, c.sources)
	return out, nil
}

func (c *MemoryCatalog) Get(ctx context.Context, key string) (domain.SourceDefinition, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, source := range c.sources {
		if source.Key == key {
			return source, true, nil
		}
	}
	return domain.SourceDefinition{}, false, nil
}

func (c *MemoryCatalog) Save(ctx context.Context, source domain.SourceDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sources {
		if c.sources[i].Key == source.Key {
			c.sources[i] = source
			return nil
		}
	}
	c.sources = append(c.sources, source)
	return nil
}
