package realm

import (
	"context"
	"maps"
	"strings"
	"sync"
)

// MemoryStore is an in-process entity Store.
type MemoryStore struct {
	mu       sync.Mutex
	entities map[string]Entity
}

// NewMemoryStore returns a store seeded with entities.
func NewMemoryStore(entities ...Entity) *MemoryStore {
	store := &MemoryStore{entities: make(map[string]Entity, len(entities))}
	for _, entity := range entities {
		if normalized, err := entity.Normalize(); err == nil {
			store.entities[normalized.ID] = normalized
		}
	}
	return store
}

// Entities lists entities of kind ordered by id; an empty kind lists all.
func (s *MemoryStore) Entities(ctx context.Context, kind string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, 0, len(s.entities))
	for _, entity := range s.entities {
		if kind == "" || entity.Kind == kind {
			out = append(out, copyEntity(entity))
		}
	}
	SortByID(out)
	return out, nil
}

// Entity fetches one entity.
func (s *MemoryStore) Entity(ctx context.Context, id string) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return Entity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[strings.TrimSpace(id)]
	if !ok {
		return Entity{}, ErrEntityNotFound
	}
	return copyEntity(entity), nil
}

// PutEntity inserts or replaces an entity.
func (s *MemoryStore) PutEntity(ctx context.Context, entity Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := entity.Normalize()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[normalized.ID] = copyEntity(normalized)
	return nil
}

// PutEntities inserts or replaces every entity, or none when one is invalid.
func (s *MemoryStore) PutEntities(ctx context.Context, entities []Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized := make([]Entity, 0, len(entities))
	for _, entity := range entities {
		n, err := entity.Normalize()
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entity := range normalized {
		s.entities[entity.ID] = copyEntity(entity)
	}
	return nil
}

// DeleteEntity removes an entity.
func (s *MemoryStore) DeleteEntity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	if _, ok := s.entities[id]; !ok {
		return ErrEntityNotFound
	}
	delete(s.entities, id)
	return nil
}

func copyEntity(entity Entity) Entity {
	entity.Attrs = maps.Clone(entity.Attrs)
	return entity
}
