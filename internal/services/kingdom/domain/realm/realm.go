// Package realm holds the opaque view of a kingdom the check engine reads:
// a resource snapshot plus entities identified only by id and kind.
package realm

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
)

var (
	// ErrEntityNotFound indicates a missing entity.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrEntityIDRequired indicates an entity without an id.
	ErrEntityIDRequired = errors.New("entity id is required")
	// ErrEntityKindRequired indicates an entity without a kind.
	ErrEntityKindRequired = errors.New("entity kind is required")
)

// Common entity kinds used by the built-in effects.
const (
	KindSettlement = "settlement"
	KindStructure  = "structure"
	KindArmy       = "army"
	KindHex        = "hex"
	KindEnemyForce = "enemy_force"
	KindFaction    = "faction"
)

// Entity is an opaque kingdom record. The engine never interprets Attrs
// beyond the keys a specific effect documents.
type Entity struct {
	ID    string            `json:"id"`
	Kind  string            `json:"kind"`
	Name  string            `json:"name,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Attr returns one attribute or "".
func (e Entity) Attr(key string) string {
	return e.Attrs[key]
}

// WithAttr returns a copy of e with key set to value.
func (e Entity) WithAttr(key, value string) Entity {
	out := e
	out.Attrs = maps.Clone(e.Attrs)
	if out.Attrs == nil {
		out.Attrs = make(map[string]string, 1)
	}
	out.Attrs[key] = value
	return out
}

// Normalize trims identifiers and validates required fields.
func (e Entity) Normalize() (Entity, error) {
	e.ID = strings.TrimSpace(e.ID)
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
	if e.ID == "" {
		return Entity{}, ErrEntityIDRequired
	}
	if e.Kind == "" {
		return Entity{}, ErrEntityKindRequired
	}
	return e, nil
}

// Reader reads kingdom entities.
type Reader interface {
	Entities(ctx context.Context, kind string) ([]Entity, error)
	Entity(ctx context.Context, id string) (Entity, error)
}

// Store reads and writes kingdom entities.
type Store interface {
	Reader
	PutEntity(ctx context.Context, entity Entity) error
	// PutEntities writes every entity or none of them.
	PutEntities(ctx context.Context, entities []Entity) error
	DeleteEntity(ctx context.Context, id string) error
}

// Kingdom is the read-only snapshot a check is evaluated against.
type Kingdom struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Level     int            `json:"level"`
	ControlDC int            `json:"control_dc"`
	Resources map[string]int `json:"resources"`
	// Counts holds the number of entities per kind.
	Counts map[string]int `json:"counts"`
}

// Resource returns one resource value, zero when absent.
func (k Kingdom) Resource(name string) int {
	return k.Resources[strings.ToLower(strings.TrimSpace(name))]
}

// Count returns the number of entities of kind.
func (k Kingdom) Count(kind string) int {
	return k.Counts[strings.ToLower(strings.TrimSpace(kind))]
}

// Clone returns a deep copy so callers cannot mutate a shared snapshot.
func (k Kingdom) Clone() Kingdom {
	k.Resources = maps.Clone(k.Resources)
	k.Counts = maps.Clone(k.Counts)
	return k
}

// CountKinds tallies entities per kind.
func CountKinds(entities []Entity) map[string]int {
	counts := make(map[string]int)
	for _, entity := range entities {
		counts[entity.Kind]++
	}
	return counts
}

// SortByID orders entities by id so random selection over them is
// reproducible from a seed regardless of storage order.
func SortByID(entities []Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}
