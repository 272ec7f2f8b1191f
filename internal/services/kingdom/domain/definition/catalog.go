package definition

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
)

// ErrNotFound indicates an unknown definition id.
var ErrNotFound = apperrors.New(apperrors.CodeCheckDefinitionNotFound, "check definition not found")

// Catalog holds validated definitions by id.
type Catalog struct {
	validator Validator

	mu          sync.RWMutex
	definitions map[string]*Definition
}

// NewCatalog returns an empty catalog validating with v.
func NewCatalog(v Validator) *Catalog {
	return &Catalog{validator: v, definitions: make(map[string]*Definition)}
}

// Register validates def and adds it. A second definition with the same id
// is rejected rather than replacing the first.
func (c *Catalog) Register(def *Definition) error {
	if err := c.validator.Validate(def); err != nil {
		return err
	}
	id := strings.TrimSpace(def.ID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.definitions[id]; exists {
		return apperrors.WithMetadata(
			apperrors.CodeContentDefinitionDuplicate,
			fmt.Sprintf("definition %q is already registered", id),
			map[string]string{"definition_id": id},
		)
	}
	c.definitions[id] = def
	return nil
}

// Get returns the definition with id.
func (c *Catalog) Get(id string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.definitions[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return def, nil
}

// List returns definitions sorted by id, optionally filtered by category.
func (c *Catalog) List(category Category) []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.definitions))
	for _, def := range c.definitions {
		if category == "" || def.Category == category {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.definitions)
}
