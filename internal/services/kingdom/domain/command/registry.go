package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

var (
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = apperrors.New(apperrors.CodeContentCommandUnregistered, "command type is not registered")
	// ErrParamsInvalid indicates parameters the handler cannot use.
	ErrParamsInvalid = apperrors.New(apperrors.CodeContentCommandParams, "command params are invalid")
)

// Type identifies a command handler, e.g. "structure.damage".
type Type string

// Params are the declared parameters of one command in a definition.
type Params map[string]any

// String returns a trimmed string parameter.
func (p Params) String(key string) string {
	switch value := p[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

// Int returns an integer parameter or fallback when absent.
func (p Params) Int(key string, fallback int) (int, error) {
	switch value := p[key].(type) {
	case nil:
		return fallback, nil
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != float64(int(value)) {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrParamsInvalid, key)
		}
		return int(value), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", ErrParamsInvalid, key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer", ErrParamsInvalid, key)
	}
}

// Spec is one declared command of an outcome.
type Spec struct {
	Type   Type   `json:"type" yaml:"type"`
	Params Params `json:"params,omitempty" yaml:"params"`
}

// Env is the read-only view of a running check that handlers consult.
type Env interface {
	KingdomID() string
	Outcome() check.Degree
	Metadata(key string) (any, bool)
	// Rand is the check's seeded source; selections made with it in Prepare
	// are reproducible for a pinned seed.
	Rand() *rand.Rand
	Realm() realm.Store
}

// Handler prepares one command type.
//
// Prepare must not mutate shared state. It returns nil, nil when no valid
// target exists so the caller can warn instead of failing the check.
type Handler interface {
	Prepare(ctx context.Context, params Params, env Env) (*Prepared, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params Params, env Env) (*Prepared, error)

// Prepare calls f.
func (f HandlerFunc) Prepare(ctx context.Context, params Params, env Env) (*Prepared, error) {
	return f(ctx, params, env)
}

// ParamsValidator checks declared params at definition load time.
type ParamsValidator func(Params) error

// Definition registers a handler for a command type.
type Definition struct {
	Type           Type
	Summary        string
	Handler        Handler
	ValidateParams ParamsValidator
}

// Registry stores command handlers.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a command type.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = normalizeType(def.Type)
	if def.Type == "" {
		return ErrTypeRequired
	}
	if def.Handler == nil {
		return fmt.Errorf("command type %s: handler is required", def.Type)
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// Validate checks that spec names a registered type with acceptable params.
func (r *Registry) Validate(spec Spec) error {
	def, err := r.lookup(spec.Type)
	if err != nil {
		return err
	}
	if def.ValidateParams != nil {
		if err := def.ValidateParams(spec.Params); err != nil {
			return apperrors.WrapWithMetadata(
				apperrors.CodeContentCommandParams,
				fmt.Sprintf("command %s params", def.Type),
				map[string]string{"command_type": string(def.Type)},
				err,
			)
		}
	}
	return nil
}

// Prepare runs the prepare phase for spec. Unregistered types are content
// errors; a nil result means no valid target exists.
func (r *Registry) Prepare(ctx context.Context, spec Spec, env Env) (*Prepared, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(spec); err != nil {
		return nil, err
	}
	def, _ := r.lookup(spec.Type)
	prepared, err := def.Handler.Prepare(ctx, spec.Params, env)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", def.Type, err)
	}
	if prepared != nil && prepared.Type == "" {
		prepared.Type = def.Type
	}
	return prepared, nil
}

// Definition returns the registration for cmdType.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	def, err := r.lookup(cmdType)
	return def, err == nil
}

// ListDefinitions returns registrations sorted by type.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Type < definitions[j].Type
	})
	return definitions
}

func (r *Registry) lookup(cmdType Type) (Definition, error) {
	cmdType = normalizeType(cmdType)
	if cmdType == "" {
		return Definition{}, ErrTypeRequired
	}
	if r != nil {
		if def, ok := r.definitions[cmdType]; ok {
			return def, nil
		}
	}
	return Definition{}, apperrors.WrapWithMetadata(
		apperrors.CodeContentCommandUnregistered,
		fmt.Sprintf("command type %q is not registered", cmdType),
		map[string]string{"command_type": string(cmdType)},
		nil,
	)
}

func normalizeType(cmdType Type) Type {
	return Type(strings.ToLower(strings.TrimSpace(string(cmdType))))
}
