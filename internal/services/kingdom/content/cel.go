package content

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
)

// Predicates compiles the boolean expressions used by requirements and step
// conditions.
//
// Expressions see four variables:
//
//	kingdom   map: id, name, level, control_dc, resources, counts
//	metadata  map of step answers collected so far
//	outcome   degree of success key, "unspecified" before the roll
//	skill     the skill the check is attempted with
type Predicates struct {
	env *cel.Env
}

// NewPredicates builds the expression environment.
func NewPredicates() (*Predicates, error) {
	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("kingdom", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("outcome", cel.StringType),
		cel.Variable("skill", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create expression environment: %w", err)
	}
	return &Predicates{env: env}, nil
}

// Predicate is one compiled expression.
type Predicate struct {
	source  string
	program cel.Program
}

// Compile type-checks expr and rejects anything that is not boolean.
func (p *Predicates) Compile(expr string) (*Predicate, error) {
	source := strings.TrimSpace(expr)
	if source == "" {
		return nil, expressionError(expr, fmt.Errorf("expression is empty"))
	}
	ast, issues := p.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, expressionError(source, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, expressionError(source, fmt.Errorf("expression yields %s, want bool", ast.OutputType()))
	}
	program, err := p.env.Program(ast)
	if err != nil {
		return nil, expressionError(source, err)
	}
	return &Predicate{source: source, program: program}, nil
}

// String returns the expression source.
func (p *Predicate) String() string {
	return p.source
}

// Eval evaluates the predicate against vars.
func (p *Predicate) Eval(vars map[string]any) (bool, error) {
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, expressionError(p.source, err)
	}
	value, ok := out.Value().(bool)
	if !ok {
		return false, expressionError(p.source, fmt.Errorf("expression yielded %T", out.Value()))
	}
	return value, nil
}

// KingdomVars exposes a kingdom snapshot to expressions. Every declared
// resource and common entity kind is present so lookups never miss.
func KingdomVars(k realm.Kingdom) map[string]any {
	names := resource.DefaultPolicies().Names()
	resources := make(map[string]any, len(names))
	for _, name := range names {
		resources[name] = int64(k.Resource(name))
	}
	for name, value := range k.Resources {
		resources[resource.Normalize(name)] = int64(value)
	}
	counts := map[string]any{}
	for _, kind := range []string{realm.KindSettlement, realm.KindStructure, realm.KindArmy, realm.KindHex, realm.KindEnemyForce, realm.KindFaction} {
		counts[kind] = int64(0)
	}
	for kind, count := range k.Counts {
		counts[kind] = int64(count)
	}
	return map[string]any{
		"id":         k.ID,
		"name":       k.Name,
		"level":      int64(k.Level),
		"control_dc": int64(k.ControlDC),
		"resources":  resources,
		"counts":     counts,
	}
}

func requirementVars(k realm.Kingdom) map[string]any {
	return map[string]any{
		"kingdom":  KingdomVars(k),
		"metadata": map[string]any{},
		"outcome":  "unspecified",
		"skill":    "",
	}
}

func contextVars(cc *resolution.Context) map[string]any {
	metadata := cc.MetadataMap()
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		"kingdom":  KingdomVars(cc.Kingdom()),
		"metadata": metadata,
		"outcome":  cc.Outcome().String(),
		"skill":    cc.Skill(),
	}
}

func expressionError(expr string, err error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeContentExpressionInvalid,
		"expression "+expr,
		map[string]string{"expression": expr},
		err,
	)
}
