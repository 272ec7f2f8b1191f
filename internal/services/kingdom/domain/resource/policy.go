package resource

import (
	"sort"
	"strings"
)

// Well-known kingdom resources.
const (
	Gold     = "gold"
	Food     = "food"
	Lumber   = "lumber"
	Stone    = "stone"
	Ore      = "ore"
	Luxuries = "luxuries"
	Unrest   = "unrest"
	Fame     = "fame"
	Infamy   = "infamy"
)

// Policy bounds one resource.
type Policy struct {
	// Floor is the lowest value the resource may hold.
	Floor int
	// Ceiling caps the resource; zero means unbounded.
	Ceiling int
	// ShortfallToUnrest converts unpaid deductions into unrest.
	ShortfallToUnrest bool
}

// Policies maps resource names to their policy. A resource absent from the
// map is unknown and rejected by Plan.
type Policies map[string]Policy

// DefaultPolicies returns the standard kingdom resource set.
func DefaultPolicies() Policies {
	payable := Policy{Floor: 0, ShortfallToUnrest: true}
	return Policies{
		Gold:     payable,
		Food:     payable,
		Lumber:   payable,
		Stone:    payable,
		Ore:      payable,
		Luxuries: payable,
		Unrest:   {Floor: 0},
		Fame:     {Floor: 0, Ceiling: 3},
		Infamy:   {Floor: 0, Ceiling: 3},
	}
}

// Known reports whether name is a declared resource.
func (p Policies) Known(name string) bool {
	_, ok := p[Normalize(name)]
	return ok
}

// Names returns the declared resources in sorted order.
func (p Policies) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize canonicalizes a resource name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
