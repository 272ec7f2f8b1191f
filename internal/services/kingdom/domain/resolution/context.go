// Package resolution holds the per-invocation check context threaded through
// every phase of the coordinator.
//
// A Context is created when a check begins and discarded when it ends. It is
// not safe for concurrent use; the coordinator runs one logical flow per
// check and interactive steps are its only suspension points.
package resolution

import (
	"maps"
	"math/rand"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/core/dice"
	"github.com/louisbranch/kingdom/internal/random"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
)

// Params seeds a new Context.
type Params struct {
	CheckID      string
	DefinitionID string
	Kingdom      realm.Kingdom
	Entities     realm.Store
	Skill        string
	Seed         int64
	Metadata     map[string]any
}

// PreparedEntry is a prepared command plus the declaration that produced it.
type PreparedEntry struct {
	Source   command.Spec
	Prepared *command.Prepared
}

// Data is the resolution bag: dice results, player choices and outputs of
// custom logic, all keyed by stable strings.
type Data struct {
	Dice    map[string]dice.FormulaResult `json:"dice,omitempty"`
	Choices map[string]string             `json:"choices,omitempty"`
	Outputs map[string]any                `json:"outputs,omitempty"`
}

// Context is the mutable record of one check invocation.
type Context struct {
	checkID      string
	definitionID string
	kingdom      realm.Kingdom
	entities     realm.Store
	skill        string
	seed         int64
	rng          *rand.Rand

	roll   check.Roll
	degree check.Degree

	metadata map[string]any
	data     Data

	prepared []PreparedEntry
	warnings []string

	cancelled          bool
	cancelReason       string
	postApplyCancelled bool
	closed             bool
}

// New creates a context. The kingdom snapshot is copied.
func New(params Params) *Context {
	metadata := maps.Clone(params.Metadata)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &Context{
		checkID:      params.CheckID,
		definitionID: params.DefinitionID,
		kingdom:      params.Kingdom.Clone(),
		entities:     params.Entities,
		skill:        strings.TrimSpace(params.Skill),
		seed:         params.Seed,
		rng:          random.NewSource(params.Seed),
		metadata:     metadata,
		data: Data{
			Dice:    make(map[string]dice.FormulaResult),
			Choices: make(map[string]string),
			Outputs: make(map[string]any),
		},
	}
}

// CheckID returns the invocation id.
func (c *Context) CheckID() string { return c.checkID }

// DefinitionID returns the id of the definition being resolved.
func (c *Context) DefinitionID() string { return c.definitionID }

// KingdomID returns the id of the kingdom under check.
func (c *Context) KingdomID() string { return c.kingdom.ID }

// Kingdom returns a copy of the kingdom snapshot.
func (c *Context) Kingdom() realm.Kingdom { return c.kingdom.Clone() }

// Realm returns the kingdom entity store.
func (c *Context) Realm() realm.Store { return c.entities }

// Skill returns the chosen skill.
func (c *Context) Skill() string { return c.skill }

// Seed returns the seed behind Rand.
func (c *Context) Seed() int64 { return c.seed }

// Rand returns the check's seeded random source.
func (c *Context) Rand() *rand.Rand { return c.rng }

// SetRoll records the roll and its degree of success.
func (c *Context) SetRoll(roll check.Roll, degree check.Degree) {
	c.roll = roll
	c.degree = degree
}

// Roll returns the recorded roll.
func (c *Context) Roll() check.Roll { return c.roll }

// Outcome returns the degree of success, DegreeUnspecified before the roll.
func (c *Context) Outcome() check.Degree { return c.degree }

// Metadata returns one metadata value.
func (c *Context) Metadata(key string) (any, bool) {
	value, ok := c.metadata[key]
	return value, ok
}

// MetadataString returns a metadata value as a string, "" when absent.
func (c *Context) MetadataString(key string) string {
	value, ok := c.metadata[key].(string)
	if !ok {
		return ""
	}
	return value
}

// SetMetadata writes one metadata value.
func (c *Context) SetMetadata(key string, value any) {
	c.metadata[key] = value
}

// MetadataMap returns a shallow copy of the metadata.
func (c *Context) MetadataMap() map[string]any {
	return maps.Clone(c.metadata)
}

// Dice returns a cached dice result.
func (c *Context) Dice(key string) (dice.FormulaResult, bool) {
	result, ok := c.data.Dice[key]
	return result, ok
}

// RollOnce rolls formula the first time key is seen and returns the cached
// result on every later call.
func (c *Context) RollOnce(key string, formula dice.Formula) dice.FormulaResult {
	if result, ok := c.data.Dice[key]; ok {
		return result
	}
	result := formula.Roll(c.rng)
	c.data.Dice[key] = result
	return result
}

// Choice returns a recorded player choice.
func (c *Context) Choice(key string) (string, bool) {
	value, ok := c.data.Choices[key]
	return value, ok
}

// SetChoice records a player choice.
func (c *Context) SetChoice(key, value string) {
	c.data.Choices[key] = strings.TrimSpace(value)
}

// Output returns a custom output value.
func (c *Context) Output(key string) (any, bool) {
	value, ok := c.data.Outputs[key]
	return value, ok
}

// SetOutput records a custom output value.
func (c *Context) SetOutput(key string, value any) {
	c.data.Outputs[key] = value
}

// Data returns a copy of the resolution bag.
func (c *Context) Data() Data {
	return Data{
		Dice:    maps.Clone(c.data.Dice),
		Choices: maps.Clone(c.data.Choices),
		Outputs: maps.Clone(c.data.Outputs),
	}
}

// AddPrepared takes ownership of a prepared command.
func (c *Context) AddPrepared(source command.Spec, prepared *command.Prepared) {
	if prepared == nil {
		return
	}
	c.prepared = append(c.prepared, PreparedEntry{Source: source, Prepared: prepared})
}

// Prepared returns the prepared commands in preparation order.
func (c *Context) Prepared() []PreparedEntry {
	return append([]PreparedEntry(nil), c.prepared...)
}

// AddWarning records a non-fatal note, such as a command with no target.
func (c *Context) AddWarning(warning string) {
	c.warnings = append(c.warnings, warning)
}

// Warnings returns recorded warnings.
func (c *Context) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// Cancel marks the check cancelled.
func (c *Context) Cancel(reason string) {
	c.cancelled = true
	c.cancelReason = reason
}

// Cancelled reports whether the check was cancelled.
func (c *Context) Cancelled() bool { return c.cancelled }

// CancelReason returns the reason given to Cancel.
func (c *Context) CancelReason() string { return c.cancelReason }

// SkipPostApply records that the player cancelled the post-apply follow-up.
func (c *Context) SkipPostApply(reason string) {
	c.postApplyCancelled = true
	c.cancelReason = reason
}

// PostApplyCancelled reports whether the post-apply phase was cancelled.
func (c *Context) PostApplyCancelled() bool { return c.postApplyCancelled }

// Close discards every uncommitted prepared command and returns how many
// were dropped. Close is idempotent.
func (c *Context) Close() int {
	if c.closed {
		return 0
	}
	c.closed = true
	discarded := 0
	for _, entry := range c.prepared {
		if entry.Prepared.Discard() {
			discarded++
		}
	}
	return discarded
}

// Closed reports whether Close has run.
func (c *Context) Closed() bool { return c.closed }

var _ command.Env = (*Context)(nil)
