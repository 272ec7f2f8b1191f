package content

import (
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/badge"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/command"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
)

// document is the YAML form of one check definition.
type document struct {
	SchemaVersion int                   `yaml:"schema_version"`
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	Category      string                `yaml:"category"`
	Skills        []string              `yaml:"skills"`
	Requires      *requiresDocument     `yaml:"requires"`
	Steps         []stepDocument        `yaml:"steps"`
	Outcomes      map[string]outcomeDoc `yaml:"outcomes"`
	Execute       string                `yaml:"execute"`
}

type requiresDocument struct {
	Expr   string `yaml:"expr"`
	Reason string `yaml:"reason"`
}

type stepDocument struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Phase   string   `yaml:"phase"`
	Label   string   `yaml:"label"`
	Options []string `yaml:"options"`
	Filter  string   `yaml:"filter"`
	When    string   `yaml:"when"`
}

type outcomeDoc struct {
	Description string              `yaml:"description"`
	Modifiers   []modifier.Modifier `yaml:"modifiers"`
	Commands    []command.Spec      `yaml:"commands"`
	Badges      []badge.Badge       `yaml:"badges"`
}
