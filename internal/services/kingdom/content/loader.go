// Package content loads check definitions from YAML documents.
//
// A built-in catalog is embedded in the binary. A directory of documents can
// be layered on top; a document there replaces the built-in definition with
// the same id.
package content

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	apperrors "github.com/louisbranch/kingdom/internal/platform/errors"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resolution"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var builtin embed.FS

// Builtin returns the embedded catalog documents.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtin, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

// Loader turns YAML documents into definitions.
type Loader struct {
	predicates *Predicates
	logger     zerolog.Logger
}

// NewLoader returns a loader logging to logger.
func NewLoader(logger zerolog.Logger) (*Loader, error) {
	predicates, err := NewPredicates()
	if err != nil {
		return nil, err
	}
	return &Loader{predicates: predicates, logger: logger}, nil
}

// Parse decodes one document. Expressions and scripts are compiled here so
// a broken document fails at load time rather than mid-check.
func (l *Loader) Parse(source string, data []byte) (*definition.Definition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidDocument(source, "", fmt.Errorf("document is empty"))
		}
		return nil, invalidDocument(source, "", err)
	}

	category, err := definition.ParseCategory(doc.Category)
	if err != nil {
		return nil, invalidDocument(source, doc.ID, err)
	}
	def := &definition.Definition{
		SchemaVersion: doc.SchemaVersion,
		ID:            strings.TrimSpace(doc.ID),
		Name:          strings.TrimSpace(doc.Name),
		Category:      category,
		Skills:        doc.Skills,
		Outcomes:      make(map[check.Degree]definition.Outcome, len(doc.Outcomes)),
	}
	if def.Name == "" {
		def.Name = def.ID
	}

	if doc.Requires != nil {
		requirement, err := l.requirement(*doc.Requires)
		if err != nil {
			return nil, invalidDocument(source, def.ID, err)
		}
		def.Requirements = requirement
	}

	for _, stepDoc := range doc.Steps {
		step, err := l.step(stepDoc)
		if err != nil {
			return nil, invalidDocument(source, def.ID, err)
		}
		def.Steps = append(def.Steps, step)
	}

	for key, outcomeDoc := range doc.Outcomes {
		degree, err := check.ParseDegree(key)
		if err != nil {
			return nil, invalidDocument(source, def.ID, err)
		}
		if _, dup := def.Outcomes[degree]; dup {
			return nil, invalidDocument(source, def.ID, fmt.Errorf("outcome %s declared twice", degree))
		}
		def.Outcomes[degree] = definition.Outcome{
			Description: strings.TrimSpace(outcomeDoc.Description),
			Modifiers:   outcomeDoc.Modifiers,
			Commands:    outcomeDoc.Commands,
			Badges:      outcomeDoc.Badges,
		}
	}

	if strings.TrimSpace(doc.Execute) != "" {
		script, err := CompileScript(def.ID, doc.Execute)
		if err != nil {
			return nil, err
		}
		def.Execute = script.Func()
	}
	return def, nil
}

func (l *Loader) requirement(doc requiresDocument) (definition.RequirementFunc, error) {
	predicate, err := l.predicates.Compile(doc.Expr)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(doc.Reason)
	if reason == "" {
		reason = "requirement not met: " + predicate.String()
	}
	return func(kingdom realm.Kingdom) (definition.Requirement, error) {
		met, err := predicate.Eval(requirementVars(kingdom))
		if err != nil {
			return definition.Requirement{}, err
		}
		if !met {
			return definition.Unmet(reason), nil
		}
		return definition.Met(), nil
	}, nil
}

func (l *Loader) step(doc stepDocument) (interaction.Step, error) {
	stepType, err := interaction.ParseType(doc.Type)
	if err != nil {
		return interaction.Step{}, err
	}
	phase, err := interaction.ParsePhase(doc.Phase)
	if err != nil {
		return interaction.Step{}, err
	}
	step := interaction.Step{
		ID:      strings.TrimSpace(doc.ID),
		Type:    stepType,
		Phase:   phase,
		Label:   doc.Label,
		Options: doc.Options,
		Filter:  doc.Filter,
	}
	if strings.TrimSpace(doc.When) != "" {
		predicate, err := l.predicates.Compile(doc.When)
		if err != nil {
			return interaction.Step{}, err
		}
		step.Condition = func(cc *resolution.Context) (bool, error) {
			return predicate.Eval(contextVars(cc))
		}
	}
	return step, nil
}

// LoadFS parses every *.yaml and *.yml document at the root of fsys, sorted
// by file name. Two documents with the same id are rejected.
func (l *Loader) LoadFS(fsys fs.FS) ([]*definition.Definition, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch path.Ext(entry.Name()) {
		case ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	defs := make([]*definition.Definition, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		def, err := l.Parse(name, data)
		if err != nil {
			return nil, err
		}
		if previous, dup := seen[def.ID]; dup {
			return nil, apperrors.WithMetadata(
				apperrors.CodeContentDefinitionDuplicate,
				fmt.Sprintf("definition %q declared in %s and %s", def.ID, previous, name),
				map[string]string{"definition_id": def.ID},
			)
		}
		seen[def.ID] = name
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadCatalog registers the built-in definitions, replaced by those found in
// dir when dir is not empty, into a catalog validated by validator.
func (l *Loader) LoadCatalog(validator definition.Validator, dir string) (*definition.Catalog, error) {
	defs, err := l.LoadFS(Builtin())
	if err != nil {
		return nil, fmt.Errorf("load built-in catalog: %w", err)
	}
	byID := make(map[string]*definition.Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	if dir = strings.TrimSpace(dir); dir != "" {
		overrides, err := l.LoadFS(os.DirFS(dir))
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", dir, err)
		}
		for _, def := range overrides {
			if _, replaced := byID[def.ID]; replaced {
				l.logger.Debug().Str("definition_id", def.ID).Str("dir", dir).Msg("catalog override")
			}
			byID[def.ID] = def
		}
	}

	catalog := definition.NewCatalog(validator)
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := catalog.Register(byID[id]); err != nil {
			return nil, err
		}
	}
	l.logger.Info().Int("definitions", catalog.Len()).Str("dir", dir).Msg("catalog loaded")
	return catalog, nil
}

func invalidDocument(source, id string, err error) error {
	if apperrors.IsContent(err) {
		return fmt.Errorf("%s: %w", source, err)
	}
	return apperrors.WrapWithMetadata(
		apperrors.CodeContentDefinitionInvalid,
		source,
		map[string]string{"source": source, "definition_id": id},
		err,
	)
}
