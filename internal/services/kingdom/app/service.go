// Package app wires the kingdom check engine to its catalog, storage and
// metrics for the binaries and the MCP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/content"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/effects"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/interaction"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/modifier"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"github.com/louisbranch/kingdom/internal/services/kingdom/storage/sqlite"
	"github.com/rs/zerolog"
)

// Config holds the settings shared by every kingdom binary.
type Config struct {
	DBPath     string `env:"KINGDOM_DB_PATH" envDefault:"data/kingdom.db"`
	CatalogDir string `env:"KINGDOM_CATALOG_DIR"`
	TieRule    string `env:"KINGDOM_TIE_RULE" envDefault:"fail"`
}

// DefaultControlDC is the control DC of a newly founded kingdom.
const DefaultControlDC = 14

// StartingResources returns the treasury of a newly founded kingdom.
func StartingResources() map[string]int {
	return map[string]int{
		resource.Gold:   10,
		resource.Food:   8,
		resource.Lumber: 4,
		resource.Stone:  4,
		resource.Ore:    2,
	}
}

// Request names a check to run against a stored kingdom.
type Request struct {
	KingdomID    string
	DefinitionID string
	// CheckID is generated when blank.
	CheckID    string
	Skill      string
	Difficulty int
	Bonus      int
	Roll       *check.Roll
	Seed       *int64
	Metadata   map[string]any
	// Prompter answers interaction steps; nil cancels at the first prompt.
	Prompter interaction.Prompter
}

// Service runs catalog checks against SQLite kingdoms.
type Service struct {
	store       *sqlite.Store
	catalog     *definition.Catalog
	coordinator *engine.Coordinator
	metrics     *Metrics
	logger      zerolog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	coordinator []engine.Option
}

// WithCoordinatorOptions passes extra options to the check coordinator.
func WithCoordinatorOptions(opts ...engine.Option) Option {
	return func(o *options) { o.coordinator = append(o.coordinator, opts...) }
}

// New opens the store, loads the catalog and builds the coordinator.
func New(ctx context.Context, cfg Config, logger zerolog.Logger, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	tie, err := check.ParseTieRule(cfg.TieRule)
	if err != nil {
		return nil, err
	}

	registry, err := effects.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("register effects: %w", err)
	}
	modifiers := modifier.NewEngine(nil)
	loader, err := content.NewLoader(logger)
	if err != nil {
		return nil, err
	}
	catalog, err := loader.LoadCatalog(definition.Validator{Modifiers: modifiers, Commands: registry}, cfg.CatalogDir)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithPolicies(modifiers.Policies()))
	if err != nil {
		return nil, fmt.Errorf("open kingdom store: %w", err)
	}

	metrics := NewMetrics(func(definitionID string) string {
		def, err := catalog.Get(definitionID)
		if err != nil {
			return ""
		}
		return string(def.Category)
	})
	coordinatorOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTieRule(tie),
		engine.WithJournal(store),
		engine.WithObserver(metrics),
	}
	coordinatorOpts = append(coordinatorOpts, o.coordinator...)

	return &Service{
		store:       store,
		catalog:     catalog,
		coordinator: engine.NewCoordinator(registry, modifiers, coordinatorOpts...),
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Close closes the store.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	return s.store.Close()
}

// Metrics returns the service counters.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Store returns the kingdom store.
func (s *Service) Store() *sqlite.Store {
	return s.store
}

// Checks lists catalog definitions, optionally of one category.
func (s *Service) Checks(category string) ([]*definition.Definition, error) {
	if strings.TrimSpace(category) == "" {
		return s.catalog.List(""), nil
	}
	parsed, err := definition.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return s.catalog.List(parsed), nil
}

// Definition returns one catalog definition.
func (s *Service) Definition(id string) (*definition.Definition, error) {
	return s.catalog.Get(id)
}

// FoundKingdom creates a kingdom with the starting treasury and a capital
// settlement. It is a no-op for a kingdom that already exists.
func (s *Service) FoundKingdom(ctx context.Context, kingdomID, name string) error {
	err := s.store.CreateKingdom(ctx, realm.Kingdom{
		ID:        kingdomID,
		Name:      name,
		ControlDC: DefaultControlDC,
		Resources: StartingResources(),
	})
	if errors.Is(err, sqlite.ErrKingdomExists) {
		return nil
	}
	if err != nil {
		return err
	}
	kingdom, err := s.store.Kingdom(ctx, kingdomID)
	if err != nil {
		return err
	}
	capital := realm.Entity{ID: "capital", Kind: realm.KindSettlement, Name: kingdom.Name() + " Capital"}
	if err := kingdom.Entities().PutEntity(ctx, capital); err != nil {
		return err
	}
	s.logger.Info().Str("kingdom_id", kingdomID).Msg("kingdom founded")
	return nil
}

// Kingdom returns the current snapshot of a stored kingdom.
func (s *Service) Kingdom(ctx context.Context, kingdomID string) (realm.Kingdom, error) {
	kingdom, err := s.store.Kingdom(ctx, kingdomID)
	if err != nil {
		return realm.Kingdom{}, err
	}
	return kingdom.Snapshot(ctx)
}

// Shortfalls returns the debt records of a stored kingdom.
func (s *Service) Shortfalls(ctx context.Context, kingdomID string) ([]sqlite.ShortfallRecord, error) {
	kingdom, err := s.store.Kingdom(ctx, kingdomID)
	if err != nil {
		return nil, err
	}
	return kingdom.Shortfalls(ctx)
}

// Journal returns the latest finished checks of a stored kingdom.
func (s *Service) Journal(ctx context.Context, kingdomID string, limit int) ([]sqlite.JournalRecord, error) {
	return s.store.Journal(ctx, kingdomID, limit)
}

// Run executes a check through every state.
func (s *Service) Run(ctx context.Context, req Request) (engine.Result, error) {
	kingdom, def, err := s.resolve(ctx, req)
	if err != nil {
		return engine.Result{}, err
	}
	return s.coordinator.Run(ctx, kingdom, def, input(req))
}

// Preview runs a check up to its preview without writing anything.
func (s *Service) Preview(ctx context.Context, req Request) (engine.Result, error) {
	kingdom, def, err := s.resolve(ctx, req)
	if err != nil {
		return engine.Result{}, err
	}
	return s.coordinator.Preview(ctx, kingdom, def, input(req))
}

func (s *Service) resolve(ctx context.Context, req Request) (*sqlite.Kingdom, *definition.Definition, error) {
	def, err := s.catalog.Get(req.DefinitionID)
	if err != nil {
		return nil, nil, err
	}
	kingdom, err := s.store.Kingdom(ctx, req.KingdomID)
	if err != nil {
		return nil, nil, err
	}
	return kingdom, def, nil
}

func input(req Request) engine.Input {
	return engine.Input{
		CheckID:    req.CheckID,
		Skill:      req.Skill,
		Difficulty: req.Difficulty,
		Bonus:      req.Bonus,
		Roll:       req.Roll,
		Seed:       req.Seed,
		Metadata:   req.Metadata,
		Prompter:   req.Prompter,
	}
}
