package domain

import (
	"context"

	"github.com/louisbranch/kingdom/internal/services/kingdom/app"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/storage/sqlite"
)

// Kingdoms is the kingdom surface the tools call into.
type Kingdoms interface {
	Checks(category string) ([]*definition.Definition, error)
	Run(ctx context.Context, req app.Request) (engine.Result, error)
	Preview(ctx context.Context, req app.Request) (engine.Result, error)
	FoundKingdom(ctx context.Context, kingdomID, name string) error
	Kingdom(ctx context.Context, kingdomID string) (realm.Kingdom, error)
	Shortfalls(ctx context.Context, kingdomID string) ([]sqlite.ShortfallRecord, error)
	Journal(ctx context.Context, kingdomID string, limit int) ([]sqlite.JournalRecord, error)
}

var _ Kingdoms = (*app.Service)(nil)
