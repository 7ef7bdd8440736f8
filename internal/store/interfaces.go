// Package store defines the persistence contracts for permits, status
// history, ingestion runs and the source catalog, together with in-memory,
// JSON-file and Postgres implementations. The sync engine never knows which
// backing store it is talking to.
package store

import (
	"context"

	"github.com/rpattn/permitsync/internal/domain"
)

// PermitStore holds the canonical permit collection keyed by ingest key.
type PermitStore interface {
	List(ctx context.Context) ([]domain.Permit, error)
	Get(ctx context.Context, ingestKey string) (domain.Permit, bool, error)
	Insert(ctx context.Context, permit domain.Permit) error
	Update(ctx context.Context, permit domain.Permit) error
}

// StatusHistoryStore is the append-only status transition log. Append assigns
// the event id (max existing + 1) and returns the stored event.
type StatusHistoryStore interface {
	List(ctx context.Context) ([]domain.StatusChangeEvent, error)
	Append(ctx context.Context, event domain.StatusChangeEvent) (domain.StatusChangeEvent, error)
}

// RunStore is the ordered ingestion run log.
type RunStore interface {
	List(ctx context.Context) ([]domain.IngestionRun, error)
	Append(ctx context.Context, run domain.IngestionRun) error
}

// SourceCatalog is the externally managed source definition list. The engine
// only reads it; the admin surface also saves patched definitions.
type SourceCatalog interface {
	List(ctx context.Context) ([]domain.SourceDefinition, error)
	Get(ctx context.Context, key string) (domain.SourceDefinition, bool, error)
	Save(ctx context.Context, source domain.SourceDefinition) error
}
