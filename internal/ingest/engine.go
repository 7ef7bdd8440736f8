// Package ingest orchestrates permit synchronization: read raw records from a
// source, filter and normalize them, merge against the permit store, and log
// status transitions and run statistics.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/normalize"
	"github.com/rpattn/permitsync/internal/reader"
	"github.com/rpattn/permitsync/internal/store"
	"github.com/rpattn/permitsync/internal/transform"
)

// maxErrorMessages caps the per-source error message list in run stats.
const maxErrorMessages = 20

// Engine processes sources sequentially against the injected stores. The
// merge against the permit store is serialized; only configuration and
// selection errors escape as errors, everything per-record or per-source is
// folded into stats.
type Engine struct {
	Permits store.PermitStore
	History store.StatusHistoryStore
	Runs    store.RunStore

	// BaseDir anchors relative local_file paths.
	BaseDir string
	// Client is the injectable HTTP client for network readers.
	Client reader.Doer
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Options selects which sources a run covers.
type Options struct {
	// SourceKey restricts the run to one source, regardless of its enabled
	// flag.
	SourceKey string
	// IncludeDisabled also selects disabled sources when no SourceKey is
	// given.
	IncludeDisabled bool
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// SyncSources runs one ingestion pass over the selected sources and appends
// the completed run to the run log. An empty selection is the only error;
// every per-source failure is isolated into that source's result entry.
func (e *Engine) SyncSources(ctx context.Context, sources []domain.SourceDefinition, opts Options) (domain.IngestionRun, error) {
	selected, err := selectSources(sources, opts)
	if err != nil {
		return domain.IngestionRun{}, err
	}

	started := e.now()
	run := domain.IngestionRun{
		ID:            domain.NewRunID(started),
		StartedAt:     started,
		SourceResults: []domain.SourceSyncStats{},
	}
	for _, source := range selected {
		run.SourceKeys = append(run.SourceKeys, source.Key)
	}

	for _, source := range selected {
		stats, err := e.syncSource(ctx, source, run.ID)
		if err != nil {
			log.Printf("[FAIL] %s: %v", source.Key, err)
			stats = domain.SourceSyncStats{
				SourceKey:     source.Key,
				SourceName:    source.Name,
				Errors:        1,
				ErrorMessages: []string{err.Error()},
			}
		} else {
			log.Printf("[SYNC] %s: fetched=%d inserted=%d updated=%d status_changed=%d skipped=%d errors=%d",
				source.Key, stats.Fetched, stats.Inserted, stats.Updated,
				stats.StatusChanged, stats.Skipped, stats.Errors)
		}
		run.Fold(stats)
	}

	completed := e.now()
	run.CompletedAt = &completed

	if err := e.Runs.Append(ctx, run); err != nil {
		return run, fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return run, nil
}

// selectSources resolves the run's source set. A named key matches regardless
// of the enabled flag; otherwise disabled sources are filtered out unless
// explicitly included.
func selectSources(sources []domain.SourceDefinition, opts Options) ([]domain.SourceDefinition, error) {
	if opts.SourceKey != "" {
		for _, source := range sources {
			if source.Key == opts.SourceKey {
				return []domain.SourceDefinition{source}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", domain.ErrSourceNotFound, opts.SourceKey)
	}

	var selected []domain.SourceDefinition
	for _, source := range sources {
		if opts.IncludeDisabled || source.IsEnabled() {
			selected = append(selected, source)
		}
	}
	if len(selected) == 0 {
		return nil, domain.ErrNoEnabledSources
	}
	return selected, nil
}

// syncSource processes exactly one source. A returned error means the source
// could not be read at all (configuration or transport); per-record failures
// are counted in stats and never abort the source.
func (e *Engine) syncSource(ctx context.Context, source domain.SourceDefinition, runID string) (domain.SourceSyncStats, error) {
	stats := domain.SourceSyncStats{SourceKey: source.Key, SourceName: source.Name}

	transformer := transform.ForSource(source)
	rd, err := reader.ForSource(source, e.BaseDir, e.Client)
	if err != nil {
		return stats, err
	}

	records, err := rd.Read(ctx, source)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(records)

	existing, err := e.Permits.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load permit store: %w", err)
	}
	index := make(map[string]domain.Permit, len(existing))
	for _, permit := range existing {
		index[permit.IngestKey] = permit
	}

	// seen rejects intra-batch duplicates from a single source feed.
	seen := make(map[string]struct{}, len(records))
	now := e.now()

	for _, raw := range records {
		if !normalize.ShouldInclude(raw, source) {
			stats.Skipped++
			continue
		}

		candidate := transformer.Transform(raw, source)
		if missing := normalize.MissingRequired(candidate, source); len(missing) > 0 {
			stats.Skipped++
			continue
		}

		permit := normalize.Permit(candidate, source, now)
		if _, dup := seen[permit.IngestKey]; dup {
			stats.Skipped++
			continue
		}
		seen[permit.IngestKey] = struct{}{}

		previous, known := index[permit.IngestKey]
		if !known {
			if err := e.Permits.Insert(ctx, permit); err != nil {
				recordError(&stats, err)
				continue
			}
			index[permit.IngestKey] = permit
			stats.Inserted++
			continue
		}

		// Identity-era fields survive the upsert; everything else refreshes.
		permit.FirstSeenAt = previous.FirstSeenAt
		permit.CreatedAt = previous.CreatedAt
		if err := e.Permits.Update(ctx, permit); err != nil {
			recordError(&stats, err)
			continue
		}
		index[permit.IngestKey] = permit
		stats.Updated++

		if previous.Status != permit.Status {
			event := domain.StatusChangeEvent{
				PermitKey:      permit.IngestKey,
				SourceKey:      source.Key,
				PreviousStatus: previous.Status,
				NewStatus:      permit.Status,
				ChangedAt:      now,
				RunID:          runID,
			}
			if _, err := e.History.Append(ctx, event); err != nil {
				recordError(&stats, err)
				continue
			}
			stats.StatusChanged++
		}
	}

	return stats, nil
}

func recordError(stats *domain.SourceSyncStats, err error) {
	stats.Errors++
	if len(stats.ErrorMessages) < maxErrorMessages {
		stats.ErrorMessages = append(stats.ErrorMessages, err.Error())
	}
}
