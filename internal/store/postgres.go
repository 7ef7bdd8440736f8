package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/permitsync/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPermitStore persists permits in the permits table, keyed by
// ingest_key.
type PostgresPermitStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPermitStore(pool *pgxpool.Pool) *PostgresPermitStore {
	return &PostgresPermitStore{pool: pool}
}

const permitColumns = `ingest_key, source_key, external_id, project_title, location, country,
	activity, status, category, notes, source_url, source_name,
	first_seen_at, last_seen_at, created_at, updated_at`

func (s *PostgresPermitStore) List(ctx context.Context) ([]domain.Permit, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+permitColumns+` FROM permits ORDER BY first_seen_at, ingest_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permits: %w", err)
	}
	defer rows.Close()

	permits := []domain.Permit{}
	for rows.Next() {
		permit, err := scanPermit(rows)
		if err != nil {
			return nil, err
		}
		permits = append(permits, permit)
	}
	return permits, rows.Err()
}

func (s *PostgresPermitStore) Get(ctx context.Context, ingestKey string) (domain.Permit, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+permitColumns+` FROM permits WHERE ingest_key = $1`, ingestKey)
	permit, err := scanPermit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Permit{}, false, nil
		}
		return domain.Permit{}, false, err
	}
	return permit, true, nil
}

func (s *PostgresPermitStore) Insert(ctx context.Context, permit domain.Permit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO permits (`+permitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		permit.IngestKey, permit.SourceKey, nullable(permit.ExternalID), permit.ProjectTitle,
		permit.Location, permit.Country, permit.Activity, permit.Status,
		nullable(permit.Category), nullable(permit.Notes), nullable(permit.SourceURL),
		nullable(permit.SourceName), permit.FirstSeenAt, permit.LastSeenAt,
		permit.CreatedAt, permit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert permit %s: %w", permit.IngestKey, err)
	}
	return nil
}

func (s *PostgresPermitStore) Update(ctx context.Context, permit domain.Permit) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE permits SET
			source_key = $2, external_id = $3, project_title = $4, location = $5,
			country = $6, activity = $7, status = $8, category = $9, notes = $10,
			source_url = $11, source_name = $12, last_seen_at = $13, updated_at = $14
		 WHERE ingest_key = $1`,
		permit.IngestKey, permit.SourceKey, nullable(permit.ExternalID), permit.ProjectTitle,
		permit.Location, permit.Country, permit.Activity, permit.Status,
		nullable(permit.Category), nullable(permit.Notes), nullable(permit.SourceURL),
		nullable(permit.SourceName), permit.LastSeenAt, permit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update permit %s: %w", permit.IngestKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permit %s not found", permit.IngestKey)
	}
	return nil
}

type pgxScanner interface {
	Scan(dest ...any) error
}

func scanPermit(row pgxScanner) (domain.Permit, error) {
	var (
		permit     domain.Permit
		externalID pgtype.Text
		category   pgtype.Text
		notes      pgtype.Text
		sourceURL  pgtype.Text
		sourceName pgtype.Text
	)
	err := row.Scan(
		&permit.IngestKey, &permit.SourceKey, &externalID, &permit.ProjectTitle,
		&permit.Location, &permit.Country, &permit.Activity, &permit.Status,
		&category, &notes, &sourceURL, &sourceName,
		&permit.FirstSeenAt, &permit.LastSeenAt, &permit.CreatedAt, &permit.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Permit{}, err
		}
		return domain.Permit{}, fmt.Errorf("failed to scan permit: %w", err)
	}
	permit.ExternalID = externalID.String
	permit.Category = category.String
	permit.Notes = notes.String
	permit.SourceURL = sourceURL.String
	permit.SourceName = sourceName.String
	return permit, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PostgresStatusHistoryStore persists status transitions. The id sequence is
// owned by the database.
type PostgresStatusHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStatusHistoryStore(pool *pgxpool.Pool) *PostgresStatusHistoryStore {
	return &PostgresStatusHistoryStore{pool: pool}
}

func (s *PostgresStatusHistoryStore) List(ctx context.Context) ([]domain.StatusChangeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, permit_key, source_key, previous_status, new_status, changed_at, run_id
		 FROM status_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	events := []domain.StatusChangeEvent{}
	for rows.Next() {
		var event domain.StatusChangeEvent
		if err := rows.Scan(&event.ID, &event.PermitKey, &event.SourceKey,
			&event.PreviousStatus, &event.NewStatus, &event.ChangedAt, &event.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *PostgresStatusHistoryStore) Append(ctx context.Context, event domain.StatusChangeEvent) (domain.StatusChangeEvent, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO status_history (permit_key, source_key, previous_status, new_status, changed_at, run_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		event.PermitKey, event.SourceKey, event.PreviousStatus, event.NewStatus,
		event.ChangedAt, event.RunID,
	).Scan(&event.ID)
	if err != nil {
		return domain.StatusChangeEvent{}, fmt.Errorf("failed to append status event: %w", err)
	}
	return event, nil
}

// PostgresRunStore persists ingestion runs; source keys and per-source results
// are stored as JSONB.
type PostgresRunStore struct {
	pool *pgxpool.Pool
}

func NewPostgresRunStore(pool *pgxpool.Pool) *PostgresRunStore {
	return &PostgresRunStore{pool: pool}
}

func (s *PostgresRunStore) List(ctx context.Context) ([]domain.IngestionRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, completed_at, source_keys, fetched, inserted, updated,
			status_changed, skipped, errors, source_results
		 FROM ingestion_runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.IngestionRun{}
	for rows.Next() {
		var (
			run         domain.IngestionRun
			completedAt pgtype.Timestamptz
			resultsJSON []byte
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &completedAt, &run.SourceKeys,
			&run.Fetched, &run.Inserted, &run.Updated, &run.StatusChanged,
			&run.Skipped, &run.Errors, &resultsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion run: %w", err)
		}
		if completedAt.Valid {
			completed := completedAt.Time.UTC()
			run.CompletedAt = &completed
		}
		if len(resultsJSON) > 0 {
			if err := json.Unmarshal(resultsJSON, &run.SourceResults); err != nil {
				return nil, fmt.Errorf("failed to decode run %s results: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresRunStore) Append(ctx context.Context, run domain.IngestionRun) error {
	resultsJSON, err := json.Marshal(run.SourceResults)
	if err != nil {
		return fmt.Errorf("failed to encode run %s results: %w", run.ID, err)
	}
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_runs (id, started_at, completed_at, source_keys, fetched,
			inserted, updated, status_changed, skipped, errors, source_results)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.StartedAt, completedAt, run.SourceKeys, run.Fetched,
		run.Inserted, run.Updated, run.StatusChanged, run.Skipped, run.Errors,
		resultsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append ingestion run %s: %w", run.ID, err)
	}
	return nil
}

// touchTimeout bounds catalog reads from Postgres.
const touchTimeout = 5 * time.Second

// PostgresCatalog stores source definitions as JSONB documents keyed by
// source key, so operator-supplied field maps round-trip untouched.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

func (c *PostgresCatalog) List(ctx context.Context) ([]domain.SourceDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, `SELECT definition FROM sources ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := []domain.SourceDefinition{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		var source domain.SourceDefinition
		if err := json.Unmarshal(payload, &source); err != nil {
			return nil, fmt.Errorf("failed to decode source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (c *PostgresCatalog) Get(ctx context.Context, key string) (domain.SourceDefinition, bool, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx, `SELECT definition FROM sources WHERE key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SourceDefinition{}, false, nil
		}
		return domain.SourceDefinition{}, false, fmt.Errorf("failed to get source %s: %w", key, err)
	}
	var source domain.SourceDefinition
	if err := json.Unmarshal(payload, &source); err != nil {
		return domain.SourceDefinition{}, false, fmt.Errorf("failed to decode source %s: %w", key, err)
	}
	return source, true, nil
}

func (c *PostgresCatalog) Save(ctx context.Context, source domain.SourceDefinition) error {
	payload, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to encode source %s: %w", source.Key, err)
	}
	_, err = c.pool.Exec(ctx,
		`INSERT INTO sources (key, definition) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET definition = EXCLUDED.definition, updated_at = now()`,
		source.Key, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save source %s: %w", source.Key, err)
	}
	return nil
}
