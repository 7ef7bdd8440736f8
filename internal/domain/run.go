package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceSyncStats aggregates the outcome of syncing one source within a run.
type SourceSyncStats struct {
	SourceKey     string   `json:"source_key"`
	SourceName    string   `json:"source_name,omitempty"`
	Fetched       int      `json:"fetched"`
	Inserted      int      `json:"inserted"`
	Updated       int      `json:"updated"`
	StatusChanged int      `json:"status_changed"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// IngestionRun records one sync execution. Once CompletedAt is set the run is
// immutable and appended to the run log.
type IngestionRun struct {
	ID            string            `json:"id"`
	StartedAt     time.Time         `json:"started_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	SourceKeys    []string          `json:"source_keys"`
	Fetched       int               `json:"fetched"`
	Inserted      int               `json:"inserted"`
	Updated       int               `json:"updated"`
	StatusChanged int               `json:"status_changed"`
	Skipped       int               `json:"skipped"`
	Errors        int               `json:"errors"`
	SourceResults []SourceSyncStats `json:"source_results"`
}

// NewRunID builds a run identifier of the form run-{epoch_ms}-{suffix}.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("run-%d-%s", now.UnixMilli(), suffix)
}

// Fold accumulates a source result into the run totals and result list.
func (r *IngestionRun) Fold(stats SourceSyncStats) {
	r.Fetched += stats.Fetched
	r.Inserted += stats.Inserted
	r.Updated += stats.Updated
	r.StatusChanged += stats.StatusChanged
	r.Skipped += stats.Skipped
	r.Errors += stats.Errors
	r.SourceResults = append(r.SourceResults, stats)
}

// Attempted reports whether the run attempted the given source key.
func (r IngestionRun) Attempted(sourceKey string) bool {
	for _, key := range r.SourceKeys {
		if key == sourceKey {
			return true
		}
	}
	return false
}
