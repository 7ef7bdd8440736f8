package ingest

import (
	"context"

	"github.com/rpattn/permitsync/internal/domain"
	"github.com/rpattn/permitsync/internal/normalize"
	"github.com/rpattn/permitsync/internal/reader"
	"github.com/rpattn/permitsync/internal/transform"
)

const defaultSampleLimit = 10

// Preview summarizes a dry run of one source without touching any store.
type Preview struct {
	SourceKey     string          `json:"source_key"`
	Fetched       int             `json:"fetched"`
	Normalized    int             `json:"normalized"`
	Skipped       int             `json:"skipped"`
	Errors        int             `json:"errors"`
	ErrorMessages []string        `json:"error_messages,omitempty"`
	Sample        []domain.Permit `json:"sample"`
}

// PreviewSource fetches and normalizes a source's records without mutating
// the permit store, returning up to sampleLimit normalized permits. Used to
// validate a source before enabling it.
func (e *Engine) PreviewSource(ctx context.Context, source domain.SourceDefinition, sampleLimit int) (Preview, error) {
	preview := Preview{SourceKey: source.Key, Sample: []domain.Permit{}}
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}

	transformer := transform.ForSource(source)
	rd, err := reader.ForSource(source, e.BaseDir, e.Client)
	if err != nil {
		return preview, err
	}

	records, err := rd.Read(ctx, source)
	if err != nil {
		return preview, err
	}
	preview.Fetched = len(records)

	seen := make(map[string]struct{}, len(records))
	now := e.now()

	for _, raw := range records {
		if !normalize.ShouldInclude(raw, source) {
			preview.Skipped++
			continue
		}
		candidate := transformer.Transform(raw, source)
		if missing := normalize.MissingRequired(candidate, source); len(missing) > 0 {
			preview.Skipped++
			continue
		}
		permit := normalize.Permit(candidate, source, now)
		if _, dup := seen[permit.IngestKey]; dup {
			preview.Skipped++
			continue
		}
		seen[permit.IngestKey] = struct{}{}
		preview.Normalized++

		if len(preview.Sample) < sampleLimit {
			preview.Sample = append(preview.Sample, permit)
		}
	}

	return preview, nil
}
