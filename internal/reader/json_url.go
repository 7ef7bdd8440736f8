package reader

import (
	"context"
	"fmt"

	"github.com/rpattn/permitsync/internal/domain"
)

// JSONURL reads a generic JSON API: the response is either a bare record
// array, an envelope addressed by records_path, or one of the common envelope
// keys.
type JSONURL struct {
	Client Doer
}

func (r *JSONURL) Read(ctx context.Context, source domain.SourceDefinition) ([]map[string]any, error) {
	if source.URL == "" {
		return nil, fmt.Errorf("%w: source %s has no url", domain.ErrInvalidSourceData, source.Key)
	}

	var doc any
	if err := getJSON(ctx, r.Client, source, source.URL, &doc); err != nil {
		return nil, err
	}

	records, ok := recordsAt(doc, source.RecordsPath)
	if !ok {
		return nil, fmt.Errorf("%w: source %s response contains no record array", domain.ErrInvalidSourceData, source.Key)
	}
	return records, nil
}
