// Package reader fetches raw records from configured permit sources.
//
// Each supported source type has one Reader implementation, resolved once per
// sync via ForSource. Readers return loosely typed record maps; mapping onto
// the candidate shape is the transformer's job.
package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpattn/permitsync/internal/domain"
)

// Doer is the injectable HTTP client contract. Tests substitute a
// deterministic fake; production passes *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reader fetches the raw record set for one source.
type Reader interface {
	Read(ctx context.Context, source domain.SourceDefinition) ([]map[string]any, error)
}

// ForSource resolves the reader for a source's declared type.
func ForSource(source domain.SourceDefinition, baseDir string, client Doer) (Reader, error) {
	switch source.Type {
	case domain.SourceTypeLocalFile:
		return &LocalFile{BaseDir: baseDir}, nil
	case domain.SourceTypeArcGISMapServer:
		return &ArcGIS{Client: client}, nil
	case domain.SourceTypeJSONURL:
		return &JSONURL{Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: source %s declares type %q",
			domain.ErrUnsupportedSourceType, source.Key, source.Type)
	}
}

// getJSON issues a GET guarded by the source's timeout and decodes the JSON
// body into out. The timeout context is released on every path.
func getJSON(ctx context.Context, client Doer, source domain.SourceDefinition, url string, out any) error {
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, source.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: source %s: %v", domain.ErrFetchFailed, source.Key, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: source %s: %v", domain.ErrFetchFailed, source.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: source %s returned %s", domain.ErrFetchFailed, source.Key, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: source %s: %v", domain.ErrFetchFailed, source.Key, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: source %s: %v", domain.ErrInvalidSourceData, source.Key, err)
	}
	return nil
}

// recordsAt extracts a record array from a decoded JSON document: directly,
// via a dotted records path, or by probing common envelope keys in order.
func recordsAt(doc any, recordsPath string) ([]map[string]any, bool) {
	if recordsPath != "" {
		for _, segment := range strings.Split(recordsPath, ".") {
			obj, ok := doc.(map[string]any)
			if !ok {
				return nil, false
			}
			doc = obj[segment]
		}
		return toRecords(doc)
	}

	if records, ok := toRecords(doc); ok {
		return records, true
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range []string{"records", "items", "results", "features"} {
		if inner, ok := obj[key]; ok {
			if records, ok := toRecords(inner); ok {
				return records, true
			}
		}
	}
	return nil, false
}

func toRecords(value any) ([]map[string]any, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records, true
}
