package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/permitsync/internal/domain"
)

// LocalFile reads records from a file on disk, resolved relative to BaseDir.
// JSON files must contain a record array (optionally behind records_path);
// .csv and .xlsx agency exports are parsed tabularly, one record per row keyed
// by sanitized header names.
type LocalFile struct {
	BaseDir string
}

func (r *LocalFile) Read(ctx context.Context, source domain.SourceDefinition) ([]map[string]any, error) {
	if source.Path == "" {
		return nil, fmt.Errorf("%w: source %s has no path", domain.ErrInvalidSourceData, source.Key)
	}

	path := source.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.BaseDir, path)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: source %s: %v", domain.ErrFetchFailed, source.Key, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSVRecords(source.Key, payload)
	case ".xlsx":
		return parseExcelRecords(source.Key, payload)
	default:
		var doc any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, fmt.Errorf("%w: source %s: %v", domain.ErrInvalidSourceData, source.Key, err)
		}
		records, ok := recordsAt(doc, source.RecordsPath)
		if !ok {
			return nil, fmt.Errorf("%w: source %s file is not a record array", domain.ErrInvalidSourceData, source.Key)
		}
		return records, nil
	}
}
