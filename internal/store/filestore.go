package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rpattn/permitsync/internal/domain"
)

const (
	permitsFile = "permits.json"
	historyFile = "status_history.json"
	runsFile    = "ingestion_runs.json"
)

// FileStores bundles memory stores loaded from JSON files under a data
// directory. The engine works against memory; Flush persists the arrays back
// after a run, matching the caller-owns-durability contract.
type FileStores struct {
	Dir     string
	Permits *MemoryPermitStore
	History *MemoryStatusHistoryStore
	Runs    *MemoryRunStore
}

// OpenFileStores loads the permit, history and run collections from dir.
// Missing files start empty.
func OpenFileStores(dir string) (*FileStores, error) {
	var permits []domain.Permit
	if err := readJSONFile(filepath.Join(dir, permitsFile), &permits); err != nil {
		return nil, err
	}
	var events []domain.StatusChangeEvent
	if err := readJSONFile(filepath.Join(dir, historyFile), &events); err != nil {
		return nil, err
	}
	var runs []domain.IngestionRun
	if err := readJSONFile(filepath.Join(dir, runsFile), &runs); err != nil {
		return nil, err
	}

	return &FileStores{
		Dir:     dir,
		Permits: NewMemoryPermitStore(permits),
		History: NewMemoryStatusHistoryStore(events),
		Runs:    NewMemoryRunStore(runs),
	}, nil
}

// Flush writes all three collections back to disk.
func (f *FileStores) Flush(ctx context.Context) error {
	permits, err := f.Permits.List(ctx)
	if err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(f.Dir, permitsFile), permits); err != nil {
		return err
	}
	events, err := f.History.List(ctx)
	if err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(f.Dir, historyFile), events); err != nil {
		return err
	}
	runs, err := f.Runs.List(ctx)
	if err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(f.Dir, runsFile), runs)
}

// FileCatalog reads source definitions from a JSON file and writes patched
// definitions back.
type FileCatalog struct {
	Path string
}

func (c *FileCatalog) List(ctx context.Context) ([]domain.SourceDefinition, error) {
	var sources []domain.SourceDefinition
	if err := readJSONFile(c.Path, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (c *FileCatalog) Get(ctx context.Context, key string) (domain.SourceDefinition, bool, error) {
	sources, err := c.List(ctx)
	if err != nil {
		return domain.SourceDefinition{}, false, err
	}
	for _, source := range sources {
		if source.Key == key {
			return source, true, nil
		}
	}
	return domain.SourceDefinition{}, false, nil
}

func (c *FileCatalog) Save(ctx context.Context, source domain.SourceDefinition) error {
	sources, err := c.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range sources {
		if sources[i].Key == source.Key {
			sources[i] = source
			replaced = true
			break
		}
	}
	if !replaced {
		sources = append(sources, source)
	}
	return writeJSONFile(c.Path, sources)
}

func readJSONFile(path string, out any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSONFile(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
