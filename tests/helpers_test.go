package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/permitsync/internal/ingest"
	"github.com/rpattn/permitsync/internal/middleware"
	"github.com/rpattn/permitsync/internal/server"
	"github.com/rpattn/permitsync/internal/store"
)

// testApp is a full file-backed stack behind a live HTTP listener.
type testApp struct {
	URL     string
	DataDir string
	Files   *store.FileStores
	Catalog *store.FileCatalog
}

// startApp writes the given source catalog into a temp data dir and serves
// the admin API over httptest.
func startApp(t *testing.T, catalogJSON string) *testApp {
	t.Helper()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "sources.json")
	if err := os.WriteFile(catalogPath, []byte(catalogJSON), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	files, err := store.OpenFileStores(dir)
	if err != nil {
		t.Fatalf("failed to open stores: %v", err)
	}
	catalog := &store.FileCatalog{Path: catalogPath}

	srv := &server.Server{
		Catalog: catalog,
		Permits: files.Permits,
		Runs:    files.Runs,
		Engine: &ingest.Engine{
			Permits: files.Permits,
			History: files.History,
			Runs:    files.Runs,
			BaseDir: dir,
			Now:     func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		},
		Flush: files.Flush,
	}

	ts := httptest.NewServer(middleware.LoggingMiddleware(srv.Routes()))
	t.Cleanup(ts.Close)

	return &testApp{URL: ts.URL, DataDir: dir, Files: files, Catalog: catalog}
}

func (a *testApp) writeFeed(t *testing.T, name, payload string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(a.DataDir, name), []byte(payload), 0o644); err != nil {
		t.Fatalf("failed to write feed: %v", err)
	}
}

// Helper to POST a JSON body and decode the JSON response
func postJSON(t *testing.T, url string, payload any, out any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to make request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to parse response: %v\nRaw: %s", err, string(raw))
		}
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to make request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to parse response: %v\nRaw: %s", err, string(raw))
		}
	}
	return resp
}
