package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/permitsync/internal/config"
	"github.com/rpattn/permitsync/internal/db"
	"github.com/rpattn/permitsync/internal/health"
	"github.com/rpattn/permitsync/internal/ingest"
	"github.com/rpattn/permitsync/internal/middleware"
	"github.com/rpattn/permitsync/internal/server"
	"github.com/rpattn/permitsync/internal/store"

	"github.com/rs/cors"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: permitsync <command> [flags]

Commands:
  sync      run an ingestion pass over the configured sources
  validate  dry-run one source and print its readiness report
  serve     start the admin HTTP server`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize stores: %v", err)
	}
	defer app.close()

	switch os.Args[1] {
	case "sync":
		runSync(ctx, app, os.Args[2:])
	case "validate":
		runValidate(ctx, app, os.Args[2:])
	case "serve":
		runServe(cfg, app)
	default:
		usage()
	}
}

// app bundles the stores behind their interfaces so the subcommands do not
// care whether they run on JSON files or Postgres.
type app struct {
	catalog store.SourceCatalog
	permits store.PermitStore
	history store.StatusHistoryStore
	runs    store.RunStore
	baseDir string

	flush func(context.Context) error
	close func()
}

func buildApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	if cfg.UsePostgres {
		if err := db.RunMigrations(cfg.Database, cfg.MigrationsPath); err != nil {
			return nil, err
		}
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return &app{
			catalog: store.NewPostgresCatalog(conn.Pool),
			permits: store.NewPostgresPermitStore(conn.Pool),
			history: store.NewPostgresStatusHistoryStore(conn.Pool),
			runs:    store.NewPostgresRunStore(conn.Pool),
			baseDir: cfg.DataDir,
			close:   conn.Close,
		}, nil
	}

	files, err := store.OpenFileStores(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &app{
		catalog: &store.FileCatalog{Path: cfg.CatalogPath},
		permits: files.Permits,
		history: files.History,
		runs:    files.Runs,
		baseDir: cfg.DataDir,
		flush:   files.Flush,
		close:   func() {},
	}, nil
}

func (a *app) engine() *ingest.Engine {
	return &ingest.Engine{
		Permits: a.permits,
		History: a.history,
		Runs:    a.runs,
		BaseDir: a.baseDir,
	}
}

func runSync(ctx context.Context, a *app, args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	sourceKey := fs.String("source", "", "restrict the run to one source key")
	includeDisabled := fs.Bool("include-disabled", false, "also run disabled sources")
	fs.Parse(args)

	sources, err := a.catalog.List(ctx)
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}

	run, err := a.engine().SyncSources(ctx, sources, ingest.Options{
		SourceKey:       *sourceKey,
		IncludeDisabled: *includeDisabled,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}
	if a.flush != nil {
		if err := a.flush(ctx); err != nil {
			log.Fatalf("Failed to persist stores: %v", err)
		}
	}

	fmt.Printf("Run %s: fetched=%d inserted=%d updated=%d status_changed=%d skipped=%d errors=%d\n",
		run.ID, run.Fetched, run.Inserted, run.Updated, run.StatusChanged, run.Skipped, run.Errors)
	for _, stats := range run.SourceResults {
		for _, msg := range stats.ErrorMessages {
			fmt.Fprintf(os.Stderr, "[FAIL] %s: %s\n", stats.SourceKey, msg)
		}
	}
}

func runValidate(ctx context.Context, a *app, args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	sourceKey := fs.String("source", "", "source key to validate")
	sampleLimit := fs.Int("sample-limit", 0, "sample permits to include in the report")
	fs.Parse(args)

	if *sourceKey == "" {
		fmt.Fprintln(os.Stderr, "validate requires --source")
		os.Exit(2)
	}

	source, ok, err := a.catalog.Get(ctx, *sourceKey)
	if err != nil {
		log.Fatalf("Failed to load source: %v", err)
	}

	var report health.ValidationReport
	if !ok {
		report = health.BuildSourceValidationReport(nil, nil)
	} else if preview, err := a.engine().PreviewSource(ctx, source, *sampleLimit); err != nil {
		// A failed dry run still produces a report; the blocked verdict
		// carries the exit code.
		fmt.Fprintf(os.Stderr, "[FAIL] %s: %v\n", *sourceKey, err)
		report = health.BuildSourceValidationReport(&source, nil)
		report.Notes = append(report.Notes, err.Error())
	} else {
		report = health.BuildSourceValidationReport(&source, &preview)
	}

	printJSON(report)
	if report.Verdict == health.VerdictBlocked {
		os.Exit(1)
	}
}

func runServe(cfg config.AppConfig, a *app) {
	srv := &server.Server{
		Catalog: a.catalog,
		Permits: a.permits,
		Runs:    a.runs,
		Engine:  a.engine(),
		Flush:   a.flush,
	}

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(middleware.LoggingMiddleware(srv.Routes()))

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting admin server on %s", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func printJSON(payload any) {
	out, err := jsonIndent(payload)
	if err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
	fmt.Println(out)
}

func jsonIndent(payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
