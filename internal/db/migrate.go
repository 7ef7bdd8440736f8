package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending SQL migrations from migrationsPath.
func RunMigrations(config Config, migrationsPath string) error {
	// The pgx/v5 driver registers under the pgx5 scheme.
	url := "pgx5://" + strings.TrimPrefix(config.URL(), "postgres://")
	m, err := migrate.New("file://"+migrationsPath, url)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
