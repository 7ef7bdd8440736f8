package config

import (
	"fmt"

	"github.com/rpattn/permitsync/internal/db"
	"github.com/spf13/viper"
)

// AppConfig is the full process configuration.
type AppConfig struct {
	// ServerAddr is the admin HTTP listen address.
	ServerAddr string
	// CatalogPath is the source definition JSON file.
	CatalogPath string
	// DataDir holds the JSON-file-backed permit/history/run collections and
	// anchors relative local_file source paths.
	DataDir string
	// UsePostgres switches the stores from JSON files to Postgres.
	UsePostgres bool
	// MigrationsPath holds the SQL migration files.
	MigrationsPath string
	Database       db.Config
}

// Load reads config.yaml from configPath with environment overrides
// (PERMITSYNC_ prefix, e.g. PERMITSYNC_DATABASE_HOST).
func Load(configPath string) (AppConfig, error) {
	// Start with defaults
	cfg := AppConfig{
		ServerAddr:     ":8080",
		CatalogPath:    "sources.json",
		DataDir:        "data",
		MigrationsPath: "./migrations",
		Database:       db.DefaultConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("PERMITSYNC")

	// Map nested keys to flat env vars like PERMITSYNC_DATABASE_HOST
	v.BindEnv("server.addr")
	v.BindEnv("catalog.path")
	v.BindEnv("data.dir")
	v.BindEnv("migrations.path")
	v.BindEnv("database.enabled")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("catalog.path") {
		cfg.CatalogPath = v.GetString("catalog.path")
	}
	if v.IsSet("data.dir") {
		cfg.DataDir = v.GetString("data.dir")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}
	if v.IsSet("database.enabled") {
		cfg.UsePostgres = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
