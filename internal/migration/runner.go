// Package migration runs the ClickHouse schema migrations: raw tables, the
// normalizeLogMessage function, and the aggregation tiers with their
// materialized views.
package migration

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/config"
)

// Runner applies ClickHouse migrations from the configured directory.
type Runner struct {
	migrator *migrate.Migrate
	logger   *logrus.Logger
}

// NewRunner builds a migration runner for the configured ClickHouse
// instance. Multi-statement mode is required: each migration file carries
// several DDL statements.
func NewRunner(cfg *config.Config, logger *logrus.Logger) (*Runner, error) {
	dsn, err := migrationDSN(cfg)
	if err != nil {
		return nil, err
	}

	migrator, err := migrate.New("file://"+cfg.ClickHouse.MigrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	return &Runner{migrator: migrator, logger: logger}, nil
}

// migrationDSN rewrites the application DSN for the migrate driver, forcing
// multi-statement mode and the configured credentials.
func migrationDSN(cfg *config.Config) (string, error) {
	u, err := url.Parse(cfg.ClickHouse.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse ClickHouse URL: %w", err)
	}

	q := u.Query()
	q.Set("x-multi-statement", "true")
	if cfg.ClickHouse.Database != "" {
		q.Set("database", cfg.ClickHouse.Database)
	}
	if cfg.ClickHouse.User != "" {
		q.Set("username", cfg.ClickHouse.User)
	}
	if cfg.ClickHouse.Password != "" {
		q.Set("password", cfg.ClickHouse.Password)
	}
	u.RawQuery = q.Encode()
	u.Scheme = "clickhouse"
	u.User = nil

	return u.String(), nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	r.logger.Info("Running ClickHouse migrations")

	if err := r.migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("ClickHouse schema is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := r.migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration version %d is dirty", version)
	}

	r.logger.WithField("version", version).Info("ClickHouse migrations applied")
	return nil
}

// Close releases the migrator's connections.
func (r *Runner) Close() error {
	sourceErr, dbErr := r.migrator.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return dbErr
}
