// Package mpostgres is the truth-store connection hub: a singleton
// *sql.DB backed by the pgx stdlib driver, plus schema migrations.
package mpostgres

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file migration source
	_ "github.com/jackc/pgx/v5/stdlib"                   // pgx driver registered as "pgx"

	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// Connection is a hub which deals with the primary Postgres connection.
type Connection struct {
	ConnectionString string
	MigrationsPath   string
	Logger           mlog.Logger

	db *sql.DB
}

// Connect opens the pool and runs pending migrations.
func (c *Connection) Connect() error {
	db, err := sql.Open("pgx", c.ConnectionString)
	if err != nil {
		return fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}

	c.db = db

	if c.MigrationsPath != "" {
		if err := c.migrate(); err != nil {
			return err
		}
	}

	if c.Logger != nil {
		c.Logger.Info("connected to postgres")
	}

	return nil
}

func (c *Connection) migrate() error {
	driver, err := postgres.WithInstance(c.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("building migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+c.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// DB returns the pool, connecting lazily if needed.
func (c *Connection) DB() (*sql.DB, error) {
	if c.db == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c.db, nil
}

// Ping probes liveness without mutating state; used by the readiness handler.
func (c *Connection) Ping() error {
	db, err := c.DB()
	if err != nil {
		return err
	}

	var one int

	return db.QueryRow("SELECT 1").Scan(&one)
}

// Close releases the pool. Safe to call on a Connection that never
// connected.
func (c *Connection) Close() error {
	if c.db == nil {
		return nil
	}

	return c.db.Close()
}
