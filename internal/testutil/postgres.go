// Package testutil provides test helpers for database-backed tests.
package testutil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/corsair/internal/config"
	"github.com/cory-johannsen/corsair/internal/storage/postgres"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "corsair_test"
	pgDatabase = "corsair_test"
)

// tables lists every application table, children first.
var tables = []string{"chat_messages", "characters", "accounts"}

// PostgresDB is a throwaway PostgreSQL instance with the schema migrated to the latest
// version.
type PostgresDB struct {
	Pool   *postgres.Pool
	Config config.DatabaseConfig
}

// DB returns the raw pool for repository constructors.
func (p *PostgresDB) DB() *pgxpool.Pool { return p.Pool.DB() }

// Truncate empties every application table so one container can serve several tests.
func (p *PostgresDB) Truncate(t *testing.T) {
	t.Helper()
	stmt := "TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := p.DB().Exec(context.Background(), stmt); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}

// StartPostgres runs a PostgreSQL container, migrates it through golang-migrate exactly as
// cmd/migrate does, and connects a pool. The test is skipped when no container runtime is
// available.
//
// Postcondition: the container and pool are released by t.Cleanup.
func StartPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgUser,
				"POSTGRES_DB":       pgDatabase,
			},
			// postgres restarts once after initdb
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting %s: %v", pgImage, err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	cfg := config.DatabaseConfig{
		Driver:          config.DriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            pgUser,
		Password:        pgUser,
		Name:            pgDatabase,
		SSLMode:         "disable",
		MaxConns:        8,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	m, err := postgres.NewMigrator(cfg)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrating: %v", err)
	}
	_, _ = m.Close()

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(pool.Close)
	t.Logf("postgres ready at %s:%d [%s]", host, cfg.Port, time.Since(start))
	return &PostgresDB{Pool: pool, Config: cfg}
}

// NewPool is StartPostgres for tests that only need the raw pool.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	return StartPostgres(t).DB()
}
