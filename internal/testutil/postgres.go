// Package testutil holds shared test fixtures: a migrated PostgreSQL
// container and scripted websocket and Telnet clients.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/textcamp/internal/config"
	"github.com/cory-johannsen/textcamp/internal/storage/postgres"
	"github.com/cory-johannsen/textcamp/migrations"
)

const (
	pgImage    = "postgres:16-alpine"
	pgCreds    = "textcamp"
	pgReadyLog = "database system is ready to accept connections"
)

// Database is a throwaway PostgreSQL with the schema applied.
type Database struct {
	Pool   *postgres.Pool
	Config config.DatabaseConfig
}

// StartDatabase runs a PostgreSQL container, applies every embedded
// migration through golang-migrate and connects a pool. Everything is
// torn down with the test. Skipped under -short.
//
// Precondition: Docker must be available.
func StartDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgCreds,
				"POSTGRES_PASSWORD": pgCreds,
				"POSTGRES_DB":       pgCreds,
			},
			// postgres logs readiness once for the init server and once for the real one
			WaitingFor: wait.ForLog(pgReadyLog).WithOccurrence(2).WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
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
		Host:            host,
		Port:            port.Int(),
		User:            pgCreds,
		Password:        pgCreds,
		Name:            pgCreds,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	m, err := migrations.New(cfg.DSN())
	if err != nil {
		t.Fatalf("%v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrating: %v", err)
	}
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		t.Fatalf("closing migrator: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(pool.Close)

	t.Logf("postgres ready at %s:%d [%s]", cfg.Host, cfg.Port, time.Since(start))
	return &Database{Pool: pool, Config: cfg}
}
