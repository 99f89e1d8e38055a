// Package dbtest provides a PostgreSQL instance for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stwalsh4118/parkspot/internal/config"
	"github.com/stwalsh4118/parkspot/internal/database"
	"github.com/stwalsh4118/parkspot/internal/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once      sync.Once
	sharedCfg config.DatabaseConfig
	initErr   error

	mu     sync.Mutex
	shared testcontainers.Container
)

// RunMain runs the package tests and then terminates the shared container.
// Use it from TestMain:
//
//	func TestMain(m *testing.M) { os.Exit(dbtest.RunMain(m)) }
func RunMain(m *testing.M) int {
	code := m.Run()
	if err := Terminate(); err != nil {
		fmt.Fprintf(os.Stderr, "dbtest: %v\n", err)
	}
	return code
}

// Terminate stops the shared container. It is a no-op when none was started.
func Terminate() error {
	mu.Lock()
	defer mu.Unlock()

	if shared == nil {
		return nil
	}

	// TerminateContainer tolerates the typed nil GenericContainer can return.
	err := testcontainers.TerminateContainer(shared)
	shared = nil
	if err != nil {
		return fmt.Errorf("terminate container: %w", err)
	}
	return nil
}

// SetupTestDB starts a shared PostgreSQL container (once per test binary),
// applies the migrations and returns a fresh Database connected to it with
// an empty parking_spots table. The pool is closed via t.Cleanup.
//
// The test is skipped under -short or when no container runtime is reachable.
func SetupTestDB(t *testing.T) *database.Database {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	once.Do(func() {
		sharedCfg, initErr = startContainerAndMigrate()
	})
	if initErr != nil {
		t.Skipf("dbtest: postgres container unavailable: %v", initErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, sharedCfg)
	if err != nil {
		t.Fatalf("dbtest: failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	Truncate(t, db)
	return db
}

// Truncate removes every parking spot and resets the id sequence.
func Truncate(t *testing.T, db *database.Database) {
	t.Helper()

	table := models.ParkingSpot{}.TableName()
	_, err := db.Pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" RESTART IDENTITY")
	if err != nil {
		t.Fatalf("dbtest: failed to truncate %s: %v", table, err)
	}
}

func startContainerAndMigrate() (cfg config.DatabaseConfig, err error) {
	// testcontainers may panic when no Docker host can be resolved.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start container: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "parkspot",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	mu.Lock()
	shared = container
	mu.Unlock()
	if err != nil {
		return cfg, fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return cfg, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return cfg, fmt.Errorf("get mapped port: %w", err)
	}

	cfg = config.DatabaseConfig{
		Host:     host,
		Port:     port.Port(),
		Name:     "parkspot",
		User:     "testuser",
		Password: "testpass",
		SSLMode:  "disable",
		PoolMin:  1,
		PoolMax:  5,
	}

	db, err := database.NewPostgresPool(ctx, cfg)
	if err != nil {
		return cfg, fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if _, err := db.Migrate(ctx); err != nil {
		return cfg, fmt.Errorf("migrate: %w", err)
	}

	return cfg, nil
}
