// Package testhelpers provides the shared infrastructure integration tests
// run on: a containerized PostgreSQL with the engine schema applied, and
// token builders for exercising authenticated routes.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/database"
)

// postgresImage pins the PostgreSQL version integration tests run against.
// Keep it in step with what deployments provision.
const postgresImage = "postgres:16-alpine"

const (
	testDBName     = "opsline_engine_test"
	testDBUser     = "opsline"
	testDBPassword = "test_password"
)

// EngineDB is a migrated engine database backed by a throwaway container.
type EngineDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	engineDB     *EngineDB
	engineDBOnce sync.Once
	engineDBErr  error
)

// GetEngineDB returns the shared integration database. The first caller pays
// for the container start and migrations; everyone after reuses the same
// instance, so tests must scope their rows by client and clean up what they
// insert.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	engineDBOnce.Do(func() {
		engineDB, engineDBErr = startEngineDB()
	})
	if engineDBErr != nil {
		t.Fatalf("Failed to set up integration database: %v", engineDBErr)
	}

	return engineDB
}

func startEngineDB() (*EngineDB, error) {
	ctx := context.Background()

	connStr, err := startPostgres(ctx)
	if err != nil {
		return nil, err
	}

	// The ready log can race the first accepted connection, so give the
	// initial connect a few tries.
	var db *database.DB
	for attempt := 0; attempt < 5; attempt++ {
		db, err = database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: 5,
		})
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to integration database: %w", err)
	}

	if err := applyMigrations(connStr); err != nil {
		return nil, err
	}

	return &EngineDB{DB: db, ConnStr: connStr}, nil
}

// startPostgres boots the container and returns a pgx connection string for
// it.
func startPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDBName,
			"POSTGRES_USER":     testDBUser,
			"POSTGRES_PASSWORD": testDBPassword,
		},
		// initdb restarts the server once, so the first ready line lies.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("resolve container port: %w", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testDBUser, testDBPassword, host, port.Port(), testDBName), nil
}

// applyMigrations drives golang-migrate over a database/sql connection, the
// same path main.go takes at startup.
func applyMigrations(connStr string) error {
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrationsPath(), zap.NewNop()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrationsPath resolves the migrations directory relative to this file so
// tests work regardless of the package they run from.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
