package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSetup holds a migrated connection to the integration database.
type TestDatabaseSetup struct {
	DB *database.DB
}

// NewTestDatabase connects to TEST_DATABASE_URL and applies the schema. The
// test is skipped when the variable is unset.
func NewTestDatabase(t *testing.T) *TestDatabaseSetup {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	m, err := database.NewMigrator(dsn)
	require.NoError(t, err)
	_, err = m.Up()
	require.NoError(t, err)
	require.NoError(t, m.Close())

	db, err := database.NewPostgreSQLDB(context.Background(), dsn, database.PoolOptions{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)

	setup := &TestDatabaseSetup{DB: db}
	require.NoError(t, setup.TruncateAllTables(context.Background()))
	t.Cleanup(setup.Close)
	return setup
}

// TruncateAllTables removes every row and resets sequences.
func (s *TestDatabaseSetup) TruncateAllTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"processed_orders",
		"user_urls",
		"invoices",
		"subscriptions",
		"options",
		"users",
	}

	for _, table := range tables {
		_, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// CreateUser inserts a platform user and returns its id.
func (s *TestDatabaseSetup) CreateUser(t *testing.T, email string) int64 {
	t.Helper()
	var id int64
	err := s.DB.QueryRow(context.Background(), `
		INSERT INTO users (email, display_name)
		VALUES ($1, $1)
		RETURNING id
	`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func (s *TestDatabaseSetup) Close() {
	s.DB.Close()
}
