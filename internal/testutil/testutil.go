// Package testutil provides test utilities and helpers.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"kwrec/internal/db"
	"kwrec/internal/model"
	"kwrec/internal/models"
)

// TestDB creates a test database connection and returns a cleanup function.
// Skips the test unless TEST_DATABASE_URL is set.
func TestDB(t *testing.T) (*db.DB, func()) {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := db.New(ctx, connString)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(connString); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	cleanupTestData(ctx, database.Pool)

	cleanup := func() {
		cleanupTestData(ctx, database.Pool)
		database.Close()
	}

	return database, cleanup
}

// cleanupTestData removes all test data from the database.
func cleanupTestData(ctx context.Context, pool *pgxpool.Pool) {
	pool.Exec(ctx, "DELETE FROM model_snapshots")
	pool.Exec(ctx, "DELETE FROM training_runs")
	pool.Exec(ctx, "DELETE FROM context_lookups")
}

// Trace builds one keyword sequence. "Library.Name" entries carry a library.
func Trace(names ...string) []models.KeywordEvent {
	events := make([]models.KeywordEvent, len(names))
	for i, n := range names {
		lib := ""
		if j := strings.LastIndex(n, "."); j > 0 {
			lib, n = n[:j], n[j+1:]
		}
		events[i] = models.KeywordEvent{
			Name:          n,
			Library:       lib,
			Kind:          models.KindKeyword,
			Status:        models.StatusPass,
			SequenceIndex: i + 1,
		}
	}
	return events
}

// Model builds an order-2 model from traces.
func Model(traces ...[]models.KeywordEvent) *model.Model {
	return model.Build(traces, model.DefaultBuildOptions())
}

// BrowserModel is a small model over a web-testing vocabulary.
func BrowserModel() *model.Model {
	return Model(
		Trace("SeleniumLibrary.Open Browser", "Login User", "SeleniumLibrary.Click Button", "BuiltIn.Log", "SeleniumLibrary.Close Browser"),
		Trace("SeleniumLibrary.Open Browser", "Login User", "SeleniumLibrary.Input Text", "SeleniumLibrary.Click Button", "SeleniumLibrary.Close Browser"),
		Trace("SeleniumLibrary.Open Browser", "BuiltIn.Log", "SeleniumLibrary.Close Browser"),
	)
}
