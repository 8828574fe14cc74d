package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres launches a throwaway PostgreSQL container and returns its
// connection string. The container is terminated when the test finishes.
//
// Requires a local Docker daemon; callers should treat an error as a reason
// to skip rather than fail.
func StartPostgres(t *testing.T) (string, error) {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ringtrace_test"),
		postgres.WithUsername("ringtrace"),
		postgres.WithPassword("ringtrace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", err
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	return ctr.ConnectionString(ctx, "sslmode=disable")
}
