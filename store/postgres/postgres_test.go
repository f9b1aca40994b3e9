package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/storetest"
)

// Runs only when TEST_DATABASE_URL points at a disposable database.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	storetest.Run(t, func(t *testing.T) leave.Store {
		require.NoError(t, s.Reset(ctx))
		return s
	})
}
