// Package storetest opens migrated in-memory databases for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/existflow/postboard/internal/config"
	"github.com/existflow/postboard/internal/store"
	"github.com/stretchr/testify/require"
)

// New returns a migrated SQLite store that lives as long as the test
func New(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(ctx))
	return st
}
