//go:build integration

package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/stockyard/pkg/permmatrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresStore starts a PostgreSQL container and returns a migrated store
func setupPostgresStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("stockyard_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenDB(ctx, Postgres.Driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, Postgres))
	return NewStore(db, Postgres, nil)
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, s))
	require.NoError(t, Migrate(ctx, s.DB(), Postgres), "migrations are idempotent")

	roles, err := s.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, len(seedRoles))

	page, err := s.PagePermissions(ctx, "orders", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Filtered)

	perm := page.Permissions[0]
	_, err = s.BulkUpdate(ctx, []permmatrix.Update{{RoleID: roles[1].ID, PermissionID: perm.ID, HasAccess: true}})
	require.NoError(t, err)
	_, err = s.BulkUpdate(ctx, []permmatrix.Update{{RoleID: roles[1].ID, PermissionID: perm.ID, HasAccess: false}})
	require.NoError(t, err)

	grants, err := s.ListAccess(ctx)
	require.NoError(t, err)
	var found bool
	for _, g := range grants {
		if g.RoleID != roles[1].ID {
			continue
		}
		for _, m := range g.Menus {
			if m.MenuID == perm.ID {
				found = true
				assert.False(t, m.HasAccess, "upsert replaced the grant")
			}
		}
	}
	assert.True(t, found)

	_, err = s.BulkUpdate(ctx, []permmatrix.Update{{RoleID: roles[1].ID, PermissionID: 9999, HasAccess: true}})
	assert.ErrorIs(t, err, ErrUnknownReference)
}
