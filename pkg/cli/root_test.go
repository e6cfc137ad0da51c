package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/platinummonkey/stockyard/pkg/devserver"
	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "dev-token"

type testEnv struct {
	server    *httptest.Server
	store     *devserver.Store
	credsFile string
}

// setupTestEnv starts a seeded dev server and points the CLI at it
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := devserver.OpenDB(ctx, devserver.SQLite.Driver, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, devserver.Migrate(ctx, db, devserver.SQLite))

	store := devserver.NewStore(db, devserver.SQLite, nil)
	require.NoError(t, devserver.Seed(ctx, store))

	srv := httptest.NewServer(devserver.NewServer(store, devserver.Options{Tokens: []string{testToken}}).Handler())
	t.Cleanup(srv.Close)

	credsFile := filepath.Join(t.TempDir(), "credentials.yaml")
	t.Setenv("STOCKYARD_API_BASE_URL", srv.URL+"/api")
	t.Setenv("STOCKYARD_CREDENTIALS_FILE", credsFile)
	t.Setenv("STOCKYARD_CREDENTIALS_WATCH", "false")
	t.Setenv("STOCKYARD_CACHE_BACKEND", "memory")
	t.Setenv("STOCKYARD_LOG_LEVEL", "error")

	return &testEnv{server: srv, store: store, credsFile: credsFile}
}

// run executes one CLI invocation and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "stockyard", root.Name())

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "logout", "get", "post", "permissions", "cache"} {
		assert.Contains(t, names, want)
	}
}

func TestLoginLogout(t *testing.T) {
	env := setupTestEnv(t)

	out, err := run(t, "login", "--token", testToken)
	require.NoError(t, err)
	assert.Contains(t, out, env.credsFile)

	raw, err := os.ReadFile(env.credsFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), testToken)

	out, err = run(t, "get", "/roles")
	require.NoError(t, err)
	assert.Contains(t, out, `"Admin"`)

	_, err = run(t, "logout")
	require.NoError(t, err)

	_, err = run(t, "get", "/roles")
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindAuth))
}

func TestLogin_RequiresToken(t *testing.T) {
	setupTestEnv(t)

	_, err := run(t, "login", "--token", "  ")
	assert.Error(t, err)
}

func TestGet_Params(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	out, err := run(t, "get", "/permissions/paged", "-p", "draw=3", "-p", "length=2", "-p", "search[value]=livestock", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, `"draw": 3`)
	assert.Contains(t, out, `"recordsFiltered": 3`)

	_, err = run(t, "get", "/roles", "-p", "novalue")
	assert.Error(t, err)
}

func TestGet_Many(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	out, err := run(t, "get", "/roles", "/nowhere", "/permissions")
	require.Error(t, err, "one endpoint failed")
	assert.True(t, gateway.IsKind(err, gateway.KindNotFound))

	assert.Contains(t, out, "== /roles ==")
	assert.Contains(t, out, "== /nowhere ==")
	assert.Contains(t, out, "== /permissions ==")
	assert.Contains(t, out, `"livestock"`)
	assert.Less(t, strings.Index(out, "== /roles =="), strings.Index(out, "== /permissions =="), "results keep request order")
}

func TestPost(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	out, err := run(t, "post", "/role-permissions/bulk-update",
		"--data", `{"updates":[{"role_id":3,"permission_id":1,"has_access":true}]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"updated": 1`)

	_, err = run(t, "post", "/role-permissions/bulk-update", "--data", `{"updates":[]}`)
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindApplication))

	_, err = run(t, "post", "/role-permissions/bulk-update", "--data", `{not json`)
	assert.Error(t, err)
}

func TestPost_Multipart(t *testing.T) {
	var gotField, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("herd")
		f, _, err := r.FormFile("sheet")
		require.NoError(t, err)
		defer f.Close()
		var buf bytes.Buffer
		buf.ReadFrom(f)
		gotFile = buf.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","data":{"imported":2}}`))
	}))
	defer srv.Close()

	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)
	sheet := filepath.Join(t.TempDir(), "herd.csv")
	require.NoError(t, os.WriteFile(sheet, []byte("tag,weight\nA1,410\nA2,388\n"), 0600))

	out, err := run(t, "--api-url", srv.URL, "post", "/import", "-F", "herd=north", "--file", "sheet="+sheet)
	require.NoError(t, err)
	assert.Contains(t, out, `"imported": 2`)
	assert.Equal(t, "north", gotField)
	assert.Contains(t, gotFile, "A2,388")
}

func TestPermissionsShow(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	out, err := run(t, "permissions", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "PERMISSION")
	assert.Contains(t, out, "Inspector")
	assert.Contains(t, out, "livestock.list")
	assert.Contains(t, out, "roles: 4  permissions: 9  unsaved: 0")
}

func TestPermissionsToggle(t *testing.T) {
	env := setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	// Without --save nothing reaches the backend
	out, err := run(t, "perms", "toggle", "--role", "3", "--permission", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "unsaved: 1")
	assert.Contains(t, out, "[x]*")

	out, err = run(t, "permissions", "toggle", "-r", "3", "-p", "1", "-r", "3", "-p", "4", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "unsaved: 0")

	grants, err := env.store.ListAccess(context.Background())
	require.NoError(t, err)
	var buyer []int64
	for _, g := range grants {
		if g.RoleID != 3 {
			continue
		}
		for _, m := range g.Menus {
			if m.HasAccess {
				buyer = append(buyer, m.MenuID)
			}
		}
	}
	assert.Equal(t, []int64{1, 4}, buyer)
}

func TestPermissionsToggle_Validation(t *testing.T) {
	setupTestEnv(t)
	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	_, err = run(t, "permissions", "toggle", "--save")
	assert.ErrorContains(t, err, "at least one")

	_, err = run(t, "permissions", "toggle", "-r", "1", "-r", "2", "-p", "1")
	assert.ErrorContains(t, err, "pair up")

	_, err = run(t, "permissions", "toggle", "-r", "99", "-p", "1")
	assert.Error(t, err, "unknown role")
}

func TestCache_RedisSharedAcrossCommands(t *testing.T) {
	setupTestEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("STOCKYARD_REDIS_URL", "redis://"+mr.Addr()+"/0")

	_, err := run(t, "login", "-t", testToken)
	require.NoError(t, err)

	_, err = run(t, "--cache", "redis", "get", "/roles")
	require.NoError(t, err)

	out, err := run(t, "--cache", "redis", "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "redis"`)
	assert.Contains(t, out, `"size": 1`)
	assert.Contains(t, out, "/api/roles")

	out, err = run(t, "--cache", "redis", "cache", "clear", "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached responses")

	out, err = run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"backend": "memory"`)
	assert.Contains(t, out, `"size": 0`)
}

func TestInvalidConfig(t *testing.T) {
	setupTestEnv(t)

	_, err := run(t, "--api-url", "not-a-url", "get", "/roles")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = run(t, "--cache", "disk", "cache", "stats")
	assert.ErrorContains(t, err, "invalid cache backend")
}
