package permmatrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	mu         sync.Mutex
	granted    bool
	bodies     []BulkUpdateRequest
	reject     bool
	accessHits atomic.Int32
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/roles", func(w http.ResponseWriter, r *http.Request) {
		// Bare array
		_, _ = w.Write([]byte(`[{"id":1,"name":"Admin"}]`))
	})
	mux.HandleFunc("/api/permissions", func(w http.ResponseWriter, r *http.Request) {
		// Enveloped
		_, _ = w.Write([]byte(`{"status":"ok","data":[{"id":9,"service_name":"sys","function_name":"read","method":"GET","value":"/x"}]}`))
	})
	mux.HandleFunc("/api/role-permissions", func(w http.ResponseWriter, r *http.Request) {
		b.accessHits.Add(1)
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewEncoder(w).Encode([]AccessGrant{{RoleID: 1, Menus: []MenuAccess{{MenuID: 9, HasAccess: b.granted}}}})
	})
	mux.HandleFunc("/api/role-permissions/bulk-update", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req BulkUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode bulk update: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.bodies = append(b.bodies, req)
		if b.reject {
			_, _ = w.Write([]byte(`{"status":"no","message":"role is locked"}`))
			return
		}
		for _, u := range req.Updates {
			if u.RoleID == 1 && u.PermissionID == 9 {
				b.granted = u.HasAccess
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok","data":{"updated":1}}`))
	})
	return mux
}

func newGatewayAPI(t *testing.T, b *backend) *GatewayAPI {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	cfg := gateway.DefaultConfig(srv.URL + "/api")
	cfg.Timeout = 2 * time.Second
	client, err := gateway.New(cfg)
	require.NoError(t, err)
	return NewGatewayAPI(client)
}

func TestGatewayAPI_List(t *testing.T) {
	api := newGatewayAPI(t, &backend{})
	ctx := context.Background()

	roles, err := api.ListRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Role{{ID: 1, Name: "Admin"}}, roles)

	perms, err := api.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "sys.read", perms[0].Label())
	assert.Equal(t, "/x", perms[0].Value)

	access, err := api.ListAccess(ctx)
	require.NoError(t, err)
	assert.Equal(t, Matrix{1: {9: false}}, FlattenAccess(access))
}

func TestGatewayAPI_ReadsBypassCache(t *testing.T) {
	b := &backend{}
	api := newGatewayAPI(t, b)

	for i := 0; i < 3; i++ {
		_, err := api.ListAccess(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), b.accessHits.Load())
}

func TestGatewayAPI_BulkUpdate(t *testing.T) {
	b := &backend{}
	api := newGatewayAPI(t, b)

	err := api.BulkUpdate(context.Background(), []Update{{RoleID: 1, PermissionID: 9, HasAccess: true}})
	require.NoError(t, err)

	require.Len(t, b.bodies, 1)
	assert.Equal(t, []Update{{RoleID: 1, PermissionID: 9, HasAccess: true}}, b.bodies[0].Updates)
}

func TestGatewayAPI_BulkUpdateRejected(t *testing.T) {
	api := newGatewayAPI(t, &backend{reject: true})

	err := api.BulkUpdate(context.Background(), []Update{{RoleID: 1, PermissionID: 9, HasAccess: true}})
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindApplication))
	assert.Contains(t, err.Error(), "role is locked")
}

func TestEditorOverGateway(t *testing.T) {
	b := &backend{}
	ed := openEditor(t, newGatewayAPI(t, b))

	_, err := ed.Toggle(1, 9)
	require.NoError(t, err)
	require.NoError(t, ed.Save(context.Background()))

	assert.Empty(t, ed.Pending())
	assert.True(t, ed.Granted(1, 9))
	assert.Equal(t, int32(2), b.accessHits.Load(), "open and reload")
}
