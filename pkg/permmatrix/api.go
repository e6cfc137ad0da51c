package permmatrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/stockyard/pkg/gateway"
)

// API is the backend the editor loads from and saves to
type API interface {
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListAccess(ctx context.Context) ([]AccessGrant, error)
	BulkUpdate(ctx context.Context, updates []Update) error
}

// Endpoints are the paths of the permission endpoints, relative to the
// gateway base URL
type Endpoints struct {
	Roles       string
	Permissions string
	Access      string
	BulkUpdate  string
}

// DefaultEndpoints returns the dashboard backend paths
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Roles:       "/roles",
		Permissions: "/permissions",
		Access:      "/role-permissions",
		BulkUpdate:  "/role-permissions/bulk-update",
	}
}

// GatewayAPI implements API over the request gateway. Reads bypass the
// response cache so a reload after saving reflects persisted state.
type GatewayAPI struct {
	client    *gateway.Client
	endpoints Endpoints
}

// NewGatewayAPI creates an API using the default endpoints
func NewGatewayAPI(client *gateway.Client) *GatewayAPI {
	return &GatewayAPI{client: client, endpoints: DefaultEndpoints()}
}

// WithEndpoints returns a copy using different paths
func (a *GatewayAPI) WithEndpoints(e Endpoints) *GatewayAPI {
	return &GatewayAPI{client: a.client, endpoints: e}
}

func (a *GatewayAPI) ListRoles(ctx context.Context) ([]Role, error) {
	return listFrom[Role](ctx, a.client, a.endpoints.Roles)
}

func (a *GatewayAPI) ListPermissions(ctx context.Context) ([]Permission, error) {
	return listFrom[Permission](ctx, a.client, a.endpoints.Permissions)
}

func (a *GatewayAPI) ListAccess(ctx context.Context) ([]AccessGrant, error) {
	return listFrom[AccessGrant](ctx, a.client, a.endpoints.Access)
}

// BulkUpdate posts all updates in one request
func (a *GatewayAPI) BulkUpdate(ctx context.Context, updates []Update) error {
	raw, err := a.client.Post(ctx, a.endpoints.BulkUpdate, BulkUpdateRequest{Updates: updates}, nil)
	if err != nil {
		return err
	}
	if _, err := gateway.DecodeEnvelope[json.RawMessage](raw); err != nil {
		return err
	}

	// Drop any cached copy other callers may have read
	if _, err := a.client.ClearCache(ctx, a.endpoints.Access); err != nil {
		return fmt.Errorf("failed to invalidate access cache: %w", err)
	}
	return nil
}

// listFrom accepts either a bare JSON array or an envelope around one
func listFrom[T any](ctx context.Context, client *gateway.Client, endpoint string) ([]T, error) {
	raw, err := client.Get(ctx, endpoint, gateway.NoCache())
	if err != nil {
		return nil, err
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &gateway.Error{Kind: gateway.KindDecode, Message: "unexpected response shape: " + err.Error(), Err: err}
		}
		return items, nil
	}
	return gateway.DecodeEnvelope[[]T](raw)
}
