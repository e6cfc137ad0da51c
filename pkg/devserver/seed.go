package devserver

import (
	"context"
	"fmt"

	"github.com/platinummonkey/stockyard/pkg/permmatrix"
)

var seedRoles = []string{"Admin", "Trader", "Buyer", "Inspector"}

var seedPermissions = []permmatrix.Permission{
	{ServiceName: "livestock", FunctionName: "list", Method: "GET", Value: "/livestock"},
	{ServiceName: "livestock", FunctionName: "create", Method: "POST", Value: "/livestock"},
	{ServiceName: "livestock", FunctionName: "weigh", Method: "POST", Value: "/livestock/weighings"},
	{ServiceName: "orders", FunctionName: "list", Method: "GET", Value: "/orders"},
	{ServiceName: "orders", FunctionName: "approve", Method: "PUT", Value: "/orders/approve"},
	{ServiceName: "carcass", FunctionName: "grade", Method: "POST", Value: "/carcass/grades"},
	{ServiceName: "pricing", FunctionName: "update", Method: "PUT", Value: "/pricing"},
	{ServiceName: "reports", FunctionName: "export", Method: "GET", Value: "/reports/export"},
	{ServiceName: "users", FunctionName: "manage", Method: "POST", Value: "/users"},
}

// Seed fills an empty database with sample roles and permissions and grants
// every permission to the first role. A database that already has roles is
// left untouched.
func Seed(ctx context.Context, s *Store) error {
	existing, err := s.ListRoles(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	var roles []permmatrix.Role
	for _, name := range seedRoles {
		r, err := s.CreateRole(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to seed roles: %w", err)
		}
		roles = append(roles, r)
	}

	var updates []permmatrix.Update
	for _, p := range seedPermissions {
		created, err := s.CreatePermission(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to seed permissions: %w", err)
		}
		updates = append(updates, permmatrix.Update{RoleID: roles[0].ID, PermissionID: created.ID, HasAccess: true})
	}

	if _, err := s.BulkUpdate(ctx, updates); err != nil {
		return fmt.Errorf("failed to seed grants: %w", err)
	}
	return nil
}
