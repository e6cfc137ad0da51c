package permmatrix

import (
	"fmt"
	"sort"
)

// Role is a user role (a column of the grid)
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Permission is an API function a role may be granted (a row of the grid)
type Permission struct {
	ID           int64  `json:"id"`
	ServiceName  string `json:"service_name"`
	FunctionName string `json:"function_name"`
	Method       string `json:"method"`
	Value        string `json:"value"`
}

// Label returns "service.function"
func (p Permission) Label() string {
	return p.ServiceName + "." + p.FunctionName
}

// MenuAccess is one grant inside an AccessGrant
type MenuAccess struct {
	MenuID    int64 `json:"menu_id"`
	HasAccess bool  `json:"has_access"`
}

// AccessGrant is the wire shape of the access listing: grants grouped by role
type AccessGrant struct {
	RoleID int64        `json:"role_id"`
	Menus  []MenuAccess `json:"menus"`
}

// Update is one entry of a bulk update
type Update struct {
	RoleID       int64 `json:"role_id"`
	PermissionID int64 `json:"permission_id"`
	HasAccess    bool  `json:"has_access"`
}

// BulkUpdateRequest is the body of the bulk update endpoint
type BulkUpdateRequest struct {
	Updates []Update `json:"updates"`
}

// CellKey identifies a cell as "roleID-permissionID"
func CellKey(roleID, permissionID int64) string {
	return fmt.Sprintf("%d-%d", roleID, permissionID)
}

// Matrix is a sparse role -> permission -> granted map. Absent cells are false.
type Matrix map[int64]map[int64]bool

// FlattenAccess builds a Matrix from the grouped wire shape
func FlattenAccess(grants []AccessGrant) Matrix {
	m := make(Matrix, len(grants))
	for _, g := range grants {
		row, ok := m[g.RoleID]
		if !ok {
			row = make(map[int64]bool, len(g.Menus))
			m[g.RoleID] = row
		}
		for _, menu := range g.Menus {
			row[menu.MenuID] = menu.HasAccess
		}
	}
	return m
}

// Granted reports the stored value of a cell
func (m Matrix) Granted(roleID, permissionID int64) bool {
	return m[roleID][permissionID]
}

// sortUpdates orders updates by role, then permission
func sortUpdates(updates []Update) {
	sort.Slice(updates, func(i, j int) bool {
		if updates[i].RoleID != updates[j].RoleID {
			return updates[i].RoleID < updates[j].RoleID
		}
		return updates[i].PermissionID < updates[j].PermissionID
	})
}
