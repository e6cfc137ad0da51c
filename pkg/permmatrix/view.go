package permmatrix

// Cell is one role x permission intersection
type Cell struct {
	RoleID       int64
	PermissionID int64
	Granted      bool
	Pending      bool
}

// Row is one permission across all roles
type Row struct {
	Permission Permission
	Cells      []Cell
}

// View is a snapshot of the grid: columns are roles, rows are permissions
type View struct {
	Roles []Role
	Rows  []Row
}

// Summary is the editor footer
type Summary struct {
	Roles       int
	Permissions int
	Unsaved     int
}

// View returns a snapshot of the grid with pending edits applied
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		Roles: append([]Role(nil), e.roles...),
		Rows:  make([]Row, 0, len(e.permissions)),
	}
	for _, p := range e.permissions {
		row := Row{Permission: p, Cells: make([]Cell, 0, len(e.roles))}
		for _, r := range e.roles {
			_, pending := e.pending[CellKey(r.ID, p.ID)]
			row.Cells = append(row.Cells, Cell{
				RoleID:       r.ID,
				PermissionID: p.ID,
				Granted:      e.grantedLocked(r.ID, p.ID),
				Pending:      pending,
			})
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Summary returns the grid dimensions and the number of unsaved edits
func (e *Editor) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		Roles:       len(e.roles),
		Permissions: len(e.permissions),
		Unsaved:     len(e.pending),
	}
}
