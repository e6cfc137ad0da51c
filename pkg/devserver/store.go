package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/platinummonkey/stockyard/pkg/permmatrix"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUnknownReference is returned when an update names a role or permission
// that does not exist
var ErrUnknownReference = errors.New("unknown role or permission")

// OpenDB opens and pings a database
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == SQLite.Driver {
		// A shared in-memory database lives as long as one connection does
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

// Store persists roles, permissions and grants
type Store struct {
	db      *sql.DB
	dialect Dialect
	metrics *observability.OTelMetrics
}

// NewStore creates a store. metrics may be nil.
func NewStore(db *sql.DB, dialect Dialect, metrics *observability.OTelMetrics) *Store {
	return &Store{db: db, dialect: dialect, metrics: metrics}
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordDBQuery(ctx, op, time.Since(start), err)
	s.metrics.RecordOpenConnections(ctx, s.db.Stats().OpenConnections)
}

// ListRoles returns all roles ordered by id
func (s *Store) ListRoles(ctx context.Context) (roles []permmatrix.Role, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "list_roles", start, err) }()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM roles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles = []permmatrix.Role{}
	for rows.Next() {
		var r permmatrix.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

const permissionColumns = "id, service_name, function_name, method, value"

func scanPermissions(rows *sql.Rows) ([]permmatrix.Permission, error) {
	perms := []permmatrix.Permission{}
	for rows.Next() {
		var p permmatrix.Permission
		if err := rows.Scan(&p.ID, &p.ServiceName, &p.FunctionName, &p.Method, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListPermissions returns all permissions ordered by service and function
func (s *Store) ListPermissions(ctx context.Context) (perms []permmatrix.Permission, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "list_permissions", start, err) }()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+permissionColumns+" FROM permissions ORDER BY service_name, function_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// PermissionPage is one page of a filtered permission listing
type PermissionPage struct {
	Permissions []permmatrix.Permission
	Total       int
	Filtered    int
}

// PagePermissions returns permissions whose service, function or value
// contains search (case-insensitive)
func (s *Store) PagePermissions(ctx context.Context, search string, offset, limit int) (page PermissionPage, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "page_permissions", start, err) }()

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM permissions").Scan(&page.Total); err != nil {
		return PermissionPage{}, fmt.Errorf("failed to count permissions: %w", err)
	}

	where := ""
	var args []interface{}
	if search != "" {
		where = " WHERE LOWER(service_name) LIKE ? OR LOWER(function_name) LIKE ? OR LOWER(value) LIKE ?"
		pattern := "%" + strings.ToLower(search) + "%"
		args = []interface{}{pattern, pattern, pattern}
	}

	if err = s.db.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT COUNT(*) FROM permissions"+where), args...,
	).Scan(&page.Filtered); err != nil {
		return PermissionPage{}, fmt.Errorf("failed to count filtered permissions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.dialect.Rebind("SELECT "+permissionColumns+" FROM permissions"+where+
			" ORDER BY service_name, function_name LIMIT ? OFFSET ?"),
		append(args, limit, offset)...,
	)
	if err != nil {
		return PermissionPage{}, fmt.Errorf("failed to page permissions: %w", err)
	}
	defer rows.Close()

	if page.Permissions, err = scanPermissions(rows); err != nil {
		return PermissionPage{}, err
	}
	return page, nil
}

// ListAccess returns the stored grants grouped by role
func (s *Store) ListAccess(ctx context.Context) (grants []permmatrix.AccessGrant, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "list_access", start, err) }()

	rows, err := s.db.QueryContext(ctx,
		"SELECT role_id, permission_id, has_access FROM role_permissions ORDER BY role_id, permission_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list access: %w", err)
	}
	defer rows.Close()

	grants = []permmatrix.AccessGrant{}
	for rows.Next() {
		var roleID int64
		var menu permmatrix.MenuAccess
		if err := rows.Scan(&roleID, &menu.MenuID, &menu.HasAccess); err != nil {
			return nil, fmt.Errorf("failed to scan access: %w", err)
		}
		if n := len(grants); n == 0 || grants[n-1].RoleID != roleID {
			grants = append(grants, permmatrix.AccessGrant{RoleID: roleID})
		}
		last := &grants[len(grants)-1]
		last.Menus = append(last.Menus, menu)
	}
	return grants, rows.Err()
}

// BulkUpdate upserts every update in one transaction. Nothing is written if
// any update references an unknown role or permission.
func (s *Store) BulkUpdate(ctx context.Context, updates []permmatrix.Update) (n int, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "bulk_update", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bulk update: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	roles, err := idSet(ctx, tx, "SELECT id FROM roles")
	if err != nil {
		return 0, err
	}
	perms, err := idSet(ctx, tx, "SELECT id FROM permissions")
	if err != nil {
		return 0, err
	}
	for _, u := range updates {
		if !roles[u.RoleID] || !perms[u.PermissionID] {
			return 0, fmt.Errorf("%w: role %d, permission %d", ErrUnknownReference, u.RoleID, u.PermissionID)
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(`
		INSERT INTO role_permissions (role_id, permission_id, has_access, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (role_id, permission_id)
		DO UPDATE SET has_access = excluded.has_access, updated_at = excluded.updated_at`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk update: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		if _, err = stmt.ExecContext(ctx, u.RoleID, u.PermissionID, u.HasAccess, now); err != nil {
			return 0, fmt.Errorf("failed to update role %d permission %d: %w", u.RoleID, u.PermissionID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk update: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordPermissionUpdates(ctx, len(updates))
	}
	return len(updates), nil
}

func idSet(ctx context.Context, tx *sql.Tx, query string) (map[int64]bool, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CreateRole inserts a role and returns it with its id
func (s *Store) CreateRole(ctx context.Context, name string) (role permmatrix.Role, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "create_role", start, err) }()

	role.Name = name
	err = s.db.QueryRowContext(ctx,
		s.dialect.Rebind("INSERT INTO roles (name) VALUES (?) RETURNING id"), name,
	).Scan(&role.ID)
	if err != nil {
		return permmatrix.Role{}, fmt.Errorf("failed to create role %s: %w", name, err)
	}
	return role, nil
}

// CreatePermission inserts a permission and returns it with its id
func (s *Store) CreatePermission(ctx context.Context, p permmatrix.Permission) (_ permmatrix.Permission, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "create_permission", start, err) }()

	if p.Method == "" {
		p.Method = "GET"
	}
	err = s.db.QueryRowContext(ctx,
		s.dialect.Rebind("INSERT INTO permissions (service_name, function_name, method, value) VALUES (?, ?, ?, ?) RETURNING id"),
		p.ServiceName, p.FunctionName, p.Method, p.Value,
	).Scan(&p.ID)
	if err != nil {
		return permmatrix.Permission{}, fmt.Errorf("failed to create permission %s: %w", p.Label(), err)
	}
	return p, nil
}
