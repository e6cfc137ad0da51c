package permmatrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/platinummonkey/stockyard/pkg/observability"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotReady is returned when the editor is closed
	ErrNotReady = errors.New("permission editor is not open")
	// ErrBusy is returned while a load or save is running
	ErrBusy = errors.New("permission editor is busy")
	// ErrNothingToSave is returned by Save without pending changes
	ErrNothingToSave = errors.New("no pending changes")
	// ErrUnknownCell is returned when toggling a role or permission that is not loaded
	ErrUnknownCell = errors.New("unknown role or permission")
)

// State is the editor lifecycle state
type State int

const (
	StateClosed State = iota
	StateLoading
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LoadErrors reports which collections failed to load. Collections that
// loaded are still shown.
type LoadErrors struct {
	Roles       error
	Permissions error
	Access      error
}

func (e *LoadErrors) Error() string {
	var parts []string
	for _, f := range []struct {
		name string
		err  error
	}{{"roles", e.Roles}, {"permissions", e.Permissions}, {"access", e.Access}} {
		if f.err != nil {
			parts = append(parts, f.name+": "+f.err.Error())
		}
	}
	return "failed to load " + strings.Join(parts, "; ")
}

func (e *LoadErrors) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Roles, e.Permissions, e.Access} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *LoadErrors) empty() bool {
	return e.Roles == nil && e.Permissions == nil && e.Access == nil
}

// Option configures an Editor
type Option func(*Editor)

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(e *Editor) { e.logger = l }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Editor) { e.metrics = m }
}

// Editor edits the role x permission grid, keeping only the user's edits
// and persisting them as one batch.
type Editor struct {
	api     API
	logger  *observability.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	state       State
	generation  uint64
	roles       []Role
	permissions []Permission
	matrix      Matrix
	pending     map[string]Update
	loadErr     *LoadErrors
}

// NewEditor creates a closed editor
func NewEditor(api API, opts ...Option) *Editor {
	e := &Editor{
		api:     api,
		logger:  observability.NopLogger(),
		matrix:  Matrix{},
		pending: make(map[string]Update),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Open loads roles, permissions and access concurrently. A partial failure
// still leaves the editor Ready with the collections that loaded; the
// returned *LoadErrors names the ones that did not.
func (e *Editor) Open(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateLoading, StateSaving:
		e.mu.Unlock()
		return ErrBusy
	case StateClosed:
		e.resetLocked()
	}
	e.mu.Unlock()

	return e.load(ctx)
}

// Refresh reloads all collections. Pending edits are kept.
func (e *Editor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateClosed:
		e.mu.Unlock()
		return ErrNotReady
	case StateLoading, StateSaving:
		e.mu.Unlock()
		return ErrBusy
	}
	e.mu.Unlock()

	return e.load(ctx)
}

func (e *Editor) load(ctx context.Context) error {
	e.mu.Lock()
	e.state = StateLoading
	gen := e.generation
	e.mu.Unlock()

	var (
		g           errgroup.Group
		roles       []Role
		permissions []Permission
		access      []AccessGrant
		loadErr     LoadErrors
	)
	g.Go(func() error {
		roles, loadErr.Roles = e.api.ListRoles(ctx)
		e.recordLoad("roles", loadErr.Roles)
		return nil
	})
	g.Go(func() error {
		permissions, loadErr.Permissions = e.api.ListPermissions(ctx)
		e.recordLoad("permissions", loadErr.Permissions)
		return nil
	})
	g.Go(func() error {
		access, loadErr.Access = e.api.ListAccess(ctx)
		e.recordLoad("access", loadErr.Access)
		return nil
	})
	_ = g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Closed while loading
	if e.generation != gen {
		return ErrNotReady
	}

	// Failed collections keep their last loaded value
	if loadErr.Roles == nil {
		e.roles = roles
	}
	if loadErr.Permissions == nil {
		e.permissions = permissions
	}
	if loadErr.Access == nil {
		e.matrix = FlattenAccess(access)
	}
	e.state = StateReady

	if loadErr.empty() {
		e.loadErr = nil
		return nil
	}
	e.loadErr = &loadErr
	e.logger.WithError(e.loadErr).Warn("permission matrix loaded partially")
	return e.loadErr
}

// LoadErrors returns the failures of the last load, or nil
func (e *Editor) LoadErrors() *LoadErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadErr
}

// Toggle flips the displayed value of a cell and records it as pending.
// Toggling a cell back to its stored value keeps the pending entry.
func (e *Editor) Toggle(roleID, permissionID int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateClosed:
		return false, ErrNotReady
	case StateLoading, StateSaving:
		return false, ErrBusy
	}
	if !e.hasRoleLocked(roleID) || !e.hasPermissionLocked(permissionID) {
		return false, fmt.Errorf("%w: role %d, permission %d", ErrUnknownCell, roleID, permissionID)
	}

	granted := !e.grantedLocked(roleID, permissionID)
	e.pending[CellKey(roleID, permissionID)] = Update{
		RoleID:       roleID,
		PermissionID: permissionID,
		HasAccess:    granted,
	}
	return granted, nil
}

// Save submits every pending change as one bulk update. On success the
// pending set is cleared and the grid reloaded; on failure it is kept.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateClosed:
		e.mu.Unlock()
		return ErrNotReady
	case StateLoading, StateSaving:
		e.mu.Unlock()
		return ErrBusy
	}
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return ErrNothingToSave
	}
	updates := e.updatesLocked()
	e.state = StateSaving
	gen := e.generation
	e.mu.Unlock()

	err := e.api.BulkUpdate(ctx, updates)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return ErrNotReady
	}
	if err != nil {
		e.state = StateReady
		e.mu.Unlock()
		e.recordSave("failure", len(updates))
		e.logger.WithError(err).WithField("updates", len(updates)).Warn("failed to save permissions")
		return fmt.Errorf("failed to save permissions: %w", err)
	}
	e.pending = make(map[string]Update)
	e.mu.Unlock()

	e.recordSave("success", len(updates))
	e.logger.WithField("updates", len(updates)).Info("permissions saved")

	if err := e.load(ctx); err != nil {
		return fmt.Errorf("permissions saved, reload failed: %w", err)
	}
	return nil
}

// Close discards all state, including unsaved changes
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.generation++
}

func (e *Editor) resetLocked() {
	e.state = StateClosed
	e.roles = nil
	e.permissions = nil
	e.matrix = Matrix{}
	e.pending = make(map[string]Update)
	e.loadErr = nil
}

// Granted returns the displayed value of a cell: the pending edit if any,
// else the stored value
func (e *Editor) Granted(roleID, permissionID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grantedLocked(roleID, permissionID)
}

func (e *Editor) grantedLocked(roleID, permissionID int64) bool {
	if u, ok := e.pending[CellKey(roleID, permissionID)]; ok {
		return u.HasAccess
	}
	return e.matrix.Granted(roleID, permissionID)
}

// Pending returns the pending edits keyed by CellKey
func (e *Editor) Pending() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]bool, len(e.pending))
	for k, u := range e.pending {
		out[k] = u.HasAccess
	}
	return out
}

// Updates returns the pending edits in submission order
func (e *Editor) Updates() []Update {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updatesLocked()
}

func (e *Editor) updatesLocked() []Update {
	updates := make([]Update, 0, len(e.pending))
	for _, u := range e.pending {
		updates = append(updates, u)
	}
	sortUpdates(updates)
	return updates
}

func (e *Editor) hasRoleLocked(id int64) bool {
	for _, r := range e.roles {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (e *Editor) hasPermissionLocked(id int64) bool {
	for _, p := range e.permissions {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (e *Editor) recordLoad(collection string, err error) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	e.metrics.MatrixLoadsTotal.WithLabelValues(collection, status).Inc()
}

func (e *Editor) recordSave(status string, updates int) {
	if e.metrics == nil {
		return
	}
	e.metrics.MatrixSavesTotal.WithLabelValues(status).Inc()
	if status == "success" {
		e.metrics.MatrixSaveUpdates.Observe(float64(updates))
	}
}
