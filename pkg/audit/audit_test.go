package audit

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_Basic(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewFileLogger(FileLoggerConfig{BasePath: tmpDir})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	require.NoError(t, logger.Log(ctx, PermissionEvent(nil, 3, 9, true)))
	require.NoError(t, logger.Log(ctx, PermissionEvent(nil, 3, 4, false)))

	assert.FileExists(t, filepath.Join(tmpDir, "audit.log"))

	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypePermissionGrant, events[0].EventType)
	assert.Equal(t, int64(9), events[0].PermissionID)
	assert.Equal(t, EventTypePermissionRevoke, events[1].EventType)
	assert.NotEqual(t, events[0].ID, events[1].ID)

	events, err = logger.ReadLogs(1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFileLogger_Rotation(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewFileLogger(FileLoggerConfig{BasePath: tmpDir, Rotate: true, MaxSize: 64, MaxFiles: 2})
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, logger.Log(context.Background(), PermissionEvent(nil, 1, int64(i+1), true)))
	}

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "audit-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
	assert.LessOrEqual(t, len(rotated), 2)
}

func TestFileLogger_Closed(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
	assert.Error(t, logger.Log(context.Background(), NewEvent(nil, EventTypeBulkUpdateFailed, EventStatusFailure)))
}

func TestNewFileLogger_RequiresPath(t *testing.T) {
	_, err := NewFileLogger(FileLoggerConfig{})
	assert.Error(t, err)
}

func TestNewEvent_FromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/role-permissions/bulk-update", nil)
	r.Header.Set("Authorization", "Bearer dev-token")
	r.Header.Set("X-Forwarded-For", "10.0.0.7, 172.16.0.1")
	r.Header.Set("User-Agent", "stockyard-test")
	r = r.WithContext(observability.WithRequestID(r.Context(), "req-1"))

	event := NewEvent(r, EventTypeBulkUpdateRejected, EventStatusDenied)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "10.0.0.7", event.IPAddress)
	assert.Equal(t, "stockyard-test", event.UserAgent)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "POST", event.Method)
	assert.Equal(t, "/api/role-permissions/bulk-update", event.Path)
	assert.Equal(t, Fingerprint("dev-token"), event.Actor)
	assert.NotContains(t, event.Actor, "dev-token")
	assert.Len(t, event.Actor, 12)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(r))
}

func TestLogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogLogger(observability.NewLogger(observability.InfoLevel, &buf))

	require.NoError(t, logger.Log(context.Background(), PermissionEvent(nil, 2, 5, true)))

	out := buf.String()
	assert.Contains(t, out, `"event_type":"authz.permission_grant"`)
	assert.Contains(t, out, `"role_id":2`)
	assert.Contains(t, out, `"audit":true`)
}

type failingLogger struct{ closed bool }

func (f *failingLogger) Log(context.Context, *Event) error { return errors.New("disk full") }
func (f *failingLogger) Close() error                      { f.closed = true; return nil }

func TestMultiLogger(t *testing.T) {
	dir := t.TempDir()
	file, err := NewFileLogger(FileLoggerConfig{BasePath: dir})
	require.NoError(t, err)
	failing := &failingLogger{}

	multi := NewMultiLogger(failing, file)
	err = multi.Log(context.Background(), PermissionEvent(nil, 1, 1, true))
	assert.ErrorContains(t, err, "disk full")

	events, err := file.ReadLogs(0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "later loggers still run")

	require.NoError(t, multi.Close())
	assert.True(t, failing.closed)

	_, err = os.Stat(filepath.Join(dir, "audit.log"))
	assert.NoError(t, err)
}

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, FromContext(ctx).Log(ctx, NewEvent(nil, EventTypePermissionGrant, EventStatusSuccess)))

	failing := &failingLogger{}
	ctx = WithLogger(ctx, failing)
	assert.Same(t, failing, FromContext(ctx))
}
