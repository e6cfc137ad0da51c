package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/stockyard/pkg/observability"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypePermissionGrant    EventType = "authz.permission_grant"
	EventTypePermissionRevoke   EventType = "authz.permission_revoke"
	EventTypeBulkUpdateRejected EventType = "authz.bulk_update_rejected"
	EventTypeBulkUpdateFailed   EventType = "authz.bulk_update_failed"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is a fingerprint of the bearer token, never the token itself
	Actor string `json:"actor,omitempty"`

	RoleID       int64 `json:"role_id,omitempty"`
	PermissionID int64 `json:"permission_id,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewEvent creates an event with the request's context filled in. r may be nil.
func NewEvent(r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
	if r == nil {
		return event
	}

	event.IPAddress = clientIP(r)
	event.UserAgent = r.UserAgent()
	event.RequestID = observability.GetRequestID(r.Context())
	event.Method = r.Method
	event.Path = r.URL.Path
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		event.Actor = Fingerprint(token)
	}
	return event
}

// PermissionEvent returns the grant or revoke event for one stored update
func PermissionEvent(r *http.Request, roleID, permissionID int64, hasAccess bool) *Event {
	eventType := EventTypePermissionRevoke
	if hasAccess {
		eventType = EventTypePermissionGrant
	}
	event := NewEvent(r, eventType, EventStatusSuccess)
	event.RoleID = roleID
	event.PermissionID = permissionID
	return event
}

// Fingerprint identifies a token in logs without revealing it
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP, or the peer host
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
