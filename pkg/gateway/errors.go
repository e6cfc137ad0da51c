package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind discriminates gateway failures so callers can branch without parsing messages
type Kind string

const (
	KindAuth         Kind = "auth"          // 401, local tokens cleared
	KindForbidden    Kind = "forbidden"     // 403
	KindNotFound     Kind = "not_found"     // 404
	KindInvalidToken Kind = "invalid_token" // 419
	KindServer       Kind = "server"        // 500 and other 5xx
	KindUnavailable  Kind = "unavailable"   // 503
	KindClient       Kind = "client"        // any other non-2xx
	KindNetwork      Kind = "network"       // no HTTP response obtained
	KindCORS         Kind = "cors"          // opaque response
	KindBlocked      Kind = "blocked"       // rejected locally by the failure back-off
	KindDecode       Kind = "decode"        // 2xx with a body that is not JSON
	KindApplication  Kind = "application"   // 2xx envelope with status "no"
)

// Human-readable messages callers and users see
const (
	MsgSessionExpired = "session expired"
	MsgForbidden      = "forbidden"
	MsgNotFound       = "not found"
	MsgInvalidToken   = "invalid token, please re-login"
	MsgServerError    = "internal error, retry later"
	MsgUnavailable    = "service unavailable"
	MsgCORS           = "CORS error"
	MsgBlocked        = "too many failed attempts, retry later"
)

// Error is the single error shape produced by the gateway
type Error struct {
	Kind    Kind
	Status  int
	Method  string
	URL     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NeedsLogin reports whether the user must authenticate again
func (e *Error) NeedsLogin() bool {
	return e.Kind == KindAuth || e.Kind == KindInvalidToken
}

// KindOf returns the kind of a gateway error, or "" for other errors
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// IsKind reports whether err is a gateway error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// classifyResponse turns a non-2xx response into an *Error. body may be nil.
func classifyResponse(method, url string, status int, body []byte) *Error {
	e := &Error{Method: method, URL: url, Status: status}

	// Opaque responses carry neither status nor readable body
	if status == 0 {
		e.Kind = KindCORS
		e.Message = MsgCORS
		return e
	}

	serverMsg := bodyMessage(body)

	switch {
	case status == http.StatusUnauthorized:
		e.Kind, e.Message = KindAuth, MsgSessionExpired
		return e
	case status == 419:
		e.Kind, e.Message = KindInvalidToken, MsgInvalidToken
		return e
	case status == http.StatusForbidden:
		e.Kind, e.Message = KindForbidden, MsgForbidden
	case status == http.StatusNotFound:
		e.Kind, e.Message = KindNotFound, MsgNotFound
	case status == http.StatusServiceUnavailable:
		e.Kind, e.Message = KindUnavailable, MsgUnavailable
	case status >= 500:
		e.Kind, e.Message = KindServer, MsgServerError
	default:
		e.Kind, e.Message = KindClient, fmt.Sprintf("request failed with status %d", status)
	}

	if serverMsg != "" {
		e.Message = serverMsg
	}
	return e
}

// bodyMessage extracts "message" or "error" from a JSON error body
func bodyMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{payload.Message, payload.Error} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		// Validation errors often arrive as objects or arrays
		return string(raw)
	}
	return ""
}

func networkError(method, url string, err error) *Error {
	msg := "network error: " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Kind: KindNetwork, Method: method, URL: url, Message: msg, Err: err}
}
