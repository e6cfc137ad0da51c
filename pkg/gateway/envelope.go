package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// Envelope status values
const (
	StatusOK = "ok"
	StatusNo = "no"
)

// Envelope is the response shape of mutation endpoints
type Envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// Page is the DataTables-style response of paginated listings
type Page[T any] struct {
	Draw            int `json:"draw,omitempty"`
	Data            []T `json:"data"`
	RecordsTotal    int `json:"recordsTotal"`
	RecordsFiltered int `json:"recordsFiltered"`
}

// Detail is the response of "one record with its detail rows" endpoints
type Detail[H, T any] struct {
	Status  string `json:"status"`
	Header  H      `json:"header"`
	Data    []T    `json:"data"`
	Message string `json:"message,omitempty"`
}

// DecodeEnvelope decodes raw and returns its data. A "no" status becomes an
// *Error of KindApplication carrying the server message.
func DecodeEnvelope[T any](raw json.RawMessage) (T, error) {
	var env Envelope[T]
	if err := decode(raw, &env); err != nil {
		var zero T
		return zero, err
	}
	if err := rejected(env.Status, env.Message); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}

// DecodePage decodes a paginated listing
func DecodePage[T any](raw json.RawMessage) (Page[T], error) {
	var page Page[T]
	if err := decode(raw, &page); err != nil {
		return Page[T]{}, err
	}
	return page, nil
}

// DecodeDetail decodes a header with detail rows
func DecodeDetail[H, T any](raw json.RawMessage) (Detail[H, T], error) {
	var detail Detail[H, T]
	if err := decode(raw, &detail); err != nil {
		return Detail[H, T]{}, err
	}
	if err := rejected(detail.Status, detail.Message); err != nil {
		return Detail[H, T]{}, err
	}
	return detail, nil
}

// GetJSON issues a GET and decodes the body into T
func GetJSON[T any](ctx context.Context, c *Client, endpoint string, opts *Options) (T, error) {
	var out T
	raw, err := c.Get(ctx, endpoint, opts)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

// PostJSON issues a POST and decodes the body into T
func PostJSON[T any](ctx context.Context, c *Client, endpoint string, data any, opts *Options) (T, error) {
	var out T
	raw, err := c.Request(ctx, http.MethodPost, endpoint, data, opts)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Kind: KindDecode, Message: "unexpected response shape: " + err.Error(), Err: err}
	}
	return nil
}

func rejected(status, message string) error {
	if status != StatusNo {
		return nil
	}
	if message == "" {
		message = "request rejected"
	}
	return &Error{Kind: KindApplication, Message: message}
}
