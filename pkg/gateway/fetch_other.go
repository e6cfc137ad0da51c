//go:build !(js && wasm)

package gateway

import "net/http"

// setFetchOptions is a no-op outside the browser; header names containing
// ':' are rejected by the native transport.
func setFetchOptions(h http.Header, opts *Options) {}
