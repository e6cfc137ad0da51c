//go:build js && wasm

package gateway

import "net/http"

// setFetchOptions passes fetch flags to the browser through the headers the
// js/wasm transport reads and strips.
func setFetchOptions(h http.Header, opts *Options) {
	if opts.Credentials != "" {
		h.Set("js.fetch:credentials", opts.Credentials)
	}
	if opts.Mode != "" {
		h.Set("js.fetch:mode", opts.Mode)
	}
	if opts.Redirect != "" {
		h.Set("js.fetch:redirect", opts.Redirect)
	}
}
