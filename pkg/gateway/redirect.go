package gateway

import (
	"context"
	"errors"
	"net/http"
)

// ErrRedirectNotAllowed is returned when Options.Redirect is "error" and the
// server redirects
var ErrRedirectNotAllowed = errors.New("redirect not allowed")

const maxRedirects = 10

type redirectPolicyKey struct{}

func withRedirectPolicy(ctx context.Context, policy string) context.Context {
	if policy == "" {
		return ctx
	}
	return context.WithValue(ctx, redirectPolicyKey{}, policy)
}

// checkRedirect enforces the per-request policy before deferring to next
func checkRedirect(next func(*http.Request, []*http.Request) error) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		policy, _ := req.Context().Value(redirectPolicyKey{}).(string)
		switch policy {
		case "error":
			return ErrRedirectNotAllowed
		case "manual":
			return http.ErrUseLastResponse
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
}
