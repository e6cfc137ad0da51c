// Package gateway is the HTTP access layer of the dashboard.
//
// # Overview
//
// A Client builds authenticated JSON requests against the dashboard API and
// normalizes every failure into *Error. GET responses are cached for CacheTTL
// and concurrent identical GETs share one network call. A key that fails
// MaxRetryAttempts times is rejected locally until RetryDelay has passed.
//
// # Usage
//
//	client, err := gateway.New(gateway.DefaultConfig("https://api.example.com/api"),
//		gateway.WithTokenStore(store),
//		gateway.WithMetrics(metrics),
//	)
//	if err != nil {
//		return err
//	}
//	client.Start()
//	defer client.Shutdown(context.Background())
//
//	roles, err := gateway.GetJSON[[]Role](ctx, client, "/roles", nil)
//	switch gateway.KindOf(err) {
//	case gateway.KindAuth:
//		// prompt for login
//	case gateway.KindBlocked:
//		// back off
//	}
//
// # Cache Keys
//
// The cache key of a GET is "GET:" followed by the resolved URL, including the
// query string. ClearCache matches keys by substring:
//
//	client.ClearCache(ctx, "/roles") // after a mutation touching roles
//
// # Related Packages
//
//   - pkg/gateway/cache: Memory and Redis response stores
//   - pkg/credentials: File-backed TokenStore
//   - pkg/permmatrix: Permission matrix editor built on the gateway
package gateway
