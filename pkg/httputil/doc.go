// Package httputil provides the JSON response helpers, request parsing and
// middleware used by the development server.
//
// Responses follow the dashboard envelope:
//
//	httputil.WriteOK(w, roles)             // {"status":"ok","data":[...]}
//	httputil.WriteRejected(w, "locked")    // {"status":"no","message":"locked"}
//	httputil.WriteUnauthorized(w, "...")   // 401 {"status":"no","message":"..."}
//
// DataTables listings use ParsePaging and WritePage.
//
// Middleware composes with Chain, outermost first:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.BearerAuthMiddleware(tokens),
//	)
package httputil
