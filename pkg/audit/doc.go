// Package audit records who changed which role permission.
//
// Every stored grant or revoke becomes one Event; rejected and failed bulk
// updates are recorded too. Events carry the request id, client address and
// a fingerprint of the bearer token.
//
// Loggers:
//   - FileLogger appends JSON lines to <dir>/audit.log with optional size
//     based rotation
//   - LogLogger writes events through the structured logger
//   - MultiLogger fans out to several loggers
//
// Usage:
//
//	file, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: dir, Rotate: true})
//	logger := audit.NewMultiLogger(audit.NewLogLogger(log), file)
//	logger.Log(ctx, audit.PermissionEvent(r, roleID, permissionID, true))
package audit
