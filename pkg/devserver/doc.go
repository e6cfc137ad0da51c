// Package devserver is a reference backend for the permission endpoints the
// dashboard talks to. It serves roles, permissions and role/permission grants
// from SQLite or PostgreSQL behind bearer-token auth, and is used by the CLI
// for local development and by the package tests as a real peer.
//
// Routes, relative to the path prefix:
//
//	GET  /roles                        envelope of roles
//	GET  /permissions                  envelope of permissions
//	GET  /permissions/paged            data-table page (draw, start, length, search[value])
//	GET  /role-permissions             bare array of grants grouped by role
//	POST /role-permissions/bulk-update upsert of {updates: [...]}
//
// A bulk update naming an unknown role or permission is rejected as a whole.
package devserver
