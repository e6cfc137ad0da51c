// Package permmatrix edits which roles may call which API functions.
//
// The Editor loads roles, permissions and the stored role/permission grants
// concurrently, keeps the user's edits as a pending set on top of the stored
// matrix, and submits them as one bulk update:
//
//	api := permmatrix.NewGatewayAPI(client)
//	ed := permmatrix.NewEditor(api)
//	if err := ed.Open(ctx); err != nil {
//		var loadErrs *permmatrix.LoadErrors
//		if !errors.As(err, &loadErrs) {
//			return err
//		}
//	}
//	ed.Toggle(1, 9)
//	err := ed.Save(ctx)
//
// Only cells the user touched are sent. A failed save keeps the pending set so
// it can be retried; a successful one reloads the matrix from the backend.
//
// Render prints a View as a text grid for terminals.
package permmatrix
