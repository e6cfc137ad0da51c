// Package cli provides the stockyard command-line interface.
//
// # Commands
//
// login / logout: manage the bearer token in the credentials file
//
//	stockyard login --token "$TOKEN"
//	stockyard logout
//
// get: GET endpoints through the gateway (cached, deduplicated, backed off)
//
//	stockyard get /roles
//	stockyard get /permissions/paged -p start=0 -p length=10 --no-cache
//	stockyard get /roles /permissions /role-permissions
//
// post: POST a JSON or multipart body
//
//	stockyard post /role-permissions/bulk-update \
//		--data '{"updates":[{"role_id":3,"permission_id":1,"has_access":true}]}'
//	stockyard post /livestock/import -F herd=north --file sheet=./herd.csv
//
// permissions: view and edit the role permission matrix
//
//	stockyard permissions show
//	stockyard permissions toggle --role 3 --permission 1 --save
//
// cache: inspect the response cache
//
//	stockyard --cache redis cache stats
//	stockyard --cache redis cache clear /roles
//
// # Configuration
//
// Settings come from STOCKYARD_* environment variables (see pkg/config).
// --api-url, --credentials, --log-level and --cache override them.
package cli
