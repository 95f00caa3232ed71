// Package all wires every built-in fix store backend into fixstore.Open.
//
// Import it for side effects from the binary's wiring layer:
//
//	import _ "daops/internal/fixstore/all"
//
// The kinds made available are "http", "sqlite", "postgres", "mssql" and
// "mysql", in addition to the "memory" and "dir" kinds built into fixstore.
// A binary that needs only some backends can import those packages directly.
package all

import (
	_ "daops/internal/fixstore/http"
	_ "daops/internal/fixstore/mssql"
	_ "daops/internal/fixstore/mysql"
	_ "daops/internal/fixstore/postgres"
	_ "daops/internal/fixstore/sqlite"
)
