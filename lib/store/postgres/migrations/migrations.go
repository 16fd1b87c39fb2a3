// Package migrations embeds the SQL schema of the postgres store. Files are applied by golang-migrate through the
// iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Version is the schema version the store expects.
const Version = 1
