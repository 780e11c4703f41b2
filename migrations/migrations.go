// Package migrations embeds the versioned SQL schema for each supported database and
// exposes it as a golang-migrate source.
package migrations

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect names a migration directory.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Source returns a golang-migrate source driver over the dialect's migrations.
func Source(d Dialect) (source.Driver, error) {
	src, err := iofs.New(files, string(d))
	if err != nil {
		return nil, fmt.Errorf("opening %s migrations: %w", d, err)
	}
	return src, nil
}
