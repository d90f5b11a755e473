package accounts

import (
	"embed"
	"io/fs"
)

// MigrationsDir is the root of the embedded migrations. Each dialect has
// its own subdirectory, "sqlite" and "postgres".
const MigrationsDir = "data/sql/migrations"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migrations, rooted at the module.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsFS returns the embedded migrations rooted at MigrationsDir.
func MigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationsFS, MigrationsDir)
}
