package repomanager

import (
	"context"
	"database/sql"

	"github.com/clipstream/clipstream/internal/dbx"
	"github.com/clipstream/clipstream/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX (connection or
// transaction) and exposes the schema migration hook.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
