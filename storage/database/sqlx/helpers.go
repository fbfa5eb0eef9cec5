package sqlxrepos

import (
	"github.com/jmoiron/sqlx"

	"github.com/maktabhq/maktab/core"
)

// getExec returns the service-provided executor (a transaction, typically)
// when it supports sqlx, falling back to the repository's own handle.
func getExec(db *sqlx.DB, svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return db
}
