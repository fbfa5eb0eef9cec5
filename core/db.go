package core

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

var orderingFieldRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// OrderingClause renders an ORDER BY clause (with leading space) for the given
// orderings, or "" when none remain. Ordering fields reach repositories from
// query strings, so anything that is not a plain lower_snake identifier is
// dropped rather than interpolated into SQL.
func OrderingClause(ordering []DBOrdering) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if !orderingFieldRegex.MatchString(ord.Field) {
			continue
		}
		clauses = append(clauses, ord.String())
	}
	if len(clauses) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
