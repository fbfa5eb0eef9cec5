package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/activity"
)

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

// activityRow maps the "activity_record" table.
type activityRow struct {
	ID          string      `db:"id"`
	MadrassahID string      `db:"madrassah_id"`
	StudentID   string      `db:"student_id"`
	AuthorID    null.String `db:"author_id"`
	Type        string      `db:"type"`
	Quality     null.String `db:"quality"`
	Date        null.Time   `db:"date"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo activityRepository) row(rec activity.Record) activityRow {
	return activityRow{
		ID:          rec.ID,
		MadrassahID: rec.MadrassahID,
		StudentID:   rec.StudentID,
		AuthorID:    null.NewString(rec.AuthorID, rec.AuthorID != ""),
		Type:        string(rec.Type),
		Quality:     null.NewString(rec.Quality, rec.Quality != ""),
		Date:        null.NewTime(rec.Date.UTC(), !rec.Date.IsZero()),
		CreatedAt:   null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(rec.UpdatedAt.UTC(), !rec.UpdatedAt.IsZero()),
	}
}

func (repo activityRepository) unrow(row activityRow) activity.Record {
	return activity.Record{
		ID:          row.ID,
		MadrassahID: row.MadrassahID,
		StudentID:   row.StudentID,
		AuthorID:    row.AuthorID.String,
		Type:        activity.Type(row.Type),
		Quality:     row.Quality.String,
		Date:        row.Date.Time,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo activityRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return activity.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo activityRepository) CreateRecord(ctx context.Context, rec activity.Record, exec ...core.DBExecutor) (activity.Record, error) {
	rec.ID = uuid.New().String()
	row := repo.row(rec)

	query := `
INSERT INTO activity_record (id, madrassah_id, student_id, author_id, type, quality, date, created_at, updated_at)
VALUES (:id, :madrassah_id, :student_id, :author_id, :type, :quality, :date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return activity.Record{}, errors.Wrap(err, "inserting activity record")
	}
	return repo.unrow(row), nil
}

func (repo activityRepository) QueryRecords(ctx context.Context, filter *activity.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]activity.Record, error) {
	exe := getExec(repo.db, exec)

	query := `SELECT * FROM activity_record`
	var clauses []string
	var args []interface{}

	if filter != nil {
		if filter.MadrassahID != "" {
			clauses = append(clauses, `madrassah_id = ?`)
			args = append(args, filter.MadrassahID)
		}
		if len(filter.StudentIDs) > 0 {
			inQuery, inArgs, err := sqlx.In(`student_id IN (?)`, filter.StudentIDs)
			if err != nil {
				return nil, errors.Wrap(err, "querying activity records")
			}
			clauses = append(clauses, inQuery)
			args = append(args, inArgs...)
		}
		if filter.AuthorID != "" {
			clauses = append(clauses, `author_id = ?`)
			args = append(args, filter.AuthorID)
		}
		if len(filter.Types) > 0 {
			types := make([]string, 0, len(filter.Types))
			for _, typ := range filter.Types {
				types = append(types, string(typ))
			}
			inQuery, inArgs, err := sqlx.In(`type IN (?)`, types)
			if err != nil {
				return nil, errors.Wrap(err, "querying activity records")
			}
			clauses = append(clauses, inQuery)
			args = append(args, inArgs...)
		}
		if !filter.DateFrom.IsZero() {
			clauses = append(clauses, `date >= ?`)
			args = append(args, filter.DateFrom.UTC())
		}
		if !filter.DateTo.IsZero() {
			clauses = append(clauses, `date <= ?`)
			args = append(args, filter.DateTo.UTC())
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += core.OrderingClause(ordering)

	var rows []activityRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying activity records")
	}
	records := make([]activity.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unrow(row))
	}
	return records, nil
}

func (repo activityRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (activity.Record, error) {
	exe := getExec(repo.db, exec)

	if _, err := uuid.Parse(id); err != nil {
		return activity.Record{}, activity.ErrNotFound
	}
	var row activityRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT * FROM activity_record WHERE id = ?`), id); err != nil {
		return activity.Record{}, repo.trapNoRowsErr(err, "finding activity record")
	}
	return repo.unrow(row), nil
}

func (repo activityRepository) UpdateRecord(ctx context.Context, rec activity.Record, exec ...core.DBExecutor) (activity.Record, error) {
	row := repo.row(rec)
	query := `
UPDATE activity_record
SET type = :type, quality = :quality, date = :date, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return activity.Record{}, errors.Wrap(err, "updating activity record")
	}
	return repo.unrow(row), nil
}

func (repo activityRepository) DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM activity_record WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting activity records")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting activity records")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting activity records")
	}
	return int(cnt), nil
}
