package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// attendanceRow maps the "attendance_record" table.
type attendanceRow struct {
	ID          string      `db:"id"`
	MadrassahID string      `db:"madrassah_id"`
	StudentID   string      `db:"student_id"`
	TakenBy     null.String `db:"taken_by"`
	Status      string      `db:"status"`
	Note        null.String `db:"note"`
	Date        time.Time   `db:"date"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo attendanceRepository) row(rec attendance.Record) attendanceRow {
	return attendanceRow{
		ID:          rec.ID,
		MadrassahID: rec.MadrassahID,
		StudentID:   rec.StudentID,
		TakenBy:     null.NewString(rec.TakenBy, rec.TakenBy != ""),
		Status:      string(rec.Status),
		Note:        null.NewString(rec.Note, rec.Note != ""),
		Date:        rec.Date.UTC(),
		CreatedAt:   null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(rec.UpdatedAt.UTC(), !rec.UpdatedAt.IsZero()),
	}
}

func (repo attendanceRepository) unrow(row attendanceRow) attendance.Record {
	return attendance.Record{
		ID:          row.ID,
		MadrassahID: row.MadrassahID,
		StudentID:   row.StudentID,
		TakenBy:     row.TakenBy.String,
		Status:      attendance.Status(row.Status),
		Note:        row.Note.String,
		Date:        row.Date,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// UpsertRecord inserts the record, or overwrites status, note and taker when
// one already exists for (student_id, date).
func (repo attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	exe := getExec(repo.db, exec)

	rec.ID = uuid.New().String()
	row := repo.row(rec)

	query := `
INSERT INTO attendance_record (id, madrassah_id, student_id, taken_by, status, note, date, created_at, updated_at)
VALUES (:id, :madrassah_id, :student_id, :taken_by, :status, :note, :date, :created_at, :updated_at)
ON CONFLICT (student_id, date)
DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, taken_by = EXCLUDED.taken_by, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, exe, query, row); err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting attendance record")
	}

	// re-read: on conflict the stored row keeps its original id and created_at
	var stored attendanceRow
	err := sqlx.GetContext(ctx, exe, &stored,
		exe.Rebind(`SELECT * FROM attendance_record WHERE student_id = ? AND date = ?`),
		rec.StudentID, row.Date)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "reading upserted attendance record")
	}
	return repo.unrow(stored), nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Record, error) {
	exe := getExec(repo.db, exec)

	query := `SELECT * FROM attendance_record`
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
				return nil, errors.Wrap(err, "querying attendance records")
			}
			clauses = append(clauses, inQuery)
			args = append(args, inArgs...)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				statuses = append(statuses, string(status))
			}
			inQuery, inArgs, err := sqlx.In(`status IN (?)`, statuses)
			if err != nil {
				return nil, errors.Wrap(err, "querying attendance records")
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

	var rows []attendanceRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, repo.unrow(row))
	}
	return records, nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	exe := getExec(repo.db, exec)

	if _, err := uuid.Parse(id); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var row attendanceRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT * FROM attendance_record WHERE id = ?`), id); err != nil {
		return attendance.Record{}, repo.trapNoRowsErr(err, "finding attendance record")
	}
	return repo.unrow(row), nil
}

func (repo attendanceRepository) DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM attendance_record WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance records")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance records")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance records")
	}
	return int(cnt), nil
}
