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
	"github.com/maktabhq/maktab/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

// studentRow maps the "student" table.
type studentRow struct {
	ID          string      `db:"id"`
	MadrassahID string      `db:"madrassah_id"`
	Name        null.String `db:"name"`
	Section     null.String `db:"section"`
	GuardianID  null.String `db:"guardian_id"`
	TeacherID   null.String `db:"teacher_id"`
	IsActive    null.Bool   `db:"is_active"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo studentRepository) row(std student.Student) studentRow {
	return studentRow{
		ID:          std.ID,
		MadrassahID: std.MadrassahID,
		Name:        null.NewString(std.Name, std.Name != ""),
		Section:     null.NewString(std.Section, std.Section != ""),
		GuardianID:  null.NewString(std.GuardianID, std.GuardianID != ""),
		TeacherID:   null.NewString(std.TeacherID, std.TeacherID != ""),
		IsActive:    null.BoolFromPtr(std.IsActive),
		CreatedAt:   null.NewTime(std.CreatedAt.UTC(), !std.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(std.UpdatedAt.UTC(), !std.UpdatedAt.IsZero()),
	}
}

func (repo studentRepository) unrow(row studentRow) student.Student {
	return student.Student{
		ID:          row.ID,
		MadrassahID: row.MadrassahID,
		Name:        row.Name.String,
		Section:     row.Section.String,
		GuardianID:  row.GuardianID.String,
		TeacherID:   row.TeacherID.String,
		IsActive:    row.IsActive.Ptr(),
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return student.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	row := repo.row(std)

	query := `
INSERT INTO student (id, madrassah_id, name, section, guardian_id, teacher_id, is_active, created_at, updated_at)
VALUES (:id, :madrassah_id, :name, :section, :guardian_id, :teacher_id, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.unrow(row), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	exe := getExec(repo.db, exec)

	query := `SELECT * FROM student`
	var clauses []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			clauses = append(clauses, `name ILIKE ?`)
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.MadrassahID != "" {
			clauses = append(clauses, `madrassah_id = ?`)
			args = append(args, filter.MadrassahID)
		}
		if filter.TeacherID != "" {
			clauses = append(clauses, `teacher_id = ?`)
			args = append(args, filter.TeacherID)
		}
		if filter.GuardianID != "" {
			clauses = append(clauses, `guardian_id = ?`)
			args = append(args, filter.GuardianID)
		}
		if filter.Section != "" {
			clauses = append(clauses, `section = ?`)
			args = append(args, filter.Section)
		}
		if filter.IsActive != nil {
			clauses = append(clauses, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += core.OrderingClause(ordering)

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unrow(row))
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	exe := getExec(repo.db, exec)

	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT * FROM student WHERE id = ?`), id); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student")
	}
	return repo.unrow(row), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	row := repo.row(std)
	query := `
UPDATE student
SET name = :name, section = :section, guardian_id = :guardian_id, teacher_id = :teacher_id,
    is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return repo.unrow(row), nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM student WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return int(cnt), nil
}
