package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) query() []attendance.Record {
	records := make([]attendance.Record, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records
}

// UpsertRecord overwrites status, note and taker of the existing (student, date)
// record if any; the stored row keeps its original id and created_at.
func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.table {
		if existing.StudentID == rec.StudentID && existing.Date.Equal(rec.Date) {
			existing.Status = rec.Status
			existing.Note = rec.Note
			existing.TakenBy = rec.TakenBy
			existing.UpdatedAt = rec.UpdatedAt
			return *existing, nil
		}
	}

	rec.ID = uuid.New().String()
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := repo.query()
	if filter == nil {
		return records, nil
	}

	studentIDs := make(map[string]struct{}, len(filter.StudentIDs))
	for _, id := range filter.StudentIDs {
		studentIDs[id] = struct{}{}
	}
	statuses := make(map[attendance.Status]struct{}, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses[status] = struct{}{}
	}

	keep := records[:0]
	for _, r := range records {
		if filter.MadrassahID != "" && r.MadrassahID != filter.MadrassahID {
			continue
		}
		if len(studentIDs) > 0 {
			if _, ok := studentIDs[r.StudentID]; !ok {
				continue
			}
		}
		if len(statuses) > 0 {
			if _, ok := statuses[r.Status]; !ok {
				continue
			}
		}
		if !filter.DateFrom.IsZero() && r.Date.Before(filter.DateFrom.UTC()) {
			continue
		}
		if !filter.DateTo.IsZero() && r.Date.After(filter.DateTo.UTC()) {
			continue
		}
		keep = append(keep, r)
	}
	return keep, nil
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
