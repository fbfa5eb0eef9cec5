package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) *activityRepository {
	return &activityRepository{db: db.activity}
}

func (repo *activityRepository) query() []activity.Record {
	records := make([]activity.Record, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records
}

func (repo *activityRepository) CreateRecord(ctx context.Context, rec activity.Record, exec ...core.DBExecutor) (activity.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec.ID = uuid.New().String()
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *activityRepository) QueryRecords(ctx context.Context, filter *activity.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]activity.Record, error) {
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
	types := make(map[activity.Type]struct{}, len(filter.Types))
	for _, typ := range filter.Types {
		types[typ] = struct{}{}
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
		if filter.AuthorID != "" && r.AuthorID != filter.AuthorID {
			continue
		}
		if len(types) > 0 {
			if _, ok := types[r.Type]; !ok {
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

func (repo *activityRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (activity.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return activity.Record{}, activity.ErrNotFound
}

func (repo *activityRepository) UpdateRecord(ctx context.Context, rec activity.Record, exec ...core.DBExecutor) (activity.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[rec.ID]; !ok {
		return activity.Record{}, activity.ErrNotFound
	}
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

func (repo *activityRepository) DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
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
