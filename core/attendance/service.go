package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
)

var ErrNotFound = errors.New("attendance record not found")

type (
	Repository interface {
		// UpsertRecord inserts or, when a record for (student_id, date) exists,
		// overwrites its status, note and taker.
		UpsertRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Mark(ctx context.Context, takenBy string, ma MarkAttendance) (Record, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		GetByID(ctx context.Context, id string) (Record, error)
		Delete(ctx context.Context, ids ...string) error
	}

	Service struct {
		db   core.DB
		repo Repository
		hub  *stream.Hub
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, hub *stream.Hub) *Service {
	return &Service{db: db, repo: repo, hub: hub}
}

// Mark records a student's attendance for a day, overwriting any earlier mark
// for the same (student, date).
func (svc *Service) Mark(ctx context.Context, takenBy string, ma MarkAttendance) (Record, error) {
	now := time.Now().UTC()
	date := ma.Date.UTC()
	rec := Record{
		MadrassahID: ma.MadrassahID,
		StudentID:   ma.StudentID,
		TakenBy:     takenBy,
		Status:      ma.Status,
		Note:        ma.Note,
		Date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := svc.repo.UpsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableAttendance, stream.EventInsert, rec.MadrassahID))
	return rec, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteRecordsByID(ctx, ids)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.hub.Publish(stream.NewEvent(stream.TableAttendance, stream.EventDelete, ""))
	}
	return nil
}
