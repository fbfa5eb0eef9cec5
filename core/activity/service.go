package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
	"github.com/maktabhq/maktab/core/student"
)

var ErrNotFound = errors.New("activity record not found")

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// QueryRecords applies AND operation on available QueryFilter fields.
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Record, error)
		GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (Record, error)
		UpdateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		DeleteRecordsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Log(ctx context.Context, authorID string, nr NewRecord) (Record, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		GetByID(ctx context.Context, id string) (Record, error)
		Update(ctx context.Context, id string, ur UpdateRecord) (Record, error)
		Delete(ctx context.Context, ids ...string) error
		Leaderboard(ctx context.Context, madrassahID, teacherID string, filters LeaderboardFilters) ([]LeaderboardEntry, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		students student.ServiceInterface
		hub      *stream.Hub
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, students student.ServiceInterface, hub *stream.Hub, logger core.Logger) *Service {
	return &Service{db: db, repo: repo, students: students, hub: hub, logger: logger}
}

func (svc *Service) Log(ctx context.Context, authorID string, nr NewRecord) (Record, error) {
	now := time.Now().UTC()
	rec := Record{
		MadrassahID: nr.MadrassahID,
		StudentID:   nr.StudentID,
		AuthorID:    authorID,
		Type:        nr.Type,
		Quality:     nr.Quality,
		Date:        nr.Date.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableActivity, stream.EventInsert, rec.MadrassahID))
	return rec, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, id)
}

// Update applies a corrective update. Authorship checks (author or admin only)
// are enforced at the API boundary.
func (svc *Service) Update(ctx context.Context, id string, ur UpdateRecord) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if ur.Type != "" {
		rec.Type = ur.Type
	}
	if ur.Quality != "" {
		rec.Quality = ur.Quality
	}
	if !ur.Date.IsZero() {
		rec.Date = ur.Date.UTC()
	}
	rec.UpdatedAt = time.Now().UTC()

	rec, err = svc.repo.UpdateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableActivity, stream.EventUpdate, rec.MadrassahID))
	return rec, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteRecordsByID(ctx, ids)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.hub.Publish(stream.NewEvent(stream.TableActivity, stream.EventDelete, ""))
	}
	return nil
}

// Leaderboard resolves the teacher's roster, fetches the activity rows in the
// filter window and aggregates them into a ranked list. Any fetch error aborts
// the computation; an empty list is returned alongside the error so partially
// aggregated ranks are never presented.
func (svc *Service) Leaderboard(ctx context.Context, madrassahID, teacherID string, filters LeaderboardFilters) ([]LeaderboardEntry, error) {
	filters.Clean()

	roster, err := svc.students.Roster(ctx, madrassahID, teacherID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("leaderboard: resolving roster for teacher %s: %v", teacherID, err), err)
		return nil, errors.Wrap(err, "resolving roster")
	}
	if len(roster) == 0 {
		return []LeaderboardEntry{}, nil
	}

	filter := QueryFilter{MadrassahID: madrassahID, StudentIDs: make([]string, 0, len(roster))}
	for _, std := range roster {
		filter.StudentIDs = append(filter.StudentIDs, std.ID)
	}
	if cutoff, ok := CutoffDate(filters.TimeRange, time.Now()); ok {
		filter.DateFrom = cutoff
	}

	rows, err := svc.repo.QueryRecords(ctx, &filter, []core.DBOrdering{{Field: "date", Ascending: true}})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("leaderboard: fetching activity rows: %v", err), err)
		return nil, errors.Wrap(err, "fetching activity rows")
	}

	return Aggregate(roster, rows, filters), nil
}
