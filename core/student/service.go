package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
)

var ErrNotFound = errors.New("student not found")

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.Name.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		// Roster returns the active students assigned to a teacher within a madrassah.
		Roster(ctx context.Context, madrassahID, teacherID string) ([]Student, error)
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

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		MadrassahID: ns.MadrassahID,
		Name:        ns.Name,
		Section:     ns.Section,
		GuardianID:  ns.GuardianID,
		TeacherID:   ns.TeacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	std.SetActive(true)
	std, err := svc.repo.CreateStudent(ctx, std)
	if err != nil {
		return Student{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableStudent, stream.EventInsert, std.MadrassahID))
	return std, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	orig, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	std := orig
	if us.Name != "" {
		std.Name = us.Name
	}
	if us.Section != "" {
		std.Section = us.Section
	}
	if us.GuardianID != "" {
		std.GuardianID = us.GuardianID
	}
	if us.TeacherID != "" {
		std.TeacherID = us.TeacherID
	}
	if us.IsActive != nil {
		std.IsActive = us.IsActive
	}
	std.UpdatedAt = time.Now().UTC()

	std, err = svc.repo.UpdateStudent(ctx, std)
	if err != nil {
		return Student{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableStudent, stream.EventUpdate, std.MadrassahID))
	return std, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteStudentsByID(ctx, ids)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.hub.Publish(stream.NewEvent(stream.TableStudent, stream.EventDelete, ""))
	}
	return nil
}

func (svc *Service) Roster(ctx context.Context, madrassahID, teacherID string) ([]Student, error) {
	active := true
	return svc.repo.QueryStudents(ctx, &QueryFilter{
		MadrassahID: madrassahID,
		TeacherID:   teacherID,
		IsActive:    &active,
	}, []core.DBOrdering{{Field: "created_at", Ascending: true}})
}
