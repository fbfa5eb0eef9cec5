package activity

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/student"
	"github.com/maktabhq/maktab/core/user"
)

// DigestMailer emails teachers holding the daily_progress_email capability a
// summary of their roster's activity for the day.
type DigestMailer struct {
	users    user.ServiceInterface
	students student.ServiceInterface
	repo     Repository
	mailSvc  core.EmailService
	logger   core.Logger
}

func NewDigestMailer(users user.ServiceInterface, students student.ServiceInterface, repo Repository, mailSvc core.EmailService, logger core.Logger) *DigestMailer {
	return &DigestMailer{users: users, students: students, repo: repo, mailSvc: mailSvc, logger: logger}
}

// Run sends digests once per interval until ctx is cancelled.
func (dm *DigestMailer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := dm.SendDigests(ctx, now); err != nil {
				dm.logger.Error(fmt.Sprintf("daily digest run: %v", err), err)
			}
		}
	}
}

// SendDigests emails every active, opted-in teacher their roster's activity
// for the calendar day (UTC) containing `day`. A failure for one teacher is
// logged and does not block the others.
func (dm *DigestMailer) SendDigests(ctx context.Context, day time.Time) error {
	teachers, err := dm.users.Query(ctx, &user.QueryFilter{Roles: user.TeacherRoles}, nil)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}

	for _, tch := range teachers {
		if !tch.Active() || !tch.HasCapabilityFlag(user.CapDailyProgressEmail) {
			continue
		}
		if err := dm.sendDigest(ctx, tch, day); err != nil {
			dm.logger.Error(fmt.Sprintf("daily digest for teacher %s: %v", tch.ID, err), err)
		}
	}
	return nil
}

// DigestData is the template payload of the daily progress email.
type DigestData struct {
	Teacher string
	Date    string
	Entries []LeaderboardEntry
}

func (dm *DigestMailer) sendDigest(ctx context.Context, tch user.User, day time.Time) error {
	roster, err := dm.students.Roster(ctx, tch.MadrassahID, tch.ID)
	if err != nil {
		return errors.Wrap(err, "resolving roster")
	}
	if len(roster) == 0 {
		return nil
	}

	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	filter := QueryFilter{
		MadrassahID: tch.MadrassahID,
		StudentIDs:  make([]string, 0, len(roster)),
		DateFrom:    from,
		DateTo:      from.Add(24*time.Hour - time.Nanosecond),
	}
	for _, std := range roster {
		filter.StudentIDs = append(filter.StudentIDs, std.ID)
	}

	rows, err := dm.repo.QueryRecords(ctx, &filter, []core.DBOrdering{{Field: "date", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "fetching activity rows")
	}

	var filters LeaderboardFilters
	filters.Clean()

	dm.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: tch.Name, Address: tch.Email}},
		Subject:      fmt.Sprintf("Daily Progress Summary - %s", from.Format("Jan 2, 2006")),
		TemplateName: "daily-progress",
		TemplateData: DigestData{
			Teacher: tch.Name,
			Date:    from.Format("Monday, Jan 2 2006"),
			Entries: Aggregate(roster, rows, filters),
		},
	})
	return nil
}
