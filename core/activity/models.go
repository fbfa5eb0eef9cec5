package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maktabhq/maktab/core"
)

// Record types. A sabaq is a new memorization lesson, sabaq para the recent
// revision portion and dhor the long-term revision portion.
type Type string

const (
	TypeSabaq     Type = "sabaq"
	TypeSabaqPara Type = "sabaq_para"
	TypeDhor      Type = "dhor"
)

var AllTypes = []Type{TypeSabaq, TypeSabaqPara, TypeDhor}

// Record is a logged unit of student memorization/revision work. Immutable
// once written except for corrective updates by the author or an admin.
type Record struct {
	ID          string    `json:"id"`
	MadrassahID string    `json:"madrassah_id"`
	StudentID   string    `json:"student_id"`
	AuthorID    string    `json:"author_id"`
	Type        Type      `json:"type"`
	Quality     string    `json:"quality"`
	Date        time.Time `json:"date"`       // activity date, UTC
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewRecord struct {
	MadrassahID string    `json:"madrassah_id" validate:"required,uuid4"`
	StudentID   string    `json:"student_id" validate:"required,uuid4"`
	Type        Type      `json:"type" validate:"required,oneof=sabaq sabaq_para dhor"`
	Quality     string    `json:"quality"`
	Date        time.Time `json:"date" validate:"required"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Quality = core.CleanString(nr.Quality, true /* lower */)
	return validate.Struct(nr)
}

type UpdateRecord struct {
	Type    Type      `json:"type" validate:"omitempty,oneof=sabaq sabaq_para dhor"`
	Quality string    `json:"quality"`
	Date    time.Time `json:"date"`
}

func (ur *UpdateRecord) Validate(validate *validator.Validate) error {
	ur.Quality = core.CleanString(ur.Quality, true /* lower */)
	return validate.Struct(ur)
}

type QueryFilter struct {
	MadrassahID string    `query:"madrassah_id"`
	StudentIDs  []string  `query:"student_id"`
	AuthorID    string    `query:"author_id"`
	Types       []Type    `query:"type"`
	DateFrom    time.Time `query:"date_from"`
	DateTo      time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.MadrassahID == "" && qf.StudentIDs == nil && qf.AuthorID == "" &&
		qf.Types == nil && qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

// Leaderboard filter enums.
type (
	TimeRange           string
	ParticipationFilter string
	CompletionFilter    string
	MetricPriority      string
)

const (
	RangeToday TimeRange = "today"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeAll   TimeRange = "all"

	ParticipationAll      ParticipationFilter = "all"
	ParticipationActive   ParticipationFilter = "active"
	ParticipationInactive ParticipationFilter = "inactive"

	CompletionAll        CompletionFilter = "all"
	CompletionComplete   CompletionFilter = "complete"
	CompletionIncomplete CompletionFilter = "incomplete"

	MetricSabaq     MetricPriority = "sabaq"
	MetricSabaqPara MetricPriority = "sabaq_para"
	MetricTotal     MetricPriority = "total" // default
)

type LeaderboardFilters struct {
	TimeRange      TimeRange           `json:"time_range" query:"time_range" validate:"omitempty,oneof=today week month all"`
	MetricPriority MetricPriority      `json:"metric_priority" query:"metric_priority" validate:"omitempty,oneof=sabaq sabaq_para total"`
	Participation  ParticipationFilter `json:"participation" query:"participation" validate:"omitempty,oneof=all active inactive"`
	Completion     CompletionFilter    `json:"completion" query:"completion" validate:"omitempty,oneof=all complete incomplete"`
}

// Clean fills filter defaults.
func (f *LeaderboardFilters) Clean() {
	if f.TimeRange == "" {
		f.TimeRange = RangeAll
	}
	if f.MetricPriority == "" {
		f.MetricPriority = MetricTotal
	}
	if f.Participation == "" {
		f.Participation = ParticipationAll
	}
	if f.Completion == "" {
		f.Completion = CompletionAll
	}
}

// LeaderboardEntry is a derived projection; it is recomputed on every
// aggregation pass and never persisted.
type LeaderboardEntry struct {
	StudentID    string    `json:"student_id"`
	Name         string    `json:"name"`
	Sabaqs       int       `json:"sabaqs"`
	SabaqPara    int       `json:"sabaq_para"`
	Dhor         int       `json:"dhor"`
	TotalPoints  int       `json:"total_points"`
	LastActivity time.Time `json:"last_activity"`
	Rank         int       `json:"rank"`
}
