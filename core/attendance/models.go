package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maktabhq/maktab/core"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Record is one student's attendance for one day. At most one record exists
// per (student, date); marking the same day again overwrites the status.
type Record struct {
	ID          string    `json:"id"`
	MadrassahID string    `json:"madrassah_id"`
	StudentID   string    `json:"student_id"`
	TakenBy     string    `json:"taken_by"`
	Status      Status    `json:"status"`
	Note        string    `json:"note"`
	Date        time.Time `json:"date"`       // attendance date, UTC
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type MarkAttendance struct {
	MadrassahID string    `json:"madrassah_id" validate:"required,uuid4"`
	StudentID   string    `json:"student_id" validate:"required,uuid4"`
	Status      Status    `json:"status" validate:"required,oneof=present absent late excused"`
	Note        string    `json:"note"`
	Date        time.Time `json:"date" validate:"required"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.Note = core.CleanString(ma.Note)
	return validate.Struct(ma)
}

type QueryFilter struct {
	MadrassahID string    `query:"madrassah_id"`
	StudentIDs  []string  `query:"student_id"`
	Statuses    []Status  `query:"status"`
	DateFrom    time.Time `query:"date_from"`
	DateTo      time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.MadrassahID == "" && qf.StudentIDs == nil && qf.Statuses == nil &&
		qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}
