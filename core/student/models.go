package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maktabhq/maktab/core"
)

// Student is an enrolled pupil. GuardianID and TeacherID reference user
// profiles; MadrassahID scopes the record to its tenant.
type Student struct {
	ID          string    `json:"id"`
	MadrassahID string    `json:"madrassah_id"`
	Name        string    `json:"name"`
	Section     string    `json:"section"`
	GuardianID  string    `json:"guardian_id"`
	TeacherID   string    `json:"teacher_id"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (s *Student) SetActive(active bool) {
	s.IsActive = &active
}

func (s *Student) Active() bool {
	return s.IsActive != nil && *s.IsActive
}

type NewStudent struct {
	Name        string `json:"name" validate:"required"`
	Section     string `json:"section"`
	MadrassahID string `json:"madrassah_id" validate:"required,uuid4"`
	GuardianID  string `json:"guardian_id" validate:"omitempty,uuid4"`
	TeacherID   string `json:"teacher_id" validate:"omitempty,uuid4"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Section = core.CleanString(ns.Section)
	return validate.Struct(ns)
}

type UpdateStudent struct {
	Name       string `json:"name"`
	Section    string `json:"section"`
	GuardianID string `json:"guardian_id" validate:"omitempty,uuid4"`
	TeacherID  string `json:"teacher_id" validate:"omitempty,uuid4"`
	IsActive   *bool  `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Section = core.CleanString(us.Section)
	return validate.Struct(us)
}

type QueryFilter struct {
	Search      string `query:"search"`
	MadrassahID string `query:"madrassah_id"`
	TeacherID   string `query:"teacher_id"`
	GuardianID  string `query:"guardian_id"`
	Section     string `query:"section"`
	IsActive    *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.MadrassahID == "" && qf.TeacherID == "" &&
		qf.GuardianID == "" && qf.Section == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Section = core.CleanString(qf.Section)
}
