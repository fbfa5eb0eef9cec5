package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maktabhq/maktab/core"
)

// Message is a direct message between two profiles of the same madrassah.
type Message struct {
	ID          string    `json:"id"`
	MadrassahID string    `json:"madrassah_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReadAt      time.Time `json:"read_at"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (m *Message) Read() bool {
	return !m.ReadAt.IsZero()
}

type NewMessage struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid4"`
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Subject = core.CleanString(nm.Subject)
	return validate.Struct(nm)
}

type QueryFilter struct {
	MadrassahID string `query:"madrassah_id"`
	SenderID    string `query:"sender_id"`
	RecipientID string `query:"recipient_id"`
	Unread      *bool  `query:"unread"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.MadrassahID == "" && qf.SenderID == "" && qf.RecipientID == "" && qf.Unread == nil
}
