package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/message"
)

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

// messageRow maps the "message" table.
type messageRow struct {
	ID          string      `db:"id"`
	MadrassahID string      `db:"madrassah_id"`
	SenderID    string      `db:"sender_id"`
	RecipientID string      `db:"recipient_id"`
	Subject     null.String `db:"subject"`
	Body        null.String `db:"body"`
	ReadAt      null.Time   `db:"read_at"`
	CreatedAt   null.Time   `db:"created_at"`
}

func (repo messageRepository) row(msg message.Message) messageRow {
	return messageRow{
		ID:          msg.ID,
		MadrassahID: msg.MadrassahID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Subject:     null.NewString(msg.Subject, msg.Subject != ""),
		Body:        null.NewString(msg.Body, msg.Body != ""),
		ReadAt:      null.NewTime(msg.ReadAt.UTC(), !msg.ReadAt.IsZero()),
		CreatedAt:   null.NewTime(msg.CreatedAt.UTC(), !msg.CreatedAt.IsZero()),
	}
}

func (repo messageRepository) unrow(row messageRow) message.Message {
	return message.Message{
		ID:          row.ID,
		MadrassahID: row.MadrassahID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		Subject:     row.Subject.String,
		Body:        row.Body.String,
		ReadAt:      row.ReadAt.Time,
		CreatedAt:   row.CreatedAt.Time,
	}
}

func (repo messageRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return message.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message, exec ...core.DBExecutor) (message.Message, error) {
	msg.ID = uuid.New().String()
	row := repo.row(msg)

	query := `
INSERT INTO message (id, madrassah_id, sender_id, recipient_id, subject, body, read_at, created_at)
VALUES (:id, :madrassah_id, :sender_id, :recipient_id, :subject, :body, :read_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return repo.unrow(row), nil
}

func (repo messageRepository) QueryMessages(ctx context.Context, filter *message.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]message.Message, error) {
	exe := getExec(repo.db, exec)

	query := `SELECT * FROM message`
	var clauses []string
	var args []interface{}

	if filter != nil {
		if filter.MadrassahID != "" {
			clauses = append(clauses, `madrassah_id = ?`)
			args = append(args, filter.MadrassahID)
		}
		if filter.SenderID != "" {
			clauses = append(clauses, `sender_id = ?`)
			args = append(args, filter.SenderID)
		}
		if filter.RecipientID != "" {
			clauses = append(clauses, `recipient_id = ?`)
			args = append(args, filter.RecipientID)
		}
		if filter.Unread != nil {
			if *filter.Unread {
				clauses = append(clauses, `read_at IS NULL`)
			} else {
				clauses = append(clauses, `read_at IS NOT NULL`)
			}
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += core.OrderingClause(ordering)

	var rows []messageRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	messages := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, repo.unrow(row))
	}
	return messages, nil
}

func (repo messageRepository) GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (message.Message, error) {
	exe := getExec(repo.db, exec)

	if _, err := uuid.Parse(id); err != nil {
		return message.Message{}, message.ErrNotFound
	}
	var row messageRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(`SELECT * FROM message WHERE id = ?`), id); err != nil {
		return message.Message{}, repo.trapNoRowsErr(err, "finding message")
	}
	return repo.unrow(row), nil
}

func (repo messageRepository) UpdateMessage(ctx context.Context, msg message.Message, exec ...core.DBExecutor) (message.Message, error) {
	row := repo.row(msg)
	query := `UPDATE message SET read_at = :read_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), query, row); err != nil {
		return message.Message{}, errors.Wrap(err, "updating message")
	}
	return repo.unrow(row), nil
}

func (repo messageRepository) DeleteMessagesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM message WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting messages")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting messages")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting messages")
	}
	return int(cnt), nil
}
