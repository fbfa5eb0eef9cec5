package message

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
)

var (
	ErrNotFound     = errors.New("message not found")
	ErrNotRecipient = errors.New("not the message recipient")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message, exec ...core.DBExecutor) (Message, error)
		QueryMessages(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Message, error)
		GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (Message, error)
		UpdateMessage(ctx context.Context, msg Message, exec ...core.DBExecutor) (Message, error)
		DeleteMessagesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Send(ctx context.Context, madrassahID, senderID string, nm NewMessage) (Message, error)
		Inbox(ctx context.Context, recipientID string) ([]Message, error)
		Sent(ctx context.Context, senderID string) ([]Message, error)
		GetByID(ctx context.Context, id string) (Message, error)
		MarkRead(ctx context.Context, id, recipientID string) (Message, error)
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

func (svc *Service) Send(ctx context.Context, madrassahID, senderID string, nm NewMessage) (Message, error) {
	msg := Message{
		MadrassahID: madrassahID,
		SenderID:    senderID,
		RecipientID: nm.RecipientID,
		Subject:     nm.Subject,
		Body:        nm.Body,
		CreatedAt:   time.Now().UTC(),
	}
	msg, err := svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableMessage, stream.EventInsert, msg.MadrassahID))
	return msg, nil
}

func (svc *Service) Inbox(ctx context.Context, recipientID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, &QueryFilter{RecipientID: recipientID},
		[]core.DBOrdering{{Field: "created_at", Ascending: false}})
}

func (svc *Service) Sent(ctx context.Context, senderID string) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, &QueryFilter{SenderID: senderID},
		[]core.DBOrdering{{Field: "created_at", Ascending: false}})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

// MarkRead stamps the message read; only the recipient may do so.
func (svc *Service) MarkRead(ctx context.Context, id, recipientID string) (Message, error) {
	msg, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if msg.RecipientID != recipientID {
		return Message{}, ErrNotRecipient
	}
	if msg.Read() {
		return msg, nil
	}
	msg.ReadAt = time.Now().UTC()

	msg, err = svc.repo.UpdateMessage(ctx, msg)
	if err != nil {
		return Message{}, err
	}
	svc.hub.Publish(stream.NewEvent(stream.TableMessage, stream.EventUpdate, msg.MadrassahID))
	return msg, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteMessagesByID(ctx, ids)
	if err != nil {
		return err
	}
	if n > 0 {
		svc.hub.Publish(stream.NewEvent(stream.TableMessage, stream.EventDelete, ""))
	}
	return nil
}
