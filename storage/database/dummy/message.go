package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/message"
)

type messageRepository struct {
	db *messageTable
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) query() []message.Message {
	messages := make([]message.Message, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		messages = append(messages, *m)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].CreatedAt.Before(messages[j].CreatedAt) })
	return messages
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message, exec ...core.DBExecutor) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	repo.db.table[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) QueryMessages(ctx context.Context, filter *message.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	messages := repo.query()
	if filter == nil {
		return messages, nil
	}

	keep := messages[:0]
	for _, m := range messages {
		if filter.MadrassahID != "" && m.MadrassahID != filter.MadrassahID {
			continue
		}
		if filter.SenderID != "" && m.SenderID != filter.SenderID {
			continue
		}
		if filter.RecipientID != "" && m.RecipientID != filter.RecipientID {
			continue
		}
		if filter.Unread != nil && m.Read() == *filter.Unread {
			continue
		}
		keep = append(keep, m)
	}
	return keep, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if msg, ok := repo.db.table[id]; ok {
		return *msg, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, msg message.Message, exec ...core.DBExecutor) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[msg.ID]; !ok {
		return message.Message{}, message.ErrNotFound
	}
	repo.db.table[msg.ID] = &msg
	return msg, nil
}

func (repo *messageRepository) DeleteMessagesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
