package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const conversationSelect = `SELECT c.id, c.title, c.owner, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c`

func scanConversation(scan func(...any) error) (Conversation, error) {
	var c Conversation
	err := scan(&c.ID, &c.Title, &c.Owner, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount)
	return c, err
}

// CreateConversation inserts a conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id required")
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = conv.CreatedAt
	_, err := s.exec(ctx, `INSERT INTO conversations (id, title, owner, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Owner, conv.CreatedAt, conv.UpdatedAt,
	)
	return errors.Wrapf(err, "insert conversation %s", conv.ID)
}

// GetConversation loads a conversation with its message count.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.queryRow(ctx, conversationSelect+` WHERE c.id=?`, id).Scan)
	if err != nil {
		return nil, notFound(err, "conversation", id)
	}
	return &c, nil
}

// ListConversations returns conversations most recently updated first along
// with the total count.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]Conversation, int, error) {
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count conversations")
	}
	rows, err := s.query(ctx, conversationSelect+` ORDER BY c.updated_at DESC, c.id`+limitClause(limit))
	if err != nil {
		return nil, 0, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()
	convs := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan conversation")
		}
		convs = append(convs, c)
	}
	return convs, total, rows.Err()
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE conversation_id=?`), id); err != nil {
			return errors.Wrapf(err, "delete messages of %s", id)
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM conversations WHERE id=?`), id)
		if err != nil {
			return errors.Wrapf(err, "delete conversation %s", id)
		}
		return affected(res, "conversation", id)
	})
}

// AppendMessage adds a message to the end of a conversation and bumps its
// updated_at.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		return errors.New("message id required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE conversations SET updated_at=? WHERE id=?`), msg.CreatedAt, msg.ConversationID)
		if err != nil {
			return errors.Wrapf(err, "touch conversation %s", msg.ConversationID)
		}
		if err := affected(res, "conversation", msg.ConversationID); err != nil {
			return err
		}
		var seq int64
		if err := tx.QueryRowContext(ctx, s.rebind(`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id=?`), msg.ConversationID).Scan(&seq); err != nil {
			return errors.Wrap(err, "next message sequence")
		}
		_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO messages (id, conversation_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			msg.ID, msg.ConversationID, seq, msg.Role, msg.Content, msg.CreatedAt,
		)
		return errors.Wrapf(err, "insert message %s", msg.ID)
	})
}

// ListMessages returns a conversation's transcript in order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.query(ctx, `SELECT id, conversation_id, role, content, created_at FROM messages WHERE conversation_id=? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()
	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}
