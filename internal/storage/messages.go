package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const messageColumns = "id, conversation_id, role, content, image_url, status, created_at"

func (s *Store) CreateMessage(ctx context.Context, m Message) (Message, error) {
	if m.ID == "" {
		// v7 ids sort in creation order, which keeps the id tiebreak in
		// ListMessages stable for turns created within the same second.
		id, err := uuid.NewV7()
		if err != nil {
			return Message{}, fmt.Errorf("generate message id: %w", err)
		}
		m.ID = id.String()
	}
	if m.Status == "" {
		m.Status = MessageStatusOK
	}
	q := s.sql.Insert("messages").
		Columns("id", "conversation_id", "role", "content", "image_url", "status").
		Values(m.ID, m.ConversationID, m.Role, m.Content, m.ImageURL, m.Status)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build create message query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return s.GetMessage(ctx, m.ID)
}

func (s *Store) GetMessage(ctx context.Context, id string) (Message, error) {
	q := s.sql.Select(messageColumns).From("messages").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build get message query: %w", err)
	}
	m, err := scanMessage(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListMessages returns a conversation's turns in creation order, which is
// the order replayed to the provider on every send.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	q := s.sql.Select(messageColumns).
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC", "id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) SetMessageStatus(ctx context.Context, id, status string) error {
	q := s.sql.Update("messages").
		Set("status", status).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set message status query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set message status: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	q := s.sql.Delete("messages").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete message query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	var imageURL sql.NullString
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &imageURL, &m.Status, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	if imageURL.Valid {
		m.ImageURL = &imageURL.String
	}
	return m, nil
}
