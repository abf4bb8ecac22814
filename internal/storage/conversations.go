package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const conversationColumns = "id, user_id, title, created_at, updated_at"

func (s *Store) CreateConversation(ctx context.Context, userID, title string) (Conversation, error) {
	c := Conversation{ID: uuid.NewString(), UserID: userID, Title: title}
	q := s.sql.Insert("conversations").
		Columns("id", "user_id", "title").
		Values(c.ID, c.UserID, c.Title)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Conversation{}, fmt.Errorf("build create conversation query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return s.GetConversation(ctx, c.ID)
}

func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	q := s.sql.Select(conversationColumns).From("conversations").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Conversation{}, fmt.Errorf("build get conversation query: %w", err)
	}
	var c Conversation
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	q := s.sql.Select(conversationColumns).
		From("conversations").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list conversations query: %w", err)
	}
	return s.queryConversations(ctx, sqlStr, args)
}

// ListAllConversations is the moderation view: every conversation in the
// system, newest activity first.
func (s *Store) ListAllConversations(ctx context.Context, limit uint64) ([]Conversation, error) {
	q := s.sql.Select(conversationColumns).
		From("conversations").
		OrderBy("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list all conversations query: %w", err)
	}
	return s.queryConversations(ctx, sqlStr, args)
}

func (s *Store) queryConversations(ctx context.Context, sqlStr string, args []any) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]Conversation, 0)
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string) error {
	q := s.sql.Update("conversations").
		Set("title", title).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update title query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) TouchConversation(ctx context.Context, id string) error {
	q := s.sql.Update("conversations").
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build touch conversation query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes the conversation, its messages and any sharing
// grants pointing at it.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	for _, q := range []sq.DeleteBuilder{
		s.sql.Delete("messages").Where(sq.Eq{"conversation_id": id}),
		s.sql.Delete("shared_conversations").Where(sq.Eq{"conversation_id": id}),
	} {
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build conversation cleanup query: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("delete conversation children: %w", err)
		}
	}

	q := s.sql.Delete("conversations").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete conversation query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
