package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

func (s *Store) CreateTeam(ctx context.Context, name, ownerID string) (Team, error) {
	t := Team{ID: uuid.NewString(), Name: name, OwnerID: ownerID}
	q := s.sql.Insert("teams").
		Columns("id", "name", "owner_id").
		Values(t.ID, t.Name, t.OwnerID)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Team{}, fmt.Errorf("build create team query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return Team{}, fmt.Errorf("create team: %w", err)
	}

	if err := s.AddTeamMember(ctx, t.ID, ownerID, "owner"); err != nil {
		return Team{}, err
	}
	return s.GetTeam(ctx, t.ID)
}

func (s *Store) GetTeam(ctx context.Context, id string) (Team, error) {
	q := s.sql.Select("id", "name", "owner_id", "created_at").From("teams").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Team{}, fmt.Errorf("build get team query: %w", err)
	}
	var t Team
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (s *Store) ListTeamsForUser(ctx context.Context, userID string) ([]Team, error) {
	q := s.sql.Select("t.id", "t.name", "t.owner_id", "t.created_at").
		From("teams t").
		Join("team_members m ON m.team_id = t.id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("t.created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list teams query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	out := make([]Team, 0)
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team rows: %w", err)
	}
	return out, nil
}

func (s *Store) AddTeamMember(ctx context.Context, teamID, userID, role string) error {
	if role == "" {
		role = "member"
	}
	q := s.sql.Insert("team_members").
		Columns("team_id", "user_id", "role").
		Values(teamID, userID, role).
		Suffix("ON CONFLICT(team_id, user_id) DO UPDATE SET role=excluded.role")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build add team member query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("add team member: %w", err)
	}
	return nil
}

func (s *Store) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	q := s.sql.Select("team_id", "user_id", "role", "created_at").
		From("team_members").
		Where(sq.Eq{"team_id": teamID}).
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list team members query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()

	out := make([]TeamMember, 0)
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan team member row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team member rows: %w", err)
	}
	return out, nil
}

func (s *Store) IsTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	q := s.sql.Select("1").From("team_members").Where(sq.Eq{"team_id": teamID, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build team member check query: %w", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check team member: %w", err)
	}
	return true, nil
}

func (s *Store) ShareConversation(ctx context.Context, conversationID, sharedBy, teamID string) (SharedConversation, error) {
	sc := SharedConversation{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SharedBy:       sharedBy,
		TeamID:         teamID,
	}
	q := s.sql.Insert("shared_conversations").
		Columns("id", "conversation_id", "shared_by", "team_id").
		Values(sc.ID, sc.ConversationID, sc.SharedBy, sc.TeamID).
		Suffix("ON CONFLICT(conversation_id, team_id) DO NOTHING")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return SharedConversation{}, fmt.Errorf("build share conversation query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return SharedConversation{}, fmt.Errorf("share conversation: %w", err)
	}
	return sc, nil
}

// ListSharedConversations returns conversations shared with any team the
// user belongs to.
func (s *Store) ListSharedConversations(ctx context.Context, userID string) ([]Conversation, error) {
	q := s.sql.Select("c.id", "c.user_id", "c.title", "c.created_at", "c.updated_at").
		From("shared_conversations sc").
		Join("conversations c ON c.id = sc.conversation_id").
		Join("team_members m ON m.team_id = sc.team_id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("c.updated_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list shared conversations query: %w", err)
	}
	return s.queryConversations(ctx, sqlStr, args)
}
