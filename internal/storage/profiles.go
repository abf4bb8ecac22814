package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// ErrStaleBalance is returned when a guarded balance update lost a race with
// a concurrent writer. Callers treat it as a failed debit, not a retry hint.
var ErrStaleBalance = errors.New("stale balance")

const profileColumns = "id, email, password_hash, full_name, role, is_active, tokens, created_at, updated_at"

func (s *Store) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = RoleUser
	}
	q := s.sql.Insert("profiles").
		Columns("id", "email", "password_hash", "full_name", "role", "is_active", "tokens").
		Values(p.ID, p.Email, p.PasswordHash, p.FullName, p.Role, p.IsActive, p.Tokens)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("build create profile query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return s.GetProfileByID(ctx, p.ID)
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	return s.getProfile(ctx, sq.Eq{"id": id})
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return s.getProfile(ctx, sq.Eq{"email": email})
}

func (s *Store) getProfile(ctx context.Context, where sq.Sqlizer) (Profile, error) {
	q := s.sql.Select(profileColumns).From("profiles").Where(where)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Profile{}, fmt.Errorf("build get profile query: %w", err)
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]Profile, error) {
	q := s.sql.Select(profileColumns).From("profiles").OrderBy("created_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list profiles query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, email string, fullName *string, role string, isActive bool) error {
	q := s.sql.Update("profiles").
		Set("email", email).
		Set("full_name", fullName).
		Set("role", role).
		Set("is_active", isActive).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update profile query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetProfileActive(ctx context.Context, id string, active bool) error {
	q := s.sql.Update("profiles").
		Set("is_active", active).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set profile active query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set profile active: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	q := s.sql.Delete("profiles").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete profile query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var fullName sql.NullString
	var tokens string
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&fullName,
		&p.Role,
		&p.IsActive,
		&tokens,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Profile{}, err
	}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	d, err := decimal.NewFromString(tokens)
	if err != nil {
		return Profile{}, fmt.Errorf("parse token balance %q: %w", tokens, err)
	}
	p.Tokens = d
	return p, nil
}
