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

const transactionColumns = "id, user_id, amount, transaction_type, description, created_at"

// ApplyTokenDelta mutates a user's balance and appends the matching ledger
// row inside a single database transaction. delta < 0 debits, delta > 0
// credits; the recorded amount is always |delta|. The balance update is
// guarded on the value read at the start of the transaction, so a concurrent
// writer makes this call fail with ErrStaleBalance instead of clobbering.
// A debit below zero fails before any write.
func (s *Store) ApplyTokenDelta(ctx context.Context, userID string, delta decimal.Decimal, description string) (decimal.Decimal, error) {
	if delta.IsZero() {
		p, err := s.GetProfileByID(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}
		return p.Tokens, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin token tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	oldBalance, err := s.balanceForUpdate(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := oldBalance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, ErrInsufficientTokens
	}

	if err := s.updateBalanceGuarded(ctx, tx, userID, oldBalance, newBalance); err != nil {
		return decimal.Zero, err
	}

	kind := TransactionCredit
	if delta.IsNegative() {
		kind = TransactionDebit
	}
	if err := s.insertTransaction(ctx, tx, TokenTransaction{
		UserID:          userID,
		Amount:          delta.Abs(),
		TransactionType: kind,
		Description:     description,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit token tx: %w", err)
	}
	return newBalance, nil
}

// SetTokenBalance overwrites a user's balance to an absolute value. The
// ledger row records the absolute difference, credit or debit depending on
// the direction of the change. Setting the current value writes nothing.
func (s *Store) SetTokenBalance(ctx context.Context, userID string, target decimal.Decimal, description string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin token tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	oldBalance, err := s.balanceForUpdate(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	diff := target.Sub(oldBalance)
	if diff.IsZero() {
		return oldBalance, nil
	}

	if err := s.updateBalanceGuarded(ctx, tx, userID, oldBalance, target); err != nil {
		return decimal.Zero, err
	}

	kind := TransactionCredit
	if diff.IsNegative() {
		kind = TransactionDebit
	}
	if err := s.insertTransaction(ctx, tx, TokenTransaction{
		UserID:          userID,
		Amount:          diff.Abs(),
		TransactionType: kind,
		Description:     description,
	}); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit token tx: %w", err)
	}
	return target, nil
}

// ErrInsufficientTokens reports a debit that would take the balance below zero.
var ErrInsufficientTokens = errors.New("insufficient tokens")

func (s *Store) balanceForUpdate(ctx context.Context, tx *sql.Tx, userID string) (decimal.Decimal, error) {
	q := s.sql.Select("tokens").From("profiles").Where(sq.Eq{"id": userID})
	if s.driver == "postgres" {
		q = q.Suffix("FOR UPDATE")
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build balance query: %w", err)
	}
	var raw string
	if err := tx.QueryRowContext(ctx, sqlStr, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return d, nil
}

func (s *Store) updateBalanceGuarded(ctx context.Context, tx *sql.Tx, userID string, old, next decimal.Decimal) error {
	q := s.sql.Update("profiles").
		Set("tokens", next).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": userID, "tokens": old})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build balance update query: %w", err)
	}
	res, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrStaleBalance
	}
	return nil
}

func (s *Store) insertTransaction(ctx context.Context, tx *sql.Tx, t TokenTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	q := s.sql.Insert("token_transactions").
		Columns("id", "user_id", "amount", "transaction_type", "description").
		Values(t.ID, t.UserID, t.Amount, t.TransactionType, t.Description)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build transaction insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert token transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit uint64) ([]TokenTransaction, error) {
	q := s.sql.Select(transactionColumns).
		From("token_transactions").
		OrderBy("created_at DESC")
	if userID != "" {
		q = q.Where(sq.Eq{"user_id": userID})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]TokenTransaction, 0)
	for rows.Next() {
		var t TokenTransaction
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &amount, &t.TransactionType, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amount, err)
		}
		t.Amount = d
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return out, nil
}
