// Package ledger gates and accounts for paid usage of the completion
// gateway. The balance lives on the profile row; every mutation appends a
// matching row to the append-only token_transactions log, and the two are
// written as one atomic unit so they cannot drift under partial failure.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/metrics"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

var (
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// UsageDescription is the fixed ledger note for per-message debits.
const UsageDescription = "Mensagem enviada no chat"

// DefaultCreditDescription annotates administrative grants that carry no
// explicit note.
const DefaultCreditDescription = "Tokens adicionados pelo admin"

type Service struct {
	store   *storage.Store
	metrics *metrics.Metrics
}

func New(store *storage.Store, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.Global()
	}
	return &Service{store: store, metrics: m}
}

// Balance reads the user's current denormalized balance.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	p, err := s.store.GetProfileByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Tokens, nil
}

// Check is the pre-send gate: it refuses the turn before any side effect
// when the balance cannot cover the configured per-message cost.
func (s *Service) Check(ctx context.Context, userID string, cost decimal.Decimal) error {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(cost) {
		return ErrInsufficientBalance
	}
	return nil
}

// DebitUsage charges one message after the assistant reply has been
// durably persisted. The conditional update refuses to drive the balance
// below zero, so concurrent sends cannot overspend.
func (s *Service) DebitUsage(ctx context.Context, userID string, cost decimal.Decimal) (decimal.Decimal, error) {
	if !cost.IsPositive() {
		return s.Balance(ctx, userID)
	}
	newBalance, err := s.store.ApplyTokenDelta(ctx, userID, cost.Neg(), UsageDescription)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientTokens) {
			return decimal.Zero, ErrInsufficientBalance
		}
		return decimal.Zero, fmt.Errorf("debit usage: %w", err)
	}
	s.metrics.LedgerDebits.Inc()
	return newBalance, nil
}

// Credit adds a positive amount to the user's balance (administrative).
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if description == "" {
		description = DefaultCreditDescription
	}
	newBalance, err := s.store.ApplyTokenDelta(ctx, userID, amount, description)
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit tokens: %w", err)
	}
	s.metrics.LedgerCredits.Inc()
	return newBalance, nil
}

// SetBalance overwrites the balance to an absolute value (administrative).
// The transaction records the absolute difference; its kind follows the
// sign of the change.
func (s *Service) SetBalance(ctx context.Context, userID string, target decimal.Decimal, description string) (decimal.Decimal, error) {
	if target.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if description == "" {
		description = "Saldo ajustado pelo admin"
	}
	newBalance, err := s.store.SetTokenBalance(ctx, userID, target, description)
	if err != nil {
		return decimal.Zero, fmt.Errorf("set balance: %w", err)
	}
	return newBalance, nil
}

// History lists recent transactions, all users when userID is empty.
func (s *Service) History(ctx context.Context, userID string, limit uint64) ([]storage.TokenTransaction, error) {
	return s.store.ListTransactions(ctx, userID, limit)
}
