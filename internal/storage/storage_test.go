package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestProfile(t *testing.T, s *Store, email string, tokens decimal.Decimal) Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), Profile{
		Email:        email,
		PasswordHash: "x",
		Role:         RoleUser,
		IsActive:     true,
		Tokens:       tokens,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newTestProfile(t, s, "a@example.com", decimal.NewFromInt(10))

	got, err := s.GetProfileByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != p.ID || !got.Tokens.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected profile %#v", got)
	}

	name := "Ana"
	if err := s.UpdateProfile(ctx, p.ID, "a@example.com", &name, RoleAdmin, false); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	got, err = s.GetProfileByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Role != RoleAdmin || got.IsActive || got.FullName == nil || *got.FullName != "Ana" {
		t.Fatalf("update not applied: %#v", got)
	}

	if err := s.DeleteProfile(ctx, p.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if _, err := s.GetProfileByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestApplyTokenDeltaWritesBalanceAndLedgerTogether(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProfile(t, s, "b@example.com", decimal.NewFromInt(10))

	balance, err := s.ApplyTokenDelta(ctx, p.ID, decimal.NewFromInt(5), "admin grant")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected balance 15, got %s", balance)
	}

	cost := decimal.NewFromFloat(0.5)
	balance, err = s.ApplyTokenDelta(ctx, p.ID, cost.Neg(), "message")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(14.5)) {
		t.Fatalf("expected balance 14.5, got %s", balance)
	}

	txs, err := s.ListTransactions(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected exactly 2 ledger rows, got %d", len(txs))
	}
	byKind := map[string]TokenTransaction{}
	for _, tx := range txs {
		byKind[tx.TransactionType] = tx
	}
	if !byKind[TransactionCredit].Amount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected credit amount %s", byKind[TransactionCredit].Amount)
	}
	if !byKind[TransactionDebit].Amount.Equal(cost) {
		t.Fatalf("unexpected debit amount %s", byKind[TransactionDebit].Amount)
	}

	got, err := s.GetProfileByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !got.Tokens.Equal(decimal.NewFromFloat(14.5)) {
		t.Fatalf("denormalized balance drifted: %s", got.Tokens)
	}
}

func TestApplyTokenDeltaRefusesNegativeBalance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProfile(t, s, "c@example.com", decimal.NewFromFloat(0.2))

	_, err := s.ApplyTokenDelta(ctx, p.ID, decimal.NewFromFloat(-0.5), "message")
	if !errors.Is(err, ErrInsufficientTokens) {
		t.Fatalf("expected ErrInsufficientTokens, got %v", err)
	}

	got, err := s.GetProfileByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !got.Tokens.Equal(decimal.NewFromFloat(0.2)) {
		t.Fatalf("balance must be untouched, got %s", got.Tokens)
	}
	txs, err := s.ListTransactions(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("refused debit must not append ledger rows, got %d", len(txs))
	}
}

func TestSetTokenBalanceRecordsDifference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProfile(t, s, "d@example.com", decimal.NewFromInt(10))

	balance, err := s.SetTokenBalance(ctx, p.ID, decimal.NewFromInt(4), "adjustment")
	if err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected balance 4, got %s", balance)
	}

	txs, err := s.ListTransactions(ctx, p.ID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(txs))
	}
	if txs[0].TransactionType != TransactionDebit || !txs[0].Amount.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected debit of 6, got %s %s", txs[0].TransactionType, txs[0].Amount)
	}

	// Setting the current value is a no-op.
	if _, err := s.SetTokenBalance(ctx, p.ID, decimal.NewFromInt(4), "again"); err != nil {
		t.Fatalf("set same balance: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, p.ID, 0)
	if len(txs) != 1 {
		t.Fatalf("no-op set must not append ledger rows, got %d", len(txs))
	}
}

func TestConversationAndMessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newTestProfile(t, s, "e@example.com", decimal.NewFromInt(10))

	c, err := s.CreateConversation(ctx, p.ID, "Nova conversa")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	for _, m := range []Message{
		{ConversationID: c.ID, Role: TurnRoleUser, Content: "first"},
		{ConversationID: c.ID, Role: TurnRoleAssistant, Content: "second"},
		{ConversationID: c.ID, Role: TurnRoleUser, Content: "third"},
	} {
		if _, err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Fatalf("message %d out of order: got %q, want %q", i, msgs[i].Content, want)
		}
		if msgs[i].Status != MessageStatusOK {
			t.Fatalf("new message must start with status ok, got %q", msgs[i].Status)
		}
	}

	if err := s.SetMessageStatus(ctx, msgs[2].ID, MessageStatusOrphaned); err != nil {
		t.Fatalf("set status: %v", err)
	}
	m, err := s.GetMessage(ctx, msgs[2].ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if m.Status != MessageStatusOrphaned {
		t.Fatalf("expected orphaned, got %q", m.Status)
	}

	if err := s.DeleteConversation(ctx, c.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	msgs, err = s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list messages after delete: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("messages must be deleted with the conversation, got %d", len(msgs))
	}
}

func TestTeamsAndSharing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := newTestProfile(t, s, "owner@example.com", decimal.Zero)
	member := newTestProfile(t, s, "member@example.com", decimal.Zero)
	outsider := newTestProfile(t, s, "outsider@example.com", decimal.Zero)

	team, err := s.CreateTeam(ctx, "time de vendas", owner.ID)
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if err := s.AddTeamMember(ctx, team.ID, member.ID, ""); err != nil {
		t.Fatalf("add member: %v", err)
	}

	ok, err := s.IsTeamMember(ctx, team.ID, owner.ID)
	if err != nil || !ok {
		t.Fatalf("owner must be a member: ok=%v err=%v", ok, err)
	}

	c, err := s.CreateConversation(ctx, owner.ID, "compartilhada")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if _, err := s.ShareConversation(ctx, c.ID, owner.ID, team.ID); err != nil {
		t.Fatalf("share conversation: %v", err)
	}
	// Sharing twice with the same team is a no-op, not an error.
	if _, err := s.ShareConversation(ctx, c.ID, owner.ID, team.ID); err != nil {
		t.Fatalf("share conversation again: %v", err)
	}

	shared, err := s.ListSharedConversations(ctx, member.ID)
	if err != nil {
		t.Fatalf("list shared: %v", err)
	}
	if len(shared) != 1 || shared[0].ID != c.ID {
		t.Fatalf("member must see the shared conversation, got %#v", shared)
	}

	shared, err = s.ListSharedConversations(ctx, outsider.ID)
	if err != nil {
		t.Fatalf("list shared for outsider: %v", err)
	}
	if len(shared) != 0 {
		t.Fatalf("outsider must not see shared conversations, got %d", len(shared))
	}
}

func TestSettingsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertSetting(ctx, "ai_provider", "groq"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertSetting(ctx, "ai_provider", "anthropic"); err != nil {
		t.Fatalf("upsert overwrite: %v", err)
	}

	v, err := s.GetSetting(ctx, "ai_provider")
	if err != nil {
		t.Fatalf("get setting: %v", err)
	}
	if v != "anthropic" {
		t.Fatalf("expected anthropic, got %q", v)
	}

	all, err := s.ListSettings(ctx)
	if err != nil {
		t.Fatalf("list settings: %v", err)
	}
	if all["ai_provider"] != "anthropic" {
		t.Fatalf("unexpected settings map %#v", all)
	}

	if _, err := s.GetSetting(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
}
