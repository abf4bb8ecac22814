// Package chat sequences one user turn end to end: balance gate, lazy
// conversation creation, user-turn persistence, the gateway call, assistant
// persistence, title bookkeeping and the usage debit. Each step hard-depends
// on the previous one succeeding; nothing is retried.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/ledger"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/metrics"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/settings"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotOwner     = errors.New("conversation does not belong to user")
)

// DefaultTitle names a conversation before its first turn lands.
const DefaultTitle = "Nova conversa"

const titleRuneLimit = 50

// Completer is the gateway seam; satisfied by *gateway.Gateway.
type Completer interface {
	CompleteWith(ctx context.Context, snap settings.Snapshot, turns []providers.ChatTurn) (string, error)
}

type Orchestrator struct {
	store    *storage.Store
	ledger   *ledger.Service
	gateway  Completer
	settings *settings.Service
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type Config struct {
	Store    *storage.Store
	Ledger   *ledger.Service
	Gateway  Completer
	Settings *settings.Service
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

func New(cfg Config) *Orchestrator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Orchestrator{
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		gateway:  cfg.Gateway,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		metrics:  m,
	}
}

type SendInput struct {
	UserID         string
	ConversationID string
	Content        string
	ImageURL       string
}

type SendResult struct {
	Conversation     storage.Conversation
	UserMessage      storage.Message
	AssistantMessage storage.Message
	Balance          decimal.Decimal
}

// Send runs the turn protocol. On gateway failure the already-persisted
// user turn is not rolled back; it is marked orphaned so the surrounding
// system can reconcile it, and no debit is applied.
func (o *Orchestrator) Send(ctx context.Context, in SendInput) (SendResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.ImageURL == "" {
		return SendResult{}, ErrEmptyMessage
	}

	snap, err := o.settings.Snapshot(ctx)
	if err != nil {
		return SendResult{}, err
	}
	cost := snap.MessageCost()

	if err := o.ledger.Check(ctx, in.UserID, cost); err != nil {
		return SendResult{}, err
	}

	conversation, firstTurn, err := o.resolveConversation(ctx, in)
	if err != nil {
		return SendResult{}, err
	}

	var imageURL *string
	if in.ImageURL != "" {
		imageURL = &in.ImageURL
	}
	userMsg, err := o.store.CreateMessage(ctx, storage.Message{
		ConversationID: conversation.ID,
		Role:           storage.TurnRoleUser,
		Content:        content,
		ImageURL:       imageURL,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("persist user turn: %w", err)
	}

	history, err := o.store.ListMessages(ctx, conversation.ID)
	if err != nil {
		return SendResult{}, fmt.Errorf("load turn history: %w", err)
	}

	reply, err := o.gateway.CompleteWith(ctx, snap, toTurns(history))
	if err != nil {
		o.orphan(ctx, userMsg.ID)
		return SendResult{}, err
	}

	assistantMsg, err := o.store.CreateMessage(ctx, storage.Message{
		ConversationID: conversation.ID,
		Role:           storage.TurnRoleAssistant,
		Content:        reply,
	})
	if err != nil {
		o.orphan(ctx, userMsg.ID)
		return SendResult{}, fmt.Errorf("persist assistant turn: %w", err)
	}

	if firstTurn {
		title := truncateTitle(content)
		if err := o.store.UpdateConversationTitle(ctx, conversation.ID, title); err != nil {
			o.logger.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("failed to update title")
		} else {
			conversation.Title = title
		}
	} else if err := o.store.TouchConversation(ctx, conversation.ID); err != nil {
		o.logger.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("failed to touch conversation")
	}

	balance, err := o.ledger.DebitUsage(ctx, in.UserID, cost)
	if err != nil {
		return SendResult{}, fmt.Errorf("debit after reply: %w", err)
	}

	o.metrics.TurnsCompleted.Inc()
	return SendResult{
		Conversation:     conversation,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Balance:          balance,
	}, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, in SendInput) (storage.Conversation, bool, error) {
	if in.ConversationID == "" {
		c, err := o.store.CreateConversation(ctx, in.UserID, DefaultTitle)
		if err != nil {
			return storage.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
		}
		return c, true, nil
	}

	c, err := o.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return storage.Conversation{}, false, err
	}
	if c.UserID != in.UserID {
		return storage.Conversation{}, false, ErrNotOwner
	}

	existing, err := o.store.ListMessages(ctx, c.ID)
	if err != nil {
		return storage.Conversation{}, false, fmt.Errorf("count existing turns: %w", err)
	}
	return c, len(existing) == 0, nil
}

func (o *Orchestrator) orphan(ctx context.Context, messageID string) {
	o.metrics.TurnsOrphaned.Inc()
	if err := o.store.SetMessageStatus(ctx, messageID, storage.MessageStatusOrphaned); err != nil {
		o.logger.Error().Err(err).Str("message_id", messageID).Msg("failed to mark orphaned turn")
	}
}

func toTurns(messages []storage.Message) []providers.ChatTurn {
	turns := make([]providers.ChatTurn, 0, len(messages))
	for _, m := range messages {
		t := providers.ChatTurn{Role: m.Role, Content: m.Content}
		if m.ImageURL != nil {
			t.ImageURL = *m.ImageURL
		}
		turns = append(turns, t)
	}
	return turns
}

func truncateTitle(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return DefaultTitle
	}
	r := []rune(trimmed)
	if len(r) > titleRuneLimit {
		return string(r[:titleRuneLimit])
	}
	return trimmed
}
