package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
	TurnRoleSystem    = "system"

	// Message status marks the saga outcome of the turn that wrote it.
	// A user message whose assistant reply never landed stays "orphaned".
	MessageStatusOK       = "ok"
	MessageStatusOrphaned = "orphaned"

	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

type Profile struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     *string
	Role         string
	IsActive     bool
	Tokens       decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	ImageURL       *string
	Status         string
	CreatedAt      time.Time
}

type TokenTransaction struct {
	ID              string
	UserID          string
	Amount          decimal.Decimal
	TransactionType string
	Description     string
	CreatedAt       time.Time
}

type Team struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

type TeamMember struct {
	TeamID    string
	UserID    string
	Role      string
	CreatedAt time.Time
}

type SharedConversation struct {
	ID             string
	ConversationID string
	SharedBy       string
	TeamID         string
	CreatedAt      time.Time
}

type SystemSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
