// Package settings exposes the admin-managed configuration table as an
// immutable per-request snapshot. Callers never read ambient global state;
// the gateway fetches a fresh snapshot on every invocation, optionally
// served from a short-TTL redis cache that admin writes invalidate.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

const (
	KeyProvider    = "ai_provider"
	KeyMessageCost = "message_cost_tokens"

	KeyWhatsAppPhone       = "whatsapp_phone"
	KeyWhatsAppPaymentOn   = "whatsapp_payment_enabled"
	KeyOtherPaymentURL     = "other_payment_url"
	KeyOtherPaymentEnabled = "other_payment_enabled"

	cacheKey = "dialogueflow:settings:snapshot"
)

// DefaultMessageCost applies when message_cost_tokens is absent or
// unparseable: 0.5 tokens = 2 messages per token.
var DefaultMessageCost = decimal.NewFromFloat(0.5)

type Snapshot struct {
	values map[string]string
}

func NewSnapshot(values map[string]string) Snapshot {
	if values == nil {
		values = map[string]string{}
	}
	return Snapshot{values: values}
}

func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Provider returns the active provider tag, defaulting to openai when the
// setting is absent.
func (s Snapshot) Provider() string {
	if v, ok := s.values[KeyProvider]; ok && v != "" {
		return v
	}
	return "openai"
}

func (s Snapshot) ProviderAPIKey(kind string) string {
	return s.values[kind+"_api_key"]
}

func (s Snapshot) ProviderModel(kind string) string {
	return s.values[kind+"_model"]
}

func (s Snapshot) ProviderBaseURL(kind string) string {
	return s.values[kind+"_base_url"]
}

func (s Snapshot) MessageCost() decimal.Decimal {
	raw, ok := s.values[KeyMessageCost]
	if !ok || raw == "" {
		return DefaultMessageCost
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return DefaultMessageCost
	}
	return d
}

// APIKeySettingName reports whether a setting key holds a provider
// credential; those are envelope-encrypted at rest and masked in admin
// reads.
func APIKeySettingName(key string) bool {
	const suffix = "_api_key"
	return len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix
}

type Service struct {
	store *storage.Store
	redis *redis.Client
	ttl   time.Duration
}

// NewService builds the snapshot loader. rdb may be nil, in which case
// every snapshot is read straight from the settings table.
func NewService(store *storage.Store, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{store: store, redis: rdb, ttl: ttl}
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.redis != nil {
		// A cache miss or any redis trouble falls through to the table.
		if raw, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var values map[string]string
			if err := json.Unmarshal([]byte(raw), &values); err == nil {
				return NewSnapshot(values), nil
			}
		}
	}

	values, err := s.store.ListSettings(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}

	if s.redis != nil && s.ttl > 0 {
		if b, err := json.Marshal(values); err == nil {
			_ = s.redis.Set(ctx, cacheKey, b, s.ttl).Err()
		}
	}
	return NewSnapshot(values), nil
}

// Update writes one setting and drops the cached snapshot so the next
// gateway call sees the new value.
func (s *Service) Update(ctx context.Context, key, value string) error {
	if err := s.store.UpsertSetting(ctx, key, value); err != nil {
		return err
	}
	return s.Invalidate(ctx)
}

func (s *Service) Invalidate(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate settings cache: %w", err)
	}
	return nil
}
