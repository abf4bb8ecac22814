package settings

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := storage.Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSnapshotDefaults(t *testing.T) {
	snap := NewSnapshot(nil)
	if snap.Provider() != "openai" {
		t.Fatalf("expected default provider openai, got %q", snap.Provider())
	}
	if !snap.MessageCost().Equal(DefaultMessageCost) {
		t.Fatalf("expected default cost, got %s", snap.MessageCost())
	}
}

func TestSnapshotProviderKeys(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		KeyProvider:        "groq",
		"groq_api_key":     "gk",
		"groq_model":       "llama-3.3-70b-versatile",
		"groq_base_url":    "https://api.groq.com/openai/v1",
		KeyMessageCost:     "1.25",
		KeyWhatsAppPhone:   "+5511999999999",
		KeyOtherPaymentURL: "https://pay.example.com",
	})

	if snap.Provider() != "groq" {
		t.Fatalf("unexpected provider %q", snap.Provider())
	}
	if snap.ProviderAPIKey("groq") != "gk" {
		t.Fatalf("unexpected api key %q", snap.ProviderAPIKey("groq"))
	}
	if snap.ProviderModel("groq") != "llama-3.3-70b-versatile" {
		t.Fatalf("unexpected model %q", snap.ProviderModel("groq"))
	}
	if !snap.MessageCost().Equal(decimal.NewFromFloat(1.25)) {
		t.Fatalf("unexpected cost %s", snap.MessageCost())
	}
}

func TestMessageCostFallsBackOnGarbage(t *testing.T) {
	for _, raw := range []string{"abc", "-1", ""} {
		snap := NewSnapshot(map[string]string{KeyMessageCost: raw})
		if !snap.MessageCost().Equal(DefaultMessageCost) {
			t.Fatalf("raw %q: expected default cost, got %s", raw, snap.MessageCost())
		}
	}
}

func TestAPIKeySettingName(t *testing.T) {
	cases := map[string]bool{
		"openai_api_key": true,
		"gemini_api_key": true,
		"_api_key":       false,
		"ai_provider":    false,
		"openai_model":   false,
	}
	for key, want := range cases {
		if got := APIKeySettingName(key); got != want {
			t.Fatalf("APIKeySettingName(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestServiceSnapshotWithoutRedis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	svc := NewService(store, nil, 0)

	if err := svc.Update(ctx, KeyProvider, "anthropic"); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Provider() != "anthropic" {
		t.Fatalf("expected anthropic, got %q", snap.Provider())
	}
}

func TestServiceSnapshotCachesAndInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := newTestStore(t)
	ctx := context.Background()
	svc := NewService(store, rdb, 30*time.Second)

	if err := store.UpsertSetting(ctx, KeyProvider, "openai"); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot #1: %v", err)
	}
	if snap.Provider() != "openai" {
		t.Fatalf("expected openai, got %q", snap.Provider())
	}
	if !mr.Exists(cacheKey) {
		t.Fatal("snapshot must be cached after the first load")
	}

	// A direct table write is invisible while the cache holds.
	if err := store.UpsertSetting(ctx, KeyProvider, "gemini"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot #2: %v", err)
	}
	if snap.Provider() != "openai" {
		t.Fatalf("expected cached openai, got %q", snap.Provider())
	}

	// An admin write through the service invalidates the cache.
	if err := svc.Update(ctx, KeyProvider, "groq"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(cacheKey) {
		t.Fatal("update must drop the cached snapshot")
	}
	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot #3: %v", err)
	}
	if snap.Provider() != "groq" {
		t.Fatalf("expected groq after invalidation, got %q", snap.Provider())
	}
}
