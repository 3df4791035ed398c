package stripewebhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu   sync.Mutex
	keys map[string]string
	errs error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]string{}}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = value.(string)
	return nil
}

func (s *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errs != nil {
		return false, s.errs
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = value.(string)
	return true, nil
}

func (s *fakeStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (s *fakeStore) WebhookEventKey(id string) string {
	return "webhook:" + id
}

func (s *fakeStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuardMarksFirstDelivery(t *testing.T) {
	store := newFakeStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if seen {
		t.Fatal("first delivery reported as already seen")
	}

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !seen {
		t.Fatal("redelivery not reported as seen")
	}
}

func TestIdempotencyGuardDeleteReopensEvent(t *testing.T) {
	store := newFakeStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt_2"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_2")
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if seen {
		t.Fatal("deleted mark still reported as seen")
	}
}

func TestIdempotencyGuardScopesKeys(t *testing.T) {
	store := newFakeStore()
	stripeGuard, _ := NewIdempotencyGuard(store, time.Hour, "stripe")
	orderGuard, _ := NewIdempotencyGuard(store, time.Hour, "orders")

	if _, err := stripeGuard.CheckAndMark(context.Background(), "evt_3"); err != nil {
		t.Fatalf("stripe mark: %v", err)
	}
	seen, err := orderGuard.CheckAndMark(context.Background(), "evt_3")
	if err != nil {
		t.Fatalf("orders mark: %v", err)
	}
	if seen {
		t.Fatal("scopes must not share marks")
	}
}

func TestIdempotencyGuardSurfacesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.errs = errors.New("connection refused")
	guard, _ := NewIdempotencyGuard(store, time.Hour, "stripe")

	if _, err := guard.CheckAndMark(context.Background(), "evt_4"); err == nil {
		t.Fatal("expected store error to surface")
	}
}

func TestIdempotencyGuardRejectsBadConfig(t *testing.T) {
	if _, err := NewIdempotencyGuard(nil, time.Hour, "stripe"); err == nil {
		t.Fatal("nil store accepted")
	}
	if _, err := NewIdempotencyGuard(newFakeStore(), time.Hour, ""); err == nil {
		t.Fatal("empty scope accepted")
	}
}
