package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"agent-launchpad/internal/storage/memory"
)

type countingSource struct {
	price float64
	err   error
	calls int
}

func (s *countingSource) GetPrice(_ context.Context, token, vsToken string) (*Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Quote{Token: token, VsToken: vsToken, Price: s.price, FetchedAt: time.Now()}, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*Quote, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, *Quote, time.Duration) error {
	return errors.New("cache down")
}

func TestMemoryCache_TTL(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	q := &Quote{Token: "MintA", VsToken: "SOL", Price: 1.5, FetchedAt: now}
	if err := cache.Set(ctx, "MintA|SOL", q, 5*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, hit, err := cache.Get(ctx, "MintA|SOL")
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}
	if got.Price != 1.5 {
		t.Errorf("price = %v, want 1.5", got.Price)
	}

	// Still fresh at the expiry instant.
	now = now.Add(5 * time.Second)
	if _, hit, _ := cache.Get(ctx, "MintA|SOL"); !hit {
		t.Error("expected hit at exact expiry")
	}

	now = now.Add(time.Millisecond)
	if _, hit, _ := cache.Get(ctx, "MintA|SOL"); hit {
		t.Error("expected miss after expiry")
	}

	if _, hit, _ := cache.Get(ctx, "MintB|SOL"); hit {
		t.Error("expected miss for absent key")
	}
}

func TestCachingSource_HitAvoidsFetch(t *testing.T) {
	src := &countingSource{price: 2.0}
	cs := NewCachingSource(CachingSourceOptions{Source: src, TTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := cs.GetPrice(ctx, "MintA", "SOL")
		if err != nil {
			t.Fatalf("GetPrice: %v", err)
		}
		if q.Price != 2.0 {
			t.Errorf("price = %v, want 2.0", q.Price)
		}
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}

	// A different pair is a distinct cache key.
	if _, err := cs.GetPrice(ctx, "MintA", "USDC"); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2", src.calls)
	}
}

func TestCachingSource_ExpiredRefetches(t *testing.T) {
	src := &countingSource{price: 2.0}
	cache := NewMemoryCache()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.nowFunc = func() time.Time { return now }
	cs := NewCachingSource(CachingSourceOptions{Source: src, Cache: cache, TTL: 5 * time.Second})
	ctx := context.Background()

	if _, err := cs.GetPrice(ctx, "MintA", "SOL"); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	now = now.Add(6 * time.Second)
	src.price = 3.0

	q, err := cs.GetPrice(ctx, "MintA", "SOL")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if q.Price != 3.0 {
		t.Errorf("price = %v, want refreshed 3.0", q.Price)
	}
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2", src.calls)
	}
}

func TestCachingSource_SourceErrorPropagates(t *testing.T) {
	src := &countingSource{err: ErrUnavailable}
	cs := NewCachingSource(CachingSourceOptions{Source: src})

	_, err := cs.GetPrice(context.Background(), "MintA", "SOL")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCachingSource_MirrorsToHistory(t *testing.T) {
	src := &countingSource{price: 2.0}
	history := memory.NewPriceHistoryStore()
	cs := NewCachingSource(CachingSourceOptions{Source: src, TTL: time.Minute, History: history})
	ctx := context.Background()

	// Two lookups, one fetch: only the fetch is mirrored.
	for i := 0; i < 2; i++ {
		if _, err := cs.GetPrice(ctx, "MintA", "SOL"); err != nil {
			t.Fatalf("GetPrice: %v", err)
		}
	}

	// Mirroring is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		points, err := history.GetByTokenMint(ctx, "MintA")
		if err != nil {
			t.Fatalf("GetByTokenMint: %v", err)
		}
		if len(points) == 1 {
			if points[0].Price != 2.0 || points[0].VsToken != "SOL" {
				t.Errorf("point = %+v", points[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d history points, want 1", len(points))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCachingSource_BrokenCacheDegrades(t *testing.T) {
	src := &countingSource{price: 2.0}
	cs := NewCachingSource(CachingSourceOptions{Source: src, Cache: brokenCache{}})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		q, err := cs.GetPrice(ctx, "MintA", "SOL")
		if err != nil {
			t.Fatalf("GetPrice: %v", err)
		}
		if q.Price != 2.0 {
			t.Errorf("price = %v, want 2.0", q.Price)
		}
	}
	// Every lookup goes to the live source when the cache is down.
	if src.calls != 2 {
		t.Errorf("source calls = %d, want 2", src.calls)
	}
}
