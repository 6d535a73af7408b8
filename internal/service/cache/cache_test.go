package cache

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type payload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	host, portStr, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	svc, err := NewCacheService(CacheConfig{Host: host, Port: port}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	svc, _ := newTestCache(t)
	ctx := context.Background()

	in := payload{Name: "session", Score: 42}
	if err := svc.Set(ctx, "k1", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	if err := svc.Get(ctx, "k1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestCache_MissOnAbsentKey(t *testing.T) {
	svc, _ := newTestCache(t)

	var out payload
	if err := svc.Get(context.Background(), "nope", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "k1", payload{Name: "x"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	var out payload
	if err := svc.Get(ctx, "k1", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	svc, mr := newTestCache(t)
	ctx := context.Background()

	if err := mr.Set("k1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var out payload
	if err := svc.Get(ctx, "k1", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss for corrupt entry, got %v", err)
	}
	if mr.Exists("k1") {
		t.Fatalf("corrupt entry not evicted")
	}
}

func TestCache_Del(t *testing.T) {
	svc, _ := newTestCache(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "k1", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := svc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var out payload
	if err := svc.Get(ctx, "k1", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}
	// Deleting again is fine.
	if err := svc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del absent key: %v", err)
	}
}
