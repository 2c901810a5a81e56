package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
)

func TestCacheSetAndGet(t *testing.T) {
	client, mr := startRedis(t)

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "comparison:t1:a:b", []byte(`{"total":"10.00"}`), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := cache.Get(ctx, "comparison:t1:a:b")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(val) != `{"total":"10.00"}` {
		t.Fatalf("unexpected value %s", val)
	}

	if !mr.Exists("ledgerclose:cache:comparison:t1:a:b") {
		t.Fatalf("expected key to be stored under the cache prefix")
	}
}

func TestCacheMissReturnsNil(t *testing.T) {
	client, _ := startRedis(t)

	val, err := NewCache(client).Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if val != nil {
		t.Fatalf("expected nil on miss, got %s", val)
	}
}

func TestCacheExpires(t *testing.T) {
	client, mr := startRedis(t)

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	val, err := cache.Get(ctx, "k")
	if err != nil || val != nil {
		t.Fatalf("expected expired key to miss, got val=%s err=%v", val, err)
	}
}

func TestCacheDelete(t *testing.T) {
	client, _ := startRedis(t)

	cache := NewCache(client)
	ctx := context.Background()

	if err := cache.Set(ctx, "foo", []byte("bar"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if err := cache.Delete(ctx, "foo"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	val, err := cache.Get(ctx, "foo")
	if err != nil || val != nil {
		t.Fatalf("expected deleted key to miss, got val=%s err=%v", val, err)
	}
}

func TestCacheUnavailable(t *testing.T) {
	client, mr := startRedis(t)
	mr.Close()

	m := metrics.New(prometheus.NewRegistry())
	if _, err := NewCache(client).WithMetrics(m).Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error when redis is down")
	}
	if got := testutil.ToFloat64(m.RedisErrors.WithLabelValues("get")); got != 1 {
		t.Fatalf("expected one recorded redis error, got %v", got)
	}
}

func TestCacheRecordsOperations(t *testing.T) {
	client, _ := startRedis(t)

	m := metrics.New(prometheus.NewRegistry())
	cache := NewCache(client).WithMetrics(m)
	ctx := context.Background()

	_ = cache.Set(ctx, "k", []byte("v"), time.Minute)
	_, _ = cache.Get(ctx, "k")
	_, _ = cache.Get(ctx, "missing")

	if got := testutil.ToFloat64(m.RedisOperations.WithLabelValues("get")); got != 2 {
		t.Fatalf("expected 2 gets, got %v", got)
	}
	if got := testutil.ToFloat64(m.RedisErrors.WithLabelValues("get")); got != 0 {
		t.Fatalf("a miss is not an error, got %v", got)
	}
}

func TestCacheAndIdempotencyKeysDoNotCollide(t *testing.T) {
	client, mr := startRedis(t)
	ctx := context.Background()

	if err := NewCache(client).Set(ctx, "t1:key", []byte("cached"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, _, err := NewIdempotencyStore(client).CheckAndSet(ctx, "t1:key", nil, time.Minute); err != nil {
		t.Fatalf("CheckAndSet failed: %v", err)
	}

	if got := keysUnder(mr, "ledgerclose:cache:"); len(got) != 1 || got[0] != "ledgerclose:cache:t1:key" {
		t.Fatalf("unexpected cache keys %v", got)
	}
	if got := keysUnder(mr, "ledgerclose:idempotency:"); len(got) != 1 || got[0] != "ledgerclose:idempotency:t1:key" {
		t.Fatalf("unexpected idempotency keys %v", got)
	}
}
