package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T, prefix string) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCacheHelper(client, prefix), mr
}

func TestCacheHelperGetSet(t *testing.T) {
	helper, _ := newTestHelper(t, "exam:")
	ctx := context.Background()

	type payload struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}

	if err := helper.Set(ctx, "id:1", payload{ID: 1, Title: "Algebra Midterm"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if err := helper.Get(ctx, "id:1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != 1 || got.Title != "Algebra Midterm" {
		t.Errorf("got %+v", got)
	}

	if err := helper.Get(ctx, "id:2", &got); err != ErrCacheNotFound {
		t.Errorf("miss: err = %v, want %v", err, ErrCacheNotFound)
	}
}

func TestCacheHelperNilClientDegrades(t *testing.T) {
	helper := NewCacheHelper(nil, "exam:")
	ctx := context.Background()

	if err := helper.Set(ctx, "id:1", "x", time.Minute); err != nil {
		t.Errorf("Set with nil client: %v", err)
	}
	var dest string
	if err := helper.Get(ctx, "id:1", &dest); err != ErrCacheNotAvailable {
		t.Errorf("Get with nil client: err = %v, want %v", err, ErrCacheNotAvailable)
	}
	if err := helper.Delete(ctx, "id:1"); err != nil {
		t.Errorf("Delete with nil client: %v", err)
	}
	if err := helper.InvalidatePattern(ctx, "*"); err != nil {
		t.Errorf("InvalidatePattern with nil client: %v", err)
	}
}

func TestCacheHelperInvalidatePattern(t *testing.T) {
	helper, mr := newTestHelper(t, "exam:")
	ctx := context.Background()

	for _, key := range []string{"creator:t1:list", "creator:t1:count", "creator:t2:list"} {
		if err := helper.Set(ctx, key, 1, time.Minute); err != nil {
			t.Fatal(err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "creator:t1:*"); err != nil {
		t.Fatalf("InvalidatePattern: %v", err)
	}

	if mr.Exists("exam:creator:t1:list") || mr.Exists("exam:creator:t1:count") {
		t.Error("t1 keys survived invalidation")
	}
	if !mr.Exists("exam:creator:t2:list") {
		t.Error("t2 key was dropped by t1 invalidation")
	}
}

func TestCacheOrExecute(t *testing.T) {
	helper, _ := newTestHelper(t, "stats:")
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[string]int{"total": 7}, nil
	}

	var got map[string]int
	if err := helper.CacheOrExecute(ctx, "exam:1:counts", &got, time.Minute, fetch); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if got["total"] != 7 || calls != 1 {
		t.Fatalf("first call: got %v, calls %d", got, calls)
	}

	// The backfill is async; write the key synchronously to make the second
	// call deterministic.
	if err := helper.Set(ctx, "exam:1:counts", got, time.Minute); err != nil {
		t.Fatal(err)
	}

	got = nil
	if err := helper.CacheOrExecute(ctx, "exam:1:counts", &got, time.Minute, fetch); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got["total"] != 7 {
		t.Errorf("second call: got %v", got)
	}
	if calls != 1 {
		t.Errorf("fetch ran %d times, want 1", calls)
	}
}
