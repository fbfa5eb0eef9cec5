package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maktabhq/maktab/core"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub1 := hub.Subscribe(4)
	sub2 := hub.Subscribe(4)

	evt := NewEvent(TableActivity, EventInsert, "m1")
	hub.Publish(evt)

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.C:
			if got.Table != TableActivity || got.Type != EventInsert || got.MadrassahID != "m1" {
				t.Errorf("sub%d: got %+v", i+1, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub%d: no event received", i+1)
		}
	}
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	slow := hub.Subscribe(1)
	evt := NewEvent(TableMessage, EventInsert, "m1")
	hub.Publish(evt)
	hub.Publish(evt) // buffer full; must not block
	hub.Publish(evt)

	var n int
	for {
		select {
		case <-slow.C:
			n++
			continue
		default:
		}
		break
	}
	if n != 1 {
		t.Errorf("received %d events, want 1 (rest dropped)", n)
	}
}

func TestHubSubscriptionClose(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	sub := hub.Subscribe(1)
	sub.Close()
	sub.Close() // idempotent

	hub.Publish(NewEvent(TableStudent, EventUpdate, "m1"))
	if _, open := <-sub.C; open {
		t.Error("channel still open after Close")
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	hub.Close()
	hub.Close() // idempotent

	if _, open := <-sub.C; open {
		t.Error("channel still open after hub Close")
	}
	// post-close calls are no-ops
	hub.Publish(NewEvent(TableStudent, EventUpdate, "m1"))
	if late := hub.Subscribe(1); late != nil {
		if _, open := <-late.C; open {
			t.Error("post-close subscription channel must be closed")
		}
	}
}

func TestQueryCacheGet(t *testing.T) {
	ctx := context.Background()
	cache := NewQueryCache(core.NopLogger{})

	var fetches int
	fetch := func(ctx context.Context) (interface{}, error) {
		fetches++
		return fetches, nil
	}

	for i := 0; i < 3; i++ {
		val, err := cache.Get(ctx, "k", fetch)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if val.(int) != 1 {
			t.Errorf("Get() = %v, want cached 1", val)
		}
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want 1", fetches)
	}

	cache.InvalidateKey("k")
	val, err := cache.Get(ctx, "k", fetch)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if val.(int) != 2 {
		t.Errorf("Get() after invalidation = %v, want refetched 2", val)
	}
}

func TestQueryCacheFetchError(t *testing.T) {
	ctx := context.Background()
	cache := NewQueryCache(core.NopLogger{})
	wantErr := errors.New("store down")

	if _, err := cache.Get(ctx, "k", func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	}); err != wantErr {
		t.Errorf("Get() error = %v, want %v", err, wantErr)
	}

	// next Get retries the fetch
	val, err := cache.Get(ctx, "k", func(ctx context.Context) (interface{}, error) {
		return "fresh", nil
	})
	if err != nil || val.(string) != "fresh" {
		t.Errorf("Get() = %v, %v; want fresh, nil", val, err)
	}
}

// an insert event on a watched table must mark dependent entries stale and a
// subsequent read must refetch
func TestQueryCacheInvalidationLiveness(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	defer hub.Close()

	cache := NewQueryCache(core.NopLogger{})
	cache.RegisterDependency(TableActivity, "leaderboard:m1")
	cache.Watch(hub)
	defer cache.Unwatch()

	data := "v1"
	fetch := func(ctx context.Context) (interface{}, error) { return data, nil }

	if val, _ := cache.Get(ctx, "leaderboard:m1", fetch); val.(string) != "v1" {
		t.Fatalf("initial Get() = %v", val)
	}

	data = "v2"
	hub.Publish(NewEvent(TableActivity, EventInsert, "m1"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		val, err := cache.Get(ctx, "leaderboard:m1", fetch)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if val.(string) == "v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache entry never refetched after change event")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// events on unrelated tables leave the entry fresh
	hub.Publish(NewEvent(TableMessage, EventInsert, "m1"))
	time.Sleep(20 * time.Millisecond)
	data = "v3"
	if val, _ := cache.Get(ctx, "leaderboard:m1", fetch); val.(string) != "v2" {
		t.Errorf("Get() = %v, want cached v2", val)
	}
}

// an invalidation arriving while a fetch is in flight must not be lost: the
// fetched value may predate the change, so the next read has to refetch
func TestQueryCacheInFlightInvalidation(t *testing.T) {
	ctx := context.Background()
	cache := NewQueryCache(core.NopLogger{})
	cache.RegisterDependency(TableActivity, "board")

	var fetches int
	fetch := func(ctx context.Context) (interface{}, error) {
		fetches++
		if fetches == 1 {
			// the mutation commits after this fetch read its snapshot
			cache.Invalidate(TableActivity)
			return "v1", nil
		}
		return "v2", nil
	}

	if val, err := cache.Get(ctx, "board", fetch); err != nil || val.(string) != "v1" {
		t.Fatalf("first Get() = %v, %v; want v1, nil", val, err)
	}

	val, err := cache.Get(ctx, "board", fetch)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if val.(string) != "v2" {
		t.Errorf("Get() after in-flight invalidation = %v, want v2", val)
	}
	if fetches != 2 {
		t.Errorf("fetch calls = %d, want 2", fetches)
	}

	// and the refetched value is fresh again
	if val, _ := cache.Get(ctx, "board", fetch); val.(string) != "v2" || fetches != 2 {
		t.Errorf("Get() = %v (fetches %d), want cached v2", val, fetches)
	}
}

// a new Watch replaces the previous subscription instead of stacking
func TestQueryCacheWatchReplaces(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	cache := NewQueryCache(core.NopLogger{})
	cache.Watch(hub)
	cache.Watch(hub)
	defer cache.Unwatch()

	// only one live subscription on the hub
	hub.mutex.RLock()
	n := len(hub.subs)
	hub.mutex.RUnlock()
	if n != 1 {
		t.Errorf("hub has %d subscriptions, want 1", n)
	}
}
