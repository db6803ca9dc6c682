package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("baselines:hours", map[string]float64{"BE Dev": 120})

	v, ok := c.Get("baselines:hours")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v.(map[string]float64)["BE Dev"] != 120 {
		t.Errorf("unexpected cached value: %v", v)
	}

	if _, ok := c.Get("baselines:allocation"); ok {
		t.Error("expected miss for unset key")
	}
}

func TestCacheTTLExpiration(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("baselines:temporal", "snapshot", 10*time.Millisecond)

	if _, ok := c.Get("baselines:temporal"); !ok {
		t.Fatal("expected hit before expiration")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("baselines:temporal"); ok {
		t.Error("expected miss after TTL expired")
	}
}

func TestCacheInvalidatePrefix(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("baselines:hours", 1)
	c.Set("baselines:allocation", 2)
	c.Set("baselines:temporal", 3)
	c.Set("other:key", 4)

	c.InvalidatePrefix("baselines:")

	for _, key := range []string{"baselines:hours", "baselines:allocation", "baselines:temporal"} {
		if _, ok := c.Get(key); ok {
			t.Errorf("expected %s to be invalidated", key)
		}
	}
	if _, ok := c.Get("other:key"); !ok {
		t.Error("prefix invalidation removed an unrelated key")
	}
	if c.Size() != 1 {
		t.Errorf("expected size 1, got %d", c.Size())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Set(fmt.Sprintf("key-%d-%d", id, i), i)
			}
		}(g)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Get(fmt.Sprintf("key-%d-%d", id, i))
			}
		}(g)
	}
	wg.Wait()

	if c.Size() != 1000 {
		t.Errorf("expected 1000 items, got %d", c.Size())
	}
}
