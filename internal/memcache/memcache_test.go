package memcache

import (
	"testing"
	"time"

	"github.com/KalilDev/cached-sized-image/internal/sizing"
)

func TestAddAndGet(t *testing.T) {
	c := New(0)
	defer c.Close()

	key := Key("https://example.com/cat.jpg", sizing.NewSize(600, 400))
	c.Add(key, []byte("variant"))

	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected hit")
	}
	if string(got) != "variant" {
		t.Fatalf("Get = %q", got)
	}
}

func TestMissCounts(t *testing.T) {
	c := New(0)
	defer c.Close()

	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected miss")
	}
	c.Add("present", []byte("x"))
	c.Get("present")

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("stats = %+v, want 1 hit and 1 miss", stats)
	}
	if stats.EntryCount != 1 {
		t.Fatalf("entry count = %d", stats.EntryCount)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New(0)
	defer c.Close()
	c.ttl = -time.Second // entries are born expired

	c.Add("key", []byte("stale"))
	if _, ok := c.Get("key"); ok {
		t.Fatalf("expired entry must not be served")
	}
	if got := c.GetStats().CurrentSize; got != 0 {
		t.Fatalf("size not reclaimed: %d", got)
	}
}

func TestByteCapEvicts(t *testing.T) {
	c := New(10)
	defer c.Close()

	c.Add("a", []byte("12345"))
	c.Add("b", []byte("12345"))
	c.Add("c", []byte("12345")) // must evict to fit

	if got := c.GetStats().CurrentSize; got > 10 {
		t.Fatalf("cache size %d exceeds cap", got)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("newest entry should be present")
	}
}

func TestOversizedEntryIgnored(t *testing.T) {
	c := New(4)
	defer c.Close()
	c.Add("big", []byte("too large"))
	if _, ok := c.Get("big"); ok {
		t.Fatalf("oversized entry must not be cached")
	}
}

func TestKeySeparatesSizes(t *testing.T) {
	url := "https://example.com/cat.jpg"
	a := Key(url, sizing.NewSize(600, 400))
	b := Key(url, sizing.Full())
	if a == b {
		t.Fatalf("different sizes must not collide: %s", a)
	}
}
