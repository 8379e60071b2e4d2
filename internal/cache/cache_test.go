package cache

import (
	"testing"
	"time"
)

func TestSetGetRoundtrip(t *testing.T) {
	c := New()
	defer c.Close()

	want := Summary{
		Text:         "Short summary.",
		KeyTakeaways: []string{"one", "two"},
		WhyItMatters: "Because.",
	}
	key := Key("title", "content")
	c.Set(key, want, time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get returned miss for fresh entry")
	}
	if got.Text != want.Text || got.WhyItMatters != want.WhyItMatters || len(got.KeyTakeaways) != 2 {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMiss(t *testing.T) {
	c := New()
	defer c.Close()

	if _, ok := c.Get("absent"); ok {
		t.Error("Get reported hit for absent key")
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("k", Summary{Text: "s"}, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Get reported hit for expired entry")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New()
	defer c.Close()

	c.Set("old", Summary{Text: "a"}, 5*time.Millisecond)
	c.Set("fresh", Summary{Text: "b"}, time.Minute)
	time.Sleep(20 * time.Millisecond)

	c.sweep()
	if got := c.Len(); got != 1 {
		t.Errorf("Len after sweep = %d, want 1", got)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("sweep removed a live entry")
	}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	a := Key("title", "content")
	b := Key("titlec", "ontent")
	if a == b {
		t.Error("keys for different title/content splits should differ")
	}
	if a != Key("title", "content") {
		t.Error("key is not stable for identical input")
	}
}
