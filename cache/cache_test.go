package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/ragops/store"
)

// brokenStore fails every operation. Used to exercise fail-to-miss paths.
type brokenStore struct{}

var errStoreDown = errors.New("store down")

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errStoreDown
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (brokenStore) Delete(context.Context, ...string) (int, error) { return 0, errStoreDown }
func (brokenStore) AddToSet(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (brokenStore) SetMembers(context.Context, string) ([]string, error) { return nil, errStoreDown }
func (brokenStore) Scan(context.Context, string) ([]string, error)       { return nil, errStoreDown }
func (brokenStore) Admit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errStoreDown
}
func (brokenStore) Count(context.Context, string, time.Duration) (int, error) {
	return 0, errStoreDown
}
func (brokenStore) Ping(context.Context) error { return errStoreDown }
func (brokenStore) Close() error               { return nil }

var _ store.Store = brokenStore{}

func TestNewResponseCache_Defaults(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})

	if c.config.Namespace != "rcache:" {
		t.Errorf("Namespace = %q, want %q", c.config.Namespace, "rcache:")
	}
	if c.config.TagNamespace != "rctag:" {
		t.Errorf("TagNamespace = %q, want %q", c.config.TagNamespace, "rctag:")
	}
	if c.config.EntryTTL != time.Hour {
		t.Errorf("EntryTTL = %v, want 1h", c.config.EntryTTL)
	}
	if c.config.TagTTLSlack != 5*time.Minute {
		t.Errorf("TagTTLSlack = %v, want 5m", c.config.TagTTLSlack)
	}
}

func TestResponseCache_GetSet(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}
	payload := []byte(`{"answer":"boost around 60Hz"}`)

	c.Set(ctx, "how to eq a kick", params, payload, []string{"mixing.pdf"})

	got, ok := c.Get(ctx, "how to eq a kick", params)
	if !ok {
		t.Fatal("Get() after Set() = miss, want hit")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}

func TestResponseCache_GetNormalized(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "how to eq a kick", params, []byte("v"), nil)

	// Case and surrounding whitespace collapse to the same entry
	for _, query := range []string{"HOW TO EQ A KICK", "  how to eq a kick  ", "How To Eq A Kick"} {
		if _, ok := c.Get(ctx, query, params); !ok {
			t.Errorf("Get(%q) = miss, want hit", query)
		}
	}

	// Different params are a different entry
	if _, ok := c.Get(ctx, "how to eq a kick", Params{ResultCount: 10, Threshold: 0.5}); ok {
		t.Error("Get() with different params = hit, want miss")
	}
}

func TestResponseCache_Miss(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})

	if _, ok := c.Get(context.Background(), "never cached", Params{ResultCount: 5, Threshold: 0.5}); ok {
		t.Error("Get() on empty cache = hit, want miss")
	}
}

func TestResponseCache_InvalidateSource(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "how to eq a kick", params, []byte(`{"answer":"..."}`), []string{"mixing.pdf"})

	if got := c.InvalidateSource(ctx, "mixing.pdf"); got != 1 {
		t.Errorf("InvalidateSource() = %d, want 1", got)
	}
	if _, ok := c.Get(ctx, "how to eq a kick", params); ok {
		t.Error("Get() after invalidation = hit, want miss")
	}

	// The tag itself is gone too
	if got := c.InvalidateSource(ctx, "mixing.pdf"); got != 0 {
		t.Errorf("Second InvalidateSource() = %d, want 0", got)
	}
}

func TestResponseCache_InvalidateSourceScoped(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "kick eq", params, []byte("a"), []string{"mixing.pdf"})
	c.Set(ctx, "snare eq", params, []byte("b"), []string{"mixing.pdf"})
	c.Set(ctx, "vocal compression", params, []byte("c"), []string{"vocals.pdf"})

	if got := c.InvalidateSource(ctx, "mixing.pdf"); got != 2 {
		t.Errorf("InvalidateSource(mixing.pdf) = %d, want 2", got)
	}

	// Entries under other tags are untouched
	if _, ok := c.Get(ctx, "vocal compression", params); !ok {
		t.Error("Entry under a different tag was invalidated")
	}
	if _, ok := c.Get(ctx, "kick eq", params); ok {
		t.Error("Invalidated entry still readable")
	}
}

func TestResponseCache_InvalidateUnknownTag(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})

	if got := c.InvalidateSource(context.Background(), "never-ingested.pdf"); got != 0 {
		t.Errorf("InvalidateSource(unknown) = %d, want 0", got)
	}
}

func TestResponseCache_EntrySharedAcrossTags(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	// One entry cited two sources
	c.Set(ctx, "kick eq", params, []byte("a"), []string{"mixing.pdf", "drums.pdf"})

	if got := c.InvalidateSource(ctx, "mixing.pdf"); got != 1 {
		t.Errorf("InvalidateSource(mixing.pdf) = %d, want 1", got)
	}

	// The other tag now points at a deleted entry; invalidating it
	// removes nothing more
	if got := c.InvalidateSource(ctx, "drums.pdf"); got != 0 {
		t.Errorf("InvalidateSource(drums.pdf) = %d, want 0", got)
	}
}

func TestResponseCache_Flush(t *testing.T) {
	s := store.NewMemory()
	c := NewResponseCache(s, Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "q1", params, []byte("a"), []string{"t1"})
	c.Set(ctx, "q2", params, []byte("b"), []string{"t2"})
	c.Set(ctx, "q3", params, []byte("c"), nil)

	if got := c.Flush(ctx); got != 3 {
		t.Errorf("Flush() = %d, want 3", got)
	}

	for _, q := range []string{"q1", "q2", "q3"} {
		if _, ok := c.Get(ctx, q, params); ok {
			t.Errorf("Get(%q) after flush = hit, want miss", q)
		}
	}

	// Tags were removed with the entries
	keys, err := s.Scan(ctx, "rctag:")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Tags remaining after flush: %v", keys)
	}

	if got := c.Flush(ctx); got != 0 {
		t.Errorf("Second Flush() = %d, want 0", got)
	}
}

func TestResponseCache_EntryExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := store.NewMemory().WithClock(clock)
	c := NewResponseCache(s, Config{
		EntryTTL:    time.Hour,
		TagTTLSlack: 5 * time.Minute,
	})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "kick eq", params, []byte("a"), []string{"mixing.pdf"})

	// Entry expires after its TTL; the tag index lives slightly longer
	now = now.Add(time.Hour + time.Minute)
	if _, ok := c.Get(ctx, "kick eq", params); ok {
		t.Error("Get() after EntryTTL = hit, want miss")
	}
	members, err := s.SetMembers(ctx, "rctag:mixing.pdf")
	if err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Tag members within slack window = %d, want 1", len(members))
	}

	// Past the slack the tag expires too
	now = now.Add(10 * time.Minute)
	members, err = s.SetMembers(ctx, "rctag:mixing.pdf")
	if err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}
	if len(members) != 0 {
		t.Errorf("Tag members past slack = %d, want 0", len(members))
	}
}

func TestResponseCache_FailToMiss(t *testing.T) {
	var backendErrs []error
	c := NewResponseCache(brokenStore{}, Config{
		OnBackendError: func(err error) {
			backendErrs = append(backendErrs, err)
		},
	})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	// Every operation degrades quietly
	if _, ok := c.Get(ctx, "q", params); ok {
		t.Error("Get() on broken store = hit, want miss")
	}
	c.Set(ctx, "q", params, []byte("v"), []string{"t"})
	if got := c.InvalidateSource(ctx, "t"); got != 0 {
		t.Errorf("InvalidateSource() on broken store = %d, want 0", got)
	}
	if got := c.Flush(ctx); got != 0 {
		t.Errorf("Flush() on broken store = %d, want 0", got)
	}

	if len(backendErrs) == 0 {
		t.Fatal("OnBackendError never fired")
	}
	if !errors.Is(backendErrs[0], errStoreDown) {
		t.Errorf("OnBackendError err = %v, want %v", backendErrs[0], errStoreDown)
	}

	stats := c.Stats()
	if stats.Errors == 0 {
		t.Error("Stats.Errors = 0, want > 0")
	}
	if stats.Sets != 0 {
		t.Errorf("Stats.Sets = %d, want 0 (entry write failed)", stats.Sets)
	}
}

func TestResponseCache_Stats(t *testing.T) {
	c := NewResponseCache(store.NewMemory(), Config{})
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	_, _ = c.Get(ctx, "q", params) // miss
	c.Set(ctx, "q", params, []byte("v"), nil)
	_, _ = c.Get(ctx, "q", params) // hit
	_, _ = c.Get(ctx, "q", params) // hit
	_, _ = c.Get(ctx, "other", params) // miss

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Stats.Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Stats.Misses = %d, want 2", stats.Misses)
	}
	if stats.Sets != 1 {
		t.Errorf("Stats.Sets = %d, want 1", stats.Sets)
	}
	if stats.Errors != 0 {
		t.Errorf("Stats.Errors = %d, want 0", stats.Errors)
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewDisabled()
	ctx := context.Background()
	params := Params{ResultCount: 5, Threshold: 0.5}

	c.Set(ctx, "q", params, []byte("v"), []string{"t"})
	if _, ok := c.Get(ctx, "q", params); ok {
		t.Error("Disabled Get() = hit, want miss")
	}
	if got := c.InvalidateSource(ctx, "t"); got != 0 {
		t.Errorf("Disabled InvalidateSource() = %d, want 0", got)
	}
	if got := c.Flush(ctx); got != 0 {
		t.Errorf("Disabled Flush() = %d, want 0", got)
	}
	if stats := c.Stats(); stats != (Stats{}) {
		t.Errorf("Disabled Stats() = %+v, want zero", stats)
	}
}
