package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int32
	delay   time.Duration
	rates   map[string]float64
	err     error
}

func (f *fakeProvider) FetchRates(ctx context.Context) (map[string]float64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64, len(f.rates))
	for k, v := range f.rates {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_HitServesWithoutFetch(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1, "EUR": 0.9}}
	cache := NewCache(provider, time.Hour, discardLogger())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := cache.GetRates(context.Background(), now)
	if first.Source != SourceProvider {
		t.Fatalf("first fetch source = %s, want provider", first.Source)
	}

	second := cache.GetRates(context.Background(), now.Add(30*time.Minute))
	if second.Source != SourceProvider {
		t.Errorf("cache hit source = %s, want provider", second.Source)
	}
	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
}

func TestCache_ExpiryTriggersRefetch(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1, "EUR": 0.9}}
	cache := NewCache(provider, time.Hour, discardLogger())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.GetRates(context.Background(), now)
	cache.GetRates(context.Background(), now.Add(2*time.Hour))

	if got := atomic.LoadInt32(&provider.calls); got != 2 {
		t.Errorf("provider calls = %d, want 2", got)
	}
}

func TestCache_ServeStaleOnFetchFailure(t *testing.T) {
	provider := &fakeProvider{rates: map[string]float64{"USD": 1, "EUR": 0.9}}
	cache := NewCache(provider, time.Hour, discardLogger())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fresh := cache.GetRates(context.Background(), now)

	provider.setErr(errors.New("provider down"))
	stale := cache.GetRates(context.Background(), now.Add(3*time.Hour))

	if stale.Source != SourceStale {
		t.Fatalf("degraded source = %s, want stale", stale.Source)
	}
	if !stale.FetchedAt.Equal(fresh.FetchedAt) {
		t.Errorf("stale snapshot fetchedAt changed: %s vs %s", stale.FetchedAt, fresh.FetchedAt)
	}
	if stale.Rates["EUR"] != fresh.Rates["EUR"] {
		t.Errorf("stale snapshot rates changed")
	}

	// Recovery: provider back up, next expiry refetches.
	provider.setErr(nil)
	recovered := cache.GetRates(context.Background(), now.Add(4*time.Hour))
	if recovered.Source != SourceProvider {
		t.Errorf("recovered source = %s, want provider", recovered.Source)
	}
}

func TestCache_FallbackWithoutPriorSnapshot(t *testing.T) {
	provider := &fakeProvider{}
	provider.setErr(errors.New("provider down"))
	cache := NewCache(provider, time.Hour, discardLogger())

	snap := cache.GetRates(context.Background(), time.Now())
	if snap.Source != SourceFallback {
		t.Fatalf("source = %s, want fallback", snap.Source)
	}
	if r, ok := snap.Rate(PivotCurrency); !ok || r != 1 {
		t.Errorf("fallback pivot rate = %v, %v; want 1, true", r, ok)
	}
	for _, code := range []string{"EUR", "RUB", "GBP", "JPY", "CNY"} {
		if _, ok := snap.Rate(code); !ok {
			t.Errorf("fallback table missing %s", code)
		}
	}
}

func TestCache_ConcurrentMissesCoalesceToOneFetch(t *testing.T) {
	provider := &fakeProvider{
		rates: map[string]float64{"USD": 1, "EUR": 0.9},
		delay: 50 * time.Millisecond,
	}
	cache := NewCache(provider, time.Hour, discardLogger())

	const callers = 25
	now := time.Now()
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]Snapshot, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = cache.GetRates(context.Background(), now)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&provider.calls); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	for i, snap := range results {
		if snap.Source != SourceProvider {
			t.Errorf("caller %d source = %s, want provider", i, snap.Source)
		}
		if snap.Rates["EUR"] != 0.9 {
			t.Errorf("caller %d got incomplete snapshot", i)
		}
	}
}
