package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/OmRanAlot/BrownHacks2026/internal/store"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sample(extra float64) forecast.FusedForecast {
	return forecast.FusedForecast{
		BaselineRatePerHour: 42,
		ExtraPerHour:        extra,
		TotalPerHour:        42 + extra,
		SummaryLabel:        forecast.LabelOnPar,
		Signals:             []forecast.Signal{{SourceID: "p", DeltaPerHour: extra, Confidence: 0.5, Succeeded: true}},
		GeneratedAt:         time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	t.Parallel()

	c := store.NewMemoryCache(0)

	_, ok, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(t.Context(), "k", sample(3), time.Minute))

	got, ok, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3.0, got.ExtraPerHour)
}

func TestMemoryCache_LazyExpiry(t *testing.T) {
	t.Parallel()

	clk := &clock{now: time.Now()}
	c := store.NewMemoryCache(0, store.WithClock(clk.Now))
	require.NoError(t, c.Set(t.Context(), "k", sample(3), time.Minute))

	clk.Advance(59 * time.Second)
	_, ok, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, ok)

	// Expiry is exclusive: at expiresAt the entry is gone.
	clk.Advance(time.Second)
	_, ok, err = c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestMemoryCache_ReturnsIndependentCopies(t *testing.T) {
	t.Parallel()

	c := store.NewMemoryCache(0)
	value := sample(3)
	require.NoError(t, c.Set(t.Context(), "k", value, time.Minute))

	value.Signals[0].DeltaPerHour = 99
	got, _, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	got.Signals[0].Explanation = "mutated"

	again, _, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, 3.0, again.Signals[0].DeltaPerHour)
	require.Empty(t, again.Signals[0].Explanation)
}

func TestMemoryCache_MaxEntries(t *testing.T) {
	t.Parallel()

	clk := &clock{now: time.Now()}
	c := store.NewMemoryCache(2, store.WithClock(clk.Now))

	require.NoError(t, c.Set(t.Context(), "short", sample(1), time.Minute))
	require.NoError(t, c.Set(t.Context(), "long", sample(2), time.Hour))
	require.NoError(t, c.Set(t.Context(), "new", sample(3), time.Hour))

	require.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(t.Context(), "short")
	require.False(t, ok)
	_, ok, _ = c.Get(t.Context(), "long")
	require.True(t, ok)

	// Replacing an existing key never evicts.
	require.NoError(t, c.Set(t.Context(), "new", sample(4), time.Hour))
	require.Equal(t, 2, c.Len())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := store.NewMemoryCache(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(t.Context(), "k", sample(1), time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(t.Context(), "k")
		}()
	}
	wg.Wait()

	_, ok, err := c.Get(t.Context(), "k")
	require.NoError(t, err)
	require.True(t, ok)
}
