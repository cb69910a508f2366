package priceservice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeddevall/duckmon-agents-ai/internal/events"
)

type fakeSource struct {
	calls atomic.Int64
	delay time.Duration
	fail  bool
	price float64
}

func (f *fakeSource) FetchPrice(ctx context.Context, tokenAddress string) (events.PriceSample, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail {
		return events.PriceSample{}, fmt.Errorf("fake source failure")
	}
	return events.PriceSample{Price: f.price, TokenAddress: tokenAddress}, nil
}

func TestService_CachesWithinTTL(t *testing.T) {
	primary := &fakeSource{price: 1.5}
	svc := New(primary, nil)

	first, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, events.SourcePrimary, first.Source)

	second, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, events.SourceCache, second.Source)
	assert.Equal(t, first.Price, second.Price)

	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestService_CacheKeyIsCaseInsensitive(t *testing.T) {
	primary := &fakeSource{price: 1.5}
	svc := New(primary, nil)

	_, err := svc.GetPrice(context.Background(), "0xABC")
	require.NoError(t, err)
	second, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, events.SourceCache, second.Source)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestService_HistoryKeyIsCaseInsensitive(t *testing.T) {
	svc := New(&fakeSource{price: 1.0}, nil)
	svc.PrimeHistory("0xABC", []float64{1, 2, 3}, []float64{10, 20, 30})

	assert.Equal(t, []float64{1, 2, 3}, svc.PriceHistory("0xabc"))
	assert.Equal(t, []float64{10, 20, 30}, svc.VolumeHistory("0xAbC"))
}

func TestService_FallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeSource{fail: true}
	fallback := &fakeSource{price: 2.5}
	svc := New(primary, fallback)

	sample, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 2.5, sample.Price)
	assert.Equal(t, events.SourceFallback, sample.Source)
}

func TestService_ServesStaleOnTotalFailure(t *testing.T) {
	primary := &fakeSource{price: 1.0}
	svc := New(primary, nil)

	sample, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1.0, sample.Price)

	svc.mu.Lock()
	svc.cache["0xabc"] = cacheEntry{sample: sample, expiresAt: time.Now().Add(-time.Minute)}
	svc.mu.Unlock()
	primary.fail = true

	stale, err := svc.GetPrice(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1.0, stale.Price)
	assert.Equal(t, events.SourceCache, stale.Source)
}

func TestService_CoalescesConcurrentCallers(t *testing.T) {
	primary := &fakeSource{price: 3.0, delay: 50 * time.Millisecond}
	svc := New(primary, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetPrice(context.Background(), "0xabc")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestService_PrimeHistoryAndBondingProgress(t *testing.T) {
	svc := New(&fakeSource{price: 1.0}, nil)
	svc.PrimeHistory("0xabc", []float64{1, 2, 3}, []float64{10, 20, 30})

	assert.Equal(t, []float64{1, 2, 3}, svc.PriceHistory("0xabc"))
	assert.Equal(t, []float64{10, 20, 30}, svc.VolumeHistory("0xabc"))
	assert.Equal(t, 0.0, svc.BondingProgress("0xabc"))
}
