package routing

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEntry builds an entry registered in the tokenIn -> tokenOut direction.
func newEntry(tokenIn, tokenOut common.Address, cfg engine.RouteConfig) RouteEntry {
	return RouteEntry{
		Key:    DerivePairKey(tokenIn, tokenOut),
		TokenA: tokenIn,
		TokenB: tokenOut,
		Config: cfg,
	}
}

func TestNewSystem(t *testing.T) {
	t.Run("should panic on a nil logger", func(t *testing.T) {
		assert.Panics(t, func() { NewSystem(nil, 0) })
	})

	t.Run("should start with an empty non-nil view", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		view := system.View()
		require.NotNil(t, view)
		assert.Empty(t, view.Entries)
	})
}

func TestSystemPutAndGet(t *testing.T) {
	t.Run("should return the committed entry", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv2.Route{HopTokens: []common.Address{dai}})

		system.Put(entry)

		got, ok := system.Get(entry.Key)
		require.True(t, ok)
		assert.Equal(t, entry.Key, got.Key)
		assert.True(t, entry.Config.Equal(got.Config))
		assert.Equal(t, 1, system.Len())
	})

	t.Run("should overwrite an existing entry, last write wins", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv2.Route{})
		system.Put(entry)

		replacement := newEntry(weth, usdc, uniswapv3.Route{Fee: 3000})
		system.Put(replacement)

		got, ok := system.Get(entry.Key)
		require.True(t, ok)
		assert.Equal(t, engine.BackendConcentratedLiquidity, got.Backend())
		assert.Equal(t, 1, system.Len())
	})

	t.Run("should report a miss for an unknown pair", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		_, ok := system.Get(DerivePairKey(weth, dai))
		assert.False(t, ok)
	})
}

func TestSystemDeepCopyIsolation(t *testing.T) {
	t.Run("should not alias the caller's payload on the way in", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		hops := []common.Address{dai}
		entry := newEntry(weth, usdc, uniswapv2.Route{HopTokens: hops})
		system.Put(entry)

		hops[0] = weth // caller mutates its own slice after committing

		got, _ := system.Get(entry.Key)
		assert.Equal(t, dai, got.Config.(uniswapv2.Route).HopTokens[0])
	})

	t.Run("should not alias stored state on the way out", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv2.Route{HopTokens: []common.Address{dai}})
		system.Put(entry)

		got, _ := system.Get(entry.Key)
		got.Config.(uniswapv2.Route).HopTokens[0] = weth

		fresh, _ := system.Get(entry.Key)
		assert.Equal(t, dai, fresh.Config.(uniswapv2.Route).HopTokens[0])
	})
}

func TestSystemView(t *testing.T) {
	t.Run("should reflect committed entries", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv3.Route{Fee: 500})
		system.Put(entry)

		view := system.View()
		require.Len(t, view.Entries, 1)
		assert.True(t, entry.Config.Equal(view.Entries[entry.Key].Config))
	})

	t.Run("should hand out independent snapshots", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		system.Put(newEntry(weth, usdc, uniswapv2.Route{}))

		view := system.View()
		for key := range view.Entries {
			delete(view.Entries, key)
		}
		assert.Equal(t, 1, system.Len())
	})

	t.Run("should refresh the cached view after a write", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		before := system.View()
		system.Put(newEntry(weth, dai, uniswapv2.Route{}))

		assert.Empty(t, before.Entries)
		assert.Len(t, system.View().Entries, 1)
	})
}

func TestSystemUpdates(t *testing.T) {
	t.Run("should broadcast a route change for every committed entry", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv3.Route{Fee: 3000})
		system.Put(entry)

		select {
		case change := <-system.Updates():
			assert.Equal(t, entry.Key, change.Key)
			assert.Equal(t, entry.TokenA, change.TokenA)
			assert.Equal(t, entry.TokenB, change.TokenB)
			assert.Equal(t, engine.BackendConcentratedLiquidity, change.Backend)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for route change")
		}
	})

	t.Run("should drop changes instead of blocking when the buffer is full", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 1)

		done := make(chan struct{})
		go func() {
			defer close(done)
			system.Put(newEntry(weth, usdc, uniswapv2.Route{}))
			system.Put(newEntry(weth, dai, uniswapv2.Route{}))
			system.Put(newEntry(usdc, dai, uniswapv2.Route{}))
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Put blocked on a full update buffer")
		}
		assert.Len(t, system.Updates(), 1)
		assert.Equal(t, 3, system.Len())
	})
}

func TestSystemApplyDiff(t *testing.T) {
	t.Run("should apply deletions, updates and additions in one write", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		stale := newEntry(weth, usdc, uniswapv2.Route{})
		rerouted := newEntry(weth, dai, uniswapv2.Route{})
		system.Put(stale)
		system.Put(rerouted)
		drainUpdates(system)

		added := newEntry(usdc, dai, uniswapv3.Route{Fee: 500})
		updated := newEntry(weth, dai, uniswapv3.Route{Fee: 3000})
		system.ApplyDiff(TableDiff{
			Additions: []RouteEntry{added},
			Updates:   []RouteEntry{updated},
			Deletions: []PairKey{stale.Key},
		})

		_, ok := system.Get(stale.Key)
		assert.False(t, ok)
		got, ok := system.Get(updated.Key)
		require.True(t, ok)
		assert.True(t, updated.Config.Equal(got.Config))
		assert.Equal(t, 2, system.Len())
	})

	t.Run("should broadcast changes for upserts but not deletions", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		stale := newEntry(weth, usdc, uniswapv2.Route{})
		system.Put(stale)
		drainUpdates(system)

		added := newEntry(weth, dai, uniswapv3.Route{Fee: 500})
		system.ApplyDiff(TableDiff{
			Additions: []RouteEntry{added},
			Deletions: []PairKey{stale.Key},
		})

		select {
		case change := <-system.Updates():
			assert.Equal(t, added.Key, change.Key)
			assert.Equal(t, engine.BackendConcentratedLiquidity, change.Backend)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for route change")
		}
		assert.Empty(t, system.Updates())
	})

	t.Run("should leave the table untouched by an empty diff", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		system.Put(newEntry(weth, usdc, uniswapv2.Route{}))
		drainUpdates(system)

		system.ApplyDiff(TableDiff{})

		assert.Equal(t, 1, system.Len())
		assert.Empty(t, system.Updates())
	})
}

func TestSystemClose(t *testing.T) {
	t.Run("should terminate range consumers", func(t *testing.T) {
		system := NewSystem(newTestLogger(), 0)
		system.Put(newEntry(weth, usdc, uniswapv2.Route{}))

		done := make(chan int)
		go func() {
			seen := 0
			for range system.Updates() {
				seen++
			}
			done <- seen
		}()

		system.Close()

		select {
		case seen := <-done:
			assert.Equal(t, 1, seen)
		case <-time.After(time.Second):
			t.Fatal("consumer did not terminate after Close")
		}
	})
}

func drainUpdates(system *System) {
	for {
		select {
		case <-system.Updates():
		default:
			return
		}
	}
}

func TestSystemRestoreFromView(t *testing.T) {
	t.Run("should rebuild the table without emitting route changes", func(t *testing.T) {
		source := NewSystem(newTestLogger(), 0)
		entry := newEntry(weth, usdc, uniswapv3.Route{Fee: 500})
		source.Put(entry)

		restored := NewSystemFromView(newTestLogger(), 0, source.View())

		got, ok := restored.Get(entry.Key)
		require.True(t, ok)
		assert.True(t, entry.Config.Equal(got.Config))
		assert.Empty(t, restored.Updates())
	})
}

func BenchmarkSystemView(b *testing.B) {
	system := NewSystem(newTestLogger(), 0)
	for i := 0; i < 100; i++ {
		token := common.BigToAddress(common.Big1)
		other := common.BytesToAddress([]byte(fmt.Sprintf("token-%d", i)))
		system.Put(newEntry(token, other, uniswapv2.Route{HopTokens: []common.Address{dai}}))
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			view := system.View()
			if len(view.Entries) == 0 {
				b.Fatal("empty view")
			}
		}
	})
}
