package atomicf

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestF32StoreLoad(t *testing.T) {
	var f F32
	require.Equal(t, float32(0), f.Load())

	for _, v := range []float32{0.5, 0.25, -1.75, math.MaxFloat32, float32(math.Inf(-1))} {
		f.Store(v)
		require.Equal(t, v, f.Load())
	}

	nan := math.Float32frombits(0x7fc00001)
	f.Store(nan)
	require.Equal(t, uint32(0x7fc00001), math.Float32bits(f.Load()))

	f.Store(1)
	require.Equal(t, float32(1), f.Swap(2))
	require.Equal(t, float32(2), f.Load())
}

func TestF32Stress(t *testing.T) {
	const concurrency = 64
	const N = 2000

	var f F32
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			max := float32(-1)
			for j := 0; j < N; j++ {
				v := f.Load()
				if v < max {
					t.Error("unexpected decrease")
				}
				max = v
				f.Add(1)
			}
		}()
	}
	wg.Wait()
	// integers below 2^24 are exact in float32
	assert.Equal(t, float32(concurrency*N), f.Load())
}
