// Package atomicf provides lock-free float32 cells.
package atomicf

import (
	"math"
	"sync/atomic"
)

// F32 is a float32 stored as its IEEE-754 bits so it can be read and
// written atomically. The zero value holds 0.
type F32 struct {
	bits atomic.Uint32
}

// Load returns the current value.
func (f *F32) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

// Store sets the value. The bit pattern is kept exactly, NaN payloads
// included.
func (f *F32) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

// Swap stores v and returns the previous value.
func (f *F32) Swap(v float32) float32 {
	return math.Float32frombits(f.bits.Swap(math.Float32bits(v)))
}

// Add adds delta and returns the new value.
func (f *F32) Add(delta float32) float32 {
	for {
		oldBits := f.bits.Load()
		v := math.Float32frombits(oldBits) + delta
		if f.bits.CompareAndSwap(oldBits, math.Float32bits(v)) {
			return v
		}
	}
}
