package analysis

import (
	"math"
	"sync/atomic"
)

// progress is written by the worker and read by the tick goroutine.
type progress struct {
	bits atomic.Uint64
}

func (p *progress) set(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.bits.Store(math.Float64bits(v))
}

// span maps step i of n onto [from, to].
func (p *progress) span(from, to float64, i, n int) {
	if n <= 0 {
		p.set(to)
		return
	}
	p.set(from + (to-from)*float64(i)/float64(n))
}

func (p *progress) get() float64 {
	return math.Float64frombits(p.bits.Load())
}
