package mempool

import (
	"sync"
)

// Sized pools for the float32 tensors built on every detector call. A 640x640
// letterboxed frame is 1.2M floats, so reuse matters at video rates.

var float32Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// GetFloat32 retrieves a []float32 buffer of length n from the pool.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	p := poolFor(cls)
	if p == nil {
		return make([]float32, n, cls)
	}
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. Nil and foreign-sized slices are ignored.
func PutFloat32(buf []float32) {
	if buf == nil || cap(buf) < 1024 || cap(buf)%1024 != 0 {
		return
	}
	cls := cap(buf)
	if p := poolFor(cls); p != nil {
		p.Put(buf[:cls]) //nolint:staticcheck // SA6002: slice header copy is acceptable here
	}
}
