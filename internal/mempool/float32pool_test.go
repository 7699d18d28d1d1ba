package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"zero size", 0, 1024},
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"letterboxed 640 frame", 3 * 640 * 640, 1228800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(3 * 64 * 64)
	assert.Len(t, buf, 3*64*64)
	assert.Equal(t, 0, cap(buf)%1024)
	PutFloat32(buf)

	again := GetFloat32(3 * 64 * 64)
	assert.Len(t, again, 3*64*64)
	PutFloat32(again)

	// foreign slices are ignored
	PutFloat32(nil)
	PutFloat32(make([]float32, 10))
}

func TestConcurrentAccess(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 50 {
				b := GetFloat32(1000 + n*700)
				b[0] = 1
				PutFloat32(b)
			}
		}(i)
	}
	wg.Wait()
}
