package compositor

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// DefaultMaxCanvasPixels caps a single canvas at roughly 64 megapixels.
const DefaultMaxCanvasPixels = 64_000_000

// buffers larger than this are not returned to the pool
const maxPooledBytes = 32 << 20

var ErrCanvasUnavailable = errors.New("canvas unavailable")

// Canvas is a transparent RGBA drawing surface borrowed from an allocator.
// Release must be called exactly once when the canvas is no longer needed.
type Canvas struct {
	*image.NRGBA
	release func(*Canvas)
	done    atomic.Bool
}

// Release returns the canvas to its allocator. Extra calls are no-ops.
func (c *Canvas) Release() {
	if c == nil || !c.done.CompareAndSwap(false, true) {
		return
	}
	if c.release != nil {
		c.release(c)
	}
}

// CanvasAllocator hands out drawing surfaces.
type CanvasAllocator interface {
	Acquire(width, height int) (*Canvas, error)
}

// PoolAllocator recycles canvas pixel buffers through a sync.Pool.
type PoolAllocator struct {
	maxPixels   int
	pool        sync.Pool
	outstanding atomic.Int64
}

func NewPoolAllocator(maxPixels int) *PoolAllocator {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxCanvasPixels
	}
	return &PoolAllocator{
		maxPixels: maxPixels,
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]uint8, 0, 1<<20)
				return &b
			},
		},
	}
}

func (a *PoolAllocator) Acquire(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrCanvasUnavailable, width, height)
	}
	if width > a.maxPixels/height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrCanvasUnavailable, width, height, a.maxPixels)
	}

	need := 4 * width * height
	bp := a.pool.Get().(*[]uint8)
	buf := *bp
	if cap(buf) < need {
		buf = make([]uint8, need)
	} else {
		buf = buf[:need]
		clear(buf)
	}

	a.outstanding.Add(1)
	return &Canvas{
		NRGBA: &image.NRGBA{
			Pix:    buf,
			Stride: 4 * width,
			Rect:   image.Rect(0, 0, width, height),
		},
		release: a.put,
	}, nil
}

// Outstanding reports how many canvases are currently checked out.
func (a *PoolAllocator) Outstanding() int64 {
	return a.outstanding.Load()
}

func (a *PoolAllocator) put(c *Canvas) {
	a.outstanding.Add(-1)
	buf := c.Pix[:0]
	c.NRGBA = nil
	if cap(buf) > maxPooledBytes {
		return
	}
	a.pool.Put(&buf)
}
