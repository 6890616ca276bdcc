// Package replay implements fixed-capacity transition storage for
// off-policy agents: per-field ring buffers, a composed replay memory
// with uniform and combined sampling, and an n-step rollout
// accumulator.
package replay

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Backend selects the container type backing a RingBuffer. The backend
// is a per-instance construction parameter so that buffers with
// different backends can coexist in one process.
type Backend int

const (
	// Gonum backs the buffer with a flat []float64, ready for
	// gonum/mat views.
	Gonum Backend = iota

	// Tensor backs the buffer with a gorgonia tensor.Dense of shape
	// (capacity, dim).
	Tensor
)

// String implements the Stringer interface
func (b Backend) String() string {
	switch b {
	case Gonum:
		return "Gonum"
	case Tensor:
		return "Tensor"
	default:
		return "Unknown"
	}
}

// storage is the dense container behind a RingBuffer. Slot indices are
// storage positions; the RingBuffer guarantees storage position i is
// logical position i.
type storage interface {
	// set copies value into slot i
	set(i int, value []float64)

	// shift moves every element one slot toward the front, dropping
	// slot 0
	shift()

	// gather stacks the slots at the given positions into a fresh,
	// independently owned slice
	gather(indices []int) []float64
}

// sliceStorage backs a RingBuffer with a flat float64 slice.
type sliceStorage struct {
	data   []float64
	stride int
}

func newSliceStorage(capacity, dim int) *sliceStorage {
	return &sliceStorage{
		data:   make([]float64, capacity*dim),
		stride: dim,
	}
}

func (s *sliceStorage) set(i int, value []float64) {
	copy(s.data[i*s.stride:(i+1)*s.stride], value)
}

func (s *sliceStorage) shift() {
	copy(s.data, s.data[s.stride:])
}

func (s *sliceStorage) gather(indices []int) []float64 {
	out := make([]float64, len(indices)*s.stride)
	for i, index := range indices {
		copy(out[i*s.stride:(i+1)*s.stride],
			s.data[index*s.stride:(index+1)*s.stride])
	}
	return out
}

// tensorStorage backs a RingBuffer with a dense tensor of shape
// (capacity, dim). All mutation goes through the raw backing slice;
// the tensor is the canonical owner of the data.
type tensorStorage struct {
	container *tensor.Dense
	backing   []float64
	stride    int
}

func newTensorStorage(capacity, dim int) *tensorStorage {
	backing := make([]float64, capacity*dim)
	container := tensor.New(
		tensor.WithShape(capacity, dim),
		tensor.WithBacking(backing),
	)
	return &tensorStorage{
		container: container,
		backing:   backing,
		stride:    dim,
	}
}

func (t *tensorStorage) set(i int, value []float64) {
	copy(t.backing[i*t.stride:(i+1)*t.stride], value)
}

func (t *tensorStorage) shift() {
	copy(t.backing, t.backing[t.stride:])
}

func (t *tensorStorage) gather(indices []int) []float64 {
	out := make([]float64, len(indices)*t.stride)
	for i, index := range indices {
		copy(out[i*t.stride:(i+1)*t.stride],
			t.backing[index*t.stride:(index+1)*t.stride])
	}
	return out
}

// RingBuffer is a fixed-capacity FIFO store for one semantic field of
// fixed per-element dimension. Once full, every Add evicts the
// logically oldest element by shifting the remaining elements one slot
// toward the front, so slot 0 is always the oldest surviving element
// and slot size-1 the most recent.
type RingBuffer struct {
	store    storage
	capacity int
	dim      int
	size     int
}

// NewRingBuffer returns a new RingBuffer holding up to capacity
// elements of dim values each, stored in the container selected by
// backend.
func NewRingBuffer(capacity, dim int, backend Backend) (*RingBuffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("newringbuffer: capacity must be >= 1, "+
			"got %v", capacity)
	}
	if dim < 1 {
		return nil, fmt.Errorf("newringbuffer: dim must be >= 1, got %v", dim)
	}

	var store storage
	switch backend {
	case Gonum:
		store = newSliceStorage(capacity, dim)
	case Tensor:
		store = newTensorStorage(capacity, dim)
	default:
		return nil, fmt.Errorf("newringbuffer: unknown backend %v", backend)
	}

	return &RingBuffer{
		store:    store,
		capacity: capacity,
		dim:      dim,
	}, nil
}

// Add writes value at the next logical slot. If the buffer is not yet
// full the value is appended; otherwise the oldest element is evicted
// first. Adding beyond capacity is defined behaviour, never an error.
func (r *RingBuffer) Add(value []float64) error {
	if len(value) != r.dim {
		return fmt.Errorf("add: invalid element size \n\twant(%v)"+
			"\n\thave(%v)", r.dim, len(value))
	}

	if r.size < r.capacity {
		r.store.set(r.size, value)
		r.size++
		return nil
	}

	r.store.shift()
	r.store.set(r.capacity-1, value)
	return nil
}

// Sample returns a stacked copy of the elements at the given 0-based
// indices into the logical ordering. The returned slice is
// independently owned: later Add calls never mutate it.
func (r *RingBuffer) Sample(indices []int) ([]float64, error) {
	for _, index := range indices {
		if index < 0 || index >= r.size {
			return nil, &MemoryError{Op: "sample", Err: errIndexOutOfRange}
		}
	}
	return r.store.gather(indices), nil
}

// At returns a copy of the element at logical index i.
func (r *RingBuffer) At(i int) ([]float64, error) {
	return r.Sample([]int{i})
}

// Size returns the number of elements currently stored.
func (r *RingBuffer) Size() int {
	return r.size
}

// Capacity returns the maximum number of elements the buffer holds.
func (r *RingBuffer) Capacity() int {
	return r.capacity
}

// Dim returns the per-element dimension.
func (r *RingBuffer) Dim() int {
	return r.dim
}

// Reset clears the buffer to empty without reallocating.
func (r *RingBuffer) Reset() {
	r.size = 0
}
