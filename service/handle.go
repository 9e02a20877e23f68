package service

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Exclusive owns a capability for a single owner. Closing the handle releases
// the capability if it implements io.Closer. Take hands ownership to someone
// else, after which Close is a no-op.
type Exclusive[T any] struct {
	value T
	held  bool
}

// NewExclusive wraps v.
func NewExclusive[T any](v T) *Exclusive[T] {
	return &Exclusive[T]{value: v, held: true}
}

// Value returns the capability. It panics once the handle has been closed or
// taken.
func (h *Exclusive[T]) Value() T {
	if !h.held {
		panic(fmt.Sprintf("service: use of exclusive %T handle after release", h.value))
	}
	return h.value
}

// Take transfers ownership to the caller.
func (h *Exclusive[T]) Take() (T, error) {
	var zero T
	if !h.held {
		return zero, ErrReleased
	}
	v := h.value
	h.value, h.held = zero, false
	return v, nil
}

// Close releases the capability. Calling it again is a no-op.
func (h *Exclusive[T]) Close() error {
	if !h.held {
		return nil
	}
	v := h.value
	var zero T
	h.value, h.held = zero, false
	return release(v)
}

// Shared is one holder's reference to a reference-counted capability. The
// capability is released when the last holder releases its reference.
type Shared[T any] struct {
	state    *sharedState[T]
	released atomic.Bool
}

type sharedState[T any] struct {
	value T
	refs  atomic.Int64
}

// NewShared wraps v with a single holder.
func NewShared[T any](v T) *Shared[T] {
	st := &sharedState[T]{value: v}
	st.refs.Store(1)
	return &Shared[T]{state: st}
}

// Value returns the capability. It panics after this holder released it.
func (h *Shared[T]) Value() T {
	if h.released.Load() {
		panic(fmt.Sprintf("service: use of shared %T handle after release", h.state.value))
	}
	return h.state.value
}

// Clone adds a holder.
func (h *Shared[T]) Clone() *Shared[T] {
	if h.released.Load() {
		panic("service: clone of released shared handle")
	}
	h.state.refs.Add(1)
	return &Shared[T]{state: h.state}
}

// Refs reports the number of live holders.
func (h *Shared[T]) Refs() int64 {
	return h.state.refs.Load()
}

// Release drops this holder's reference. Releasing twice through the same
// holder is a no-op.
func (h *Shared[T]) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	if h.state.refs.Add(-1) == 0 {
		return release(h.state.value)
	}
	return nil
}

func release(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
