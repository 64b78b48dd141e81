// Package container provides generic dynamic-array and hash-map types
// backed by a memctx.Context, replacing the original's Array(TYPE)/Map(K,V)
// macro generators with monomorphised Go generics.
package container

import (
	"unsafe"

	"github.com/jespajo/votemap/pkg/memctx"
)

const arrayInitialCapacity = 64

// Array is a dynamic array whose backing storage is owned by a
// memctx.Context, growing by doubling the same way the context's own
// buffers do.
type Array[T any] struct {
	ctx   *memctx.Context
	raw   []byte
	count int
}

// NewArray creates an empty array backed by ctx.
func NewArray[T any](ctx *memctx.Context) *Array[T] {
	return &Array[T]{ctx: ctx}
}

func elemSize[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (a *Array[T]) view() []T {
	if a.raw == nil {
		return nil
	}
	es := elemSize[T]()
	if es == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&a.raw[0])), len(a.raw)/es)
}

// Reserve ensures the array can hold at least n elements without growing
// again.
func (a *Array[T]) Reserve(n int) {
	es := elemSize[T]()
	needBytes := n * es
	if len(a.raw) >= needBytes {
		return
	}
	newCap := arrayInitialCapacity * es
	if newCap == 0 {
		newCap = arrayInitialCapacity
	}
	for newCap < needBytes {
		newCap *= 2
	}
	if a.raw == nil {
		a.raw = a.ctx.Alloc(newCap)
	} else {
		a.raw = a.ctx.Resize(a.raw, newCap)
	}
}

// Add appends v, growing the backing buffer if necessary.
func (a *Array[T]) Add(v T) {
	a.Reserve(a.count + 1)
	a.view()[a.count] = v
	a.count++
}

// Get returns the element at index i.
func (a *Array[T]) Get(i int) T {
	return a.view()[i]
}

// Set overwrites the element at index i.
func (a *Array[T]) Set(i int, v T) {
	a.view()[i] = v
}

// Len returns the number of elements currently in the array.
func (a *Array[T]) Len() int {
	return a.count
}

// Slice returns the live elements as a Go slice. The slice is only valid
// until the next call that grows the array.
func (a *Array[T]) Slice() []T {
	return a.view()[:a.count]
}

// UnorderedRemoveByIndex removes the element at index i in O(1) by moving
// the last element into its place, matching
// array_unordered_remove_by_index_ — callers that rely on order should use
// a different removal strategy.
func (a *Array[T]) UnorderedRemoveByIndex(i int) {
	v := a.view()
	v[i] = v[a.count-1]
	a.count--
}

// Reverse reverses the live elements in place.
func (a *Array[T]) Reverse() {
	v := a.Slice()
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
