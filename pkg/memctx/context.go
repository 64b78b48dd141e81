// Package memctx implements a hierarchical region allocator.
//
// A Context owns a chain of backing buffers and hands out Blocks carved out
// of them. Freeing a Context releases its buffers in one shot instead of
// tracking individual allocations; a child Context's buffers are themselves
// carved out of its parent, so freeing the parent implicitly invalidates
// every descendant. This mirrors the arena-per-request idiom the rest of
// this codebase's ancestry uses (see the root buffer pool below), just with
// a real free list instead of a bump pointer, because blocks here do get
// deallocated and reused within a Context's lifetime.
package memctx

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/valyala/bytebufferpool"
)

const (
	firstBufferSize = 8192
	initialLimit    = 4
	maxAlignment    = 16
)

// span is the address range of one backing buffer, [start, end).
type span struct {
	start uintptr
	end   uintptr
}

// block describes one allocation-sized region, free or in use.
type block struct {
	addr uintptr
	size uintptr
}

// Context is a region allocator node. The zero Context is not usable; build
// one with New or NewChild.
type Context struct {
	mu sync.Mutex

	parent *Context

	buffers [][]byte // keeps backing memory alive; addr arithmetic points into these
	spans   []span   // buffer bounds, parallel in spirit to buffers (not index-aligned after growth order changes)

	free []block // sorted by (size, addr) ascending
	used []block // sorted by addr ascending

	pool *bytebufferpool.Pool // only set on a root (parentless) context
	raw  []*bytebufferpool.ByteBuffer
}

// rootPool is the process-wide source of backing memory for root contexts,
// the same role bytebufferpool plays for per-connection buffers elsewhere
// in this family of codebases.
var rootPool = new(bytebufferpool.Pool)

// New creates a root context. Its buffers are drawn from a process-wide
// bytebufferpool instead of raw make([]byte, n), so repeated
// New/Free cycles (one per incoming connection, say) don't churn the GC.
func New() *Context {
	return &Context{pool: rootPool}
}

// NewChild creates a context whose buffers are themselves allocated out of
// parent. Freeing parent without first freeing child leaves child's blocks
// referring to memory parent no longer owns; callers must not do that.
func NewChild(parent *Context) *Context {
	if parent == nil {
		panic("memctx: NewChild called with nil parent")
	}
	return &Context{parent: parent}
}

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		panic("memctx: addrOf called on empty slice")
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// growthSize picks the next buffer size: the first buffer is
// firstBufferSize, and each subsequent one at least doubles the context's
// total capacity, but never smaller than what's being asked for.
func (c *Context) growthSize(minSize uintptr) uintptr {
	total := uintptr(0)
	for _, s := range c.spans {
		total += s.end - s.start
	}
	size := uintptr(firstBufferSize)
	if total > 0 {
		size = total
	}
	for size < minSize {
		size *= 2
	}
	return size
}

// growPooledBuffer extends b's backing array to at least n bytes, reusing
// whatever capacity a previous Put left behind before allocating more. A
// plain b.B = make([]byte, n) would throw that capacity away on every call,
// defeating the pool; growing via append on the existing slice is what lets
// the backing array, not just the ByteBuffer wrapper, survive a Put/Get
// round trip.
func growPooledBuffer(b *bytebufferpool.ByteBuffer, n int) {
	if cap(b.B) >= n {
		b.B = b.B[:n]
		return
	}
	b.B = append(b.B[:cap(b.B)], make([]byte, n-cap(b.B))...)
}

func (c *Context) grow(minSize uintptr) {
	size := c.growthSize(minSize)

	var buf []byte
	var raw *bytebufferpool.ByteBuffer
	if c.parent == nil {
		raw = c.pool.Get()
		growPooledBuffer(raw, int(size))
		buf = raw.B
	} else {
		c.parent.mu.Lock()
		buf = c.parent.allocLocked(size)
		c.parent.mu.Unlock()
	}

	c.buffers = append(c.buffers, buf)
	if raw != nil {
		c.raw = append(c.raw, raw)
	} else {
		c.raw = append(c.raw, nil)
	}

	start := addrOf(buf)
	end := start + uintptr(len(buf))
	c.spans = append(c.spans, span{start: start, end: end})
	c.insertFree(block{addr: start, size: end - start})
}

// --- free list: sorted by (size, addr) ---

func (c *Context) freeSearch(size uintptr) int {
	return sort.Search(len(c.free), func(i int) bool {
		f := c.free[i]
		if f.size != size {
			return f.size >= size
		}
		return true
	})
}

func freeLess(a, b block) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.addr < b.addr
}

func (c *Context) insertFree(b block) {
	i := sort.Search(len(c.free), func(i int) bool { return !freeLess(c.free[i], b) })
	c.free = append(c.free, block{})
	copy(c.free[i+1:], c.free[i:])
	c.free[i] = b
}

func (c *Context) removeFreeAt(i int) {
	copy(c.free[i:], c.free[i+1:])
	c.free = c.free[:len(c.free)-1]
}

func (c *Context) findFreeByAddr(addr uintptr) int {
	for i, f := range c.free {
		if f.addr == addr {
			return i
		}
	}
	return -1
}

// --- used list: sorted by addr ---

func usedLess(a, b block) bool { return a.addr < b.addr }

func (c *Context) insertUsed(b block) {
	i := sort.Search(len(c.used), func(i int) bool { return !usedLess(c.used[i], b) })
	c.used = append(c.used, block{})
	copy(c.used[i+1:], c.used[i:])
	c.used[i] = b
}

func (c *Context) findUsedIndex(addr uintptr) int {
	i := sort.Search(len(c.used), func(i int) bool { return c.used[i].addr >= addr })
	if i < len(c.used) && c.used[i].addr == addr {
		return i
	}
	return -1
}

func (c *Context) removeUsedAt(i int) {
	copy(c.used[i:], c.used[i+1:])
	c.used = c.used[:len(c.used)-1]
}

// spanEnd returns the end address of the buffer containing addr.
func (c *Context) spanEnd(addr uintptr) uintptr {
	for _, s := range c.spans {
		if addr >= s.start && addr < s.end {
			return s.end
		}
	}
	panic("memctx: address not within any buffer")
}

func alignment(unitSize uintptr) uintptr {
	a := uintptr(1)
	for a < unitSize {
		a *= 2
	}
	if a > maxAlignment {
		a = maxAlignment
	}
	if a < 1 {
		a = 1
	}
	return a
}

func padding(addr uintptr, align uintptr) uintptr {
	rem := addr % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

// allocLocked must be called with c.mu held.
func (c *Context) allocLocked(size uintptr) []byte {
	if size == 0 {
		size = 1
	}

	for attempt := 0; attempt < 2; attempt++ {
		i := c.freeSearch(size)
		for ; i < len(c.free); i++ {
			f := c.free[i]
			pad := padding(f.addr, alignment(size))
			need := pad + size
			if f.size < need {
				continue
			}
			c.removeFreeAt(i)
			if pad > 0 {
				c.insertFree(block{addr: f.addr, size: pad})
			}
			used := block{addr: f.addr + pad, size: size}
			remainder := f.size - need
			if remainder > 0 {
				c.insertFree(block{addr: used.addr + size, size: remainder})
			}
			c.insertUsed(used)
			return unsafe.Slice((*byte)(unsafe.Pointer(used.addr)), int(used.size))
		}
		c.grow(size + maxAlignment)
	}
	panic("memctx: allocation failed after growth")
}

// Alloc returns size bytes of uninitialised memory owned by c.
func (c *Context) Alloc(size int) []byte {
	if size < 0 {
		panic("memctx: negative allocation size")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocLocked(uintptr(size))
}

// ZeroAlloc returns size zeroed bytes owned by c.
func (c *Context) ZeroAlloc(size int) []byte {
	b := c.Alloc(size)
	for i := range b {
		b[i] = 0
	}
	return b
}

// CopyString returns a copy of s allocated from c, as a Go string backed by
// context-owned memory (valid only as long as c is not reset or freed).
func (c *Context) CopyString(s string) string {
	b := c.Alloc(len(s))
	copy(b, s)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Resize grows b in place when the following free neighbor has room, and
// falls back to a fresh allocation plus copy otherwise. A shrink request
// returns b truncated to newSize and leaves the block's registered size
// unchanged.
func (c *Context) Resize(b []byte, newSize int) []byte {
	if newSize < 0 {
		panic("memctx: negative resize size")
	}
	if len(b) == 0 {
		return c.Alloc(newSize)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	addr := addrOf(b)
	ui := c.findUsedIndex(addr)
	if ui < 0 {
		panic("memctx: Resize called on a block not owned by this context")
	}
	cur := c.used[ui]
	want := uintptr(newSize)

	if want <= cur.size {
		return b[:newSize]
	}

	grow := want - cur.size
	fi := c.findFreeByAddr(cur.addr + cur.size)
	if fi >= 0 && c.free[fi].size >= grow {
		f := c.free[fi]
		c.removeFreeAt(fi)
		if f.size > grow {
			c.insertFree(block{addr: f.addr + grow, size: f.size - grow})
		}
		c.used[ui].size = want
		return unsafe.Slice((*byte)(unsafe.Pointer(cur.addr)), newSize)
	}

	nb := c.allocLocked(want)
	copy(nb, b)
	c.dealloc(cur.addr)
	return nb
}

// Dealloc returns b to the context's free list, coalescing with adjacent
// free neighbors where possible.
func (c *Context) Dealloc(b []byte) {
	if len(b) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dealloc(addrOf(b))
}

func (c *Context) dealloc(addr uintptr) {
	ui := c.findUsedIndex(addr)
	if ui < 0 {
		panic("memctx: Dealloc called on a block not owned by this context")
	}
	b := c.used[ui]
	c.removeUsedAt(ui)

	// Coalesce with free neighbors on either side, but never across the
	// edge of the buffer b lives in.
	end := c.spanEnd(b.addr)
	for i, f := range c.free {
		if f.addr+f.size == b.addr && c.spanEnd(f.addr) == end {
			c.removeFreeAt(i)
			b.addr = f.addr
			b.size += f.size
			break
		}
	}
	for i, f := range c.free {
		if b.addr+b.size == f.addr && f.addr < end {
			c.removeFreeAt(i)
			b.size += f.size
			break
		}
	}
	c.insertFree(b)
}

// Reset releases every allocation in c without releasing its backing
// buffers, so the same memory can be reused for the next batch of work
// (one request, one render pass) without round-tripping through the
// allocator that owns c's buffers.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used = c.used[:0]
	c.free = c.free[:0]
	for _, s := range c.spans {
		c.insertFree(block{addr: s.start, size: s.end - s.start})
	}
}

// Free releases c's buffers back to its parent (or the root pool) and
// leaves c empty. Any descendant context built with NewChild(c) must be
// freed first; using one afterward touches memory c no longer owns.
func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parent != nil {
		for _, buf := range c.buffers {
			c.parent.Dealloc(buf)
		}
	} else {
		for _, raw := range c.raw {
			if raw != nil {
				c.pool.Put(raw)
			}
		}
	}
	c.buffers = nil
	c.raw = nil
	c.spans = nil
	c.free = nil
	c.used = nil
}

// CheckIntegrity verifies the free and used lists are each in their
// required sort order and that no two used blocks overlap; free blocks are
// not checked for overlap or adjacency. It's meant for tests and
// debug-mode assertions, mirroring the original allocator's debug-build
// integrity checker.
func (c *Context) CheckIntegrity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 1; i < len(c.free); i++ {
		if !freeLess(c.free[i-1], c.free[i]) {
			return fmt.Errorf("memctx: free list out of order at index %d", i)
		}
	}
	for i := 1; i < len(c.used); i++ {
		if !usedLess(c.used[i-1], c.used[i]) {
			return fmt.Errorf("memctx: used list out of order at index %d", i)
		}
		if c.used[i-1].addr+c.used[i-1].size > c.used[i].addr {
			return fmt.Errorf("memctx: used blocks overlap at index %d", i)
		}
	}
	return nil
}
