/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: worktree.go
Description: Work tree implementation for the Akaylee DFA engine. A double-ended
queue of address ranges pending fault trials, backed by a growable ring buffer.
Supports the four traversal policies (left/right × depth/breadth) through cheap
operations at both ends.
*/

package core

import (
	"github.com/kleascm/akaylee-dfa/pkg/interfaces"
)

// WorkTree holds the address ranges still awaiting a fault trial
// Owned by the single search goroutine; no locking by contract
type WorkTree struct {
	buf  []interfaces.Range // Ring buffer backing store
	head int                // Index of the front element
	size int                // Current number of elements

	// Performance tracking
	pushes int64
	pops   int64
	peak   int
}

// NewWorkTree creates a new empty work tree
func NewWorkTree() *WorkTree {
	return &WorkTree{
		buf: make([]interfaces.Range, 16),
	}
}

// NewWorkTreeFrom creates a work tree seeded with the given ranges in order
// The first slice element becomes the front of the tree
func NewWorkTreeFrom(ranges []interfaces.Range) *WorkTree {
	tree := NewWorkTree()
	tree.ExtendBack(ranges)
	return tree
}

// PushBack appends a range at the back of the tree
func (t *WorkTree) PushBack(r interfaces.Range) {
	t.grow()
	t.buf[(t.head+t.size)%len(t.buf)] = r
	t.size++
	t.track()
}

// PushFront prepends a range at the front of the tree
func (t *WorkTree) PushFront(r interfaces.Range) {
	t.grow()
	t.head = (t.head - 1 + len(t.buf)) % len(t.buf)
	t.buf[t.head] = r
	t.size++
	t.track()
}

// PopFront removes and returns the front range
// The second return value is false when the tree is empty
func (t *WorkTree) PopFront() (interfaces.Range, bool) {
	if t.size == 0 {
		return interfaces.Range{}, false
	}
	r := t.buf[t.head]
	t.head = (t.head + 1) % len(t.buf)
	t.size--
	t.pops++
	return r, true
}

// PopBack removes and returns the back range
// The second return value is false when the tree is empty
func (t *WorkTree) PopBack() (interfaces.Range, bool) {
	if t.size == 0 {
		return interfaces.Range{}, false
	}
	t.size--
	r := t.buf[(t.head+t.size)%len(t.buf)]
	t.pops++
	return r, true
}

// ExtendBack appends the ranges at the back, preserving slice order
func (t *WorkTree) ExtendBack(ranges []interfaces.Range) {
	for _, r := range ranges {
		t.PushBack(r)
	}
}

// ExtendFront prepends the ranges at the front, preserving slice order:
// afterwards ranges[0] is the new front. Used when breadth-first traversal
// re-queues split children at the far end of a right-to-left scan.
func (t *WorkTree) ExtendFront(ranges []interfaces.Range) {
	for i := len(ranges) - 1; i >= 0; i-- {
		t.PushFront(ranges[i])
	}
}

// Len returns the current number of pending ranges
func (t *WorkTree) Len() int {
	return t.size
}

// IsEmpty returns true if no ranges are pending
func (t *WorkTree) IsEmpty() bool {
	return t.size == 0
}

// GetStats returns work tree usage statistics
func (t *WorkTree) GetStats() map[string]interface{} {
	stats := make(map[string]interface{})
	stats["size"] = t.size
	stats["capacity"] = len(t.buf)
	stats["pushes"] = t.pushes
	stats["pops"] = t.pops
	stats["peak_size"] = t.peak
	return stats
}

// grow doubles the ring buffer when full, unwrapping the contents
func (t *WorkTree) grow() {
	if t.size < len(t.buf) {
		return
	}
	bigger := make([]interfaces.Range, len(t.buf)*2)
	n := copy(bigger, t.buf[t.head:])
	copy(bigger[n:], t.buf[:t.head])
	t.buf = bigger
	t.head = 0
}

// track records a push for the usage statistics
func (t *WorkTree) track() {
	t.pushes++
	if t.size > t.peak {
		t.peak = t.size
	}
}
