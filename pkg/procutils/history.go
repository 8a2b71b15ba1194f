// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procutils

// Frame is the generic new/old double buffer spec §3 requires of every
// provider that computes deltas: "old-frame counters equal a literal copy
// of the previous new-frame counters made at the start of each read,
// except on the very first read... where old equals new". Adapted from the
// teacher's generic ringbuffer.RingBuffer[T] container shape, simplified
// from a ring of N to a swap of exactly 2 (new/old), which is all any
// provider here needs.
type Frame[V any] struct {
	New   V
	Old   V
	armed bool
}

// Rotate copies New into Old and lets the caller overwrite New. It does the
// same on every call; providers make first-read deltas zero by copying New
// into Old themselves after their first parse.
func (f *Frame[V]) Rotate() {
	f.Old = f.New
	f.armed = true
}

// Primed reports whether Rotate has ever run on this frame.
func (f *Frame[V]) Primed() bool { return f.armed }

// History is the keyed new/old double buffer spec §4.1 describes for the
// pids provider: "a hash table keyed by task id maps to a small record...
// two hash tables and two backing arrays are kept, new and sav, and
// swapped each read". Go's builtin map already gives O(1) keyed lookup
// without procps's intrusive index-linked collision chains (those exist in
// the C original purely so the backing arrays can be realloc'd cheaply,
// an optimization a garbage-collected map makes moot) — see DESIGN.md.
type History[K comparable, V any] struct {
	cur  map[K]V
	prev map[K]V
}

func NewHistory[K comparable, V any]() *History[K, V] {
	return &History[K, V]{cur: make(map[K]V), prev: make(map[K]V)}
}

// BeginRead swaps cur into prev and starts a fresh, empty cur for the
// traversal about to happen — "new" becomes "sav" for lookup purposes
// while "new" is rebuilt entry by entry as records are iterated.
func (h *History[K, V]) BeginRead() {
	h.prev = h.cur
	h.cur = make(map[K]V, len(h.prev))
}

// Lookup returns the previous frame's entry for key, for delta computation
// while iterating the current frame.
func (h *History[K, V]) Lookup(key K) (V, bool) {
	v, ok := h.prev[key]
	return v, ok
}

// Record stores this frame's entry for key, visible to the next BeginRead.
func (h *History[K, V]) Record(key K, v V) {
	h.cur[key] = v
}

// Len reports how many keys have been recorded in the current frame so far.
func (h *History[K, V]) Len() int { return len(h.cur) }
