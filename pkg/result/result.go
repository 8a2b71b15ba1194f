// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package result implements the shared stack/extent machinery every
// provider in this module builds on (spec §3, §4.6, §4.7): a tagged-union
// Result, an item-ordered Stack, a single-allocation Extent that owns N
// stacks, and a generic Sort.
//
// The C original represents a Result as an item enumerator plus a union
// payload, so a setter writing the wrong variant for an item is a runtime
// bug caught only by inspection. Generics let us keep the "one row per
// item, one setter per row" shape of the item table while making the
// variant follow the item's declared Kind at the call site instead of at
// the union's mercy — see the per-provider item tables for the row shape.
package result

import (
	"sort"

	"github.com/antimetal/procfs/pkg/procerr"
)

// ErrBadOrder and ErrItemNotConfigured are the InvalidArgs causes Sort can
// return (spec §4.1 "sort", §8 testable properties).
var (
	ErrBadOrder          = procerr.Wrap(procerr.InvalidArgs, "result.Sort", procerr.New("order must be +1 or -1"))
	ErrItemNotConfigured = procerr.Wrap(procerr.InvalidArgs, "result.Sort", procerr.New("item not present in stack's item list"))
)

// Item identifies an attribute a provider can report. Each provider
// defines its own enumeration as a distinct named int32 type.
type Item interface{ ~int32 }

// Kind is the payload variant carried by a Result, mirroring the C
// union members named in spec §3.
type Kind uint8

const (
	KindNone Kind = iota
	KindSChar
	KindSInt
	KindUInt
	KindSLong
	KindULong
	KindULongLong
	KindString
	KindStringVector
)

// Result is one tagged value within a Stack. The zero Result has Kind
// KindNone and an empty payload; Set* methods below choose the variant.
type Result[I Item] struct {
	Tag  I
	kind Kind
	i64  int64
	u64  uint64
	str  string
	strv []string
}

func (r *Result[I]) Kind() Kind { return r.kind }

func (r *Result[I]) SetSChar(v int8)       { r.kind, r.i64 = KindSChar, int64(v) }
func (r *Result[I]) SetSInt(v int32)       { r.kind, r.i64 = KindSInt, int64(v) }
func (r *Result[I]) SetUInt(v uint32)      { r.kind, r.u64 = KindUInt, uint64(v) }
func (r *Result[I]) SetSLong(v int64)      { r.kind, r.i64 = KindSLong, v }
func (r *Result[I]) SetULong(v uint64)     { r.kind, r.u64 = KindULong, v }
func (r *Result[I]) SetULongLong(v uint64) { r.kind, r.u64 = KindULongLong, v }
func (r *Result[I]) SetString(v string)    { r.kind, r.str = KindString, v }
func (r *Result[I]) SetStringVector(v []string) {
	r.kind, r.strv = KindStringVector, v
}

// SInt returns the signed integer payload regardless of the signed Kind
// it was stored under (SChar/SInt/SLong all widen to int64).
func (r *Result[I]) SInt() int64 { return r.i64 }

// UInt returns the unsigned integer payload regardless of the unsigned
// Kind it was stored under (UInt/ULong/ULongLong all widen to uint64).
func (r *Result[I]) UInt() uint64 { return r.u64 }

func (r *Result[I]) String() string          { return r.str }
func (r *Result[I]) StringVector() []string  { return r.strv }

// clear resets the payload but keeps Tag, matching CleanupStacksAll's
// "zero every result slot while preserving item tags" contract (spec §4.6).
func (r *Result[I]) clear() {
	r.kind = KindNone
	r.i64, r.u64 = 0, 0
	r.str = ""
	r.strv = nil
}

// Stack is an ordered, item-tagged sequence of Results terminated by a
// Result whose Tag is the provider's logical-end sentinel.
type Stack[I Item] struct {
	Head []Result[I]
}

// Offset returns the position of item within the stack's configured item
// list (excluding the logical-end terminator), or -1 if absent.
func (s *Stack[I]) Offset(item I) int {
	for i := 0; i < len(s.Head)-1; i++ {
		if s.Head[i].Tag == item {
			return i
		}
	}
	return -1
}

// At returns a pointer to the result at the given item, or nil if the
// stack was not configured with that item.
func (s *Stack[I]) At(item I) *Result[I] {
	if off := s.Offset(item); off >= 0 {
		return &s.Head[off]
	}
	return nil
}

// Extent is a single allocation owning Count stacks, each with the same
// item list, backed by one contiguous []Result[I] so that stacks are
// "results-contiguous" (spec invariant) and the whole extent frees as one
// Go allocation once unreferenced. Extents chain via Next to form the
// context-level extent list described in spec §3.
type Extent[I Item] struct {
	Stacks []*Stack[I]
	Next   *Extent[I]

	items      []I
	logicalEnd I
	backing    []Result[I]
}

// NewExtent allocates an extent of count stacks, each primed with items in
// order and terminated by logicalEnd, zeroed payloads throughout.
func NewExtent[I Item](items []I, logicalEnd I, count int) *Extent[I] {
	width := len(items) + 1
	backing := make([]Result[I], count*width)
	stacks := make([]*Stack[I], count)
	for i := 0; i < count; i++ {
		row := backing[i*width : (i+1)*width]
		for j, it := range items {
			row[j] = Result[I]{Tag: it}
		}
		row[len(items)] = Result[I]{Tag: logicalEnd}
		stacks[i] = &Stack[I]{Head: row}
	}
	return &Extent[I]{
		Stacks:     stacks,
		items:      items,
		logicalEnd: logicalEnd,
		backing:    backing,
	}
}

// Reset zeroes every result's payload across every stack in the extent
// while preserving item tags, per CleanupStacksAll (spec §4.6). A Reset
// extent can be refilled in place; the providers in this module allocate a
// fresh extent on every read instead.
func (e *Extent[I]) Reset() {
	for i := range e.backing {
		e.backing[i].clear()
	}
}

// Chain is the context-owned singly-linked list of extents (spec §3: "an
// extent belongs to exactly one context... multiple extents form a
// singly-linked list"). Growth appends a new extent rather than
// reallocating existing ones, so previously handed-out *Stack pointers
// stay valid until the whole chain is freed.
type Chain[I Item] struct {
	head  *Extent[I]
	total int
}

func (c *Chain[I]) Grow(items []I, logicalEnd I, count int) *Extent[I] {
	e := NewExtent(items, logicalEnd, count)
	e.Next = c.head
	c.head = e
	c.total += count
	return e
}

// FreeAll drops every extent in the chain (spec's extents_free_all).
func (c *Chain[I]) FreeAll() {
	c.head = nil
	c.total = 0
}

func (c *Chain[I]) Len() int { return c.total }

// Comparator orders two results of the same item; it returns <0, 0, >0
// the way a C comparator would, per §4.7 ("qsort... with a comparator
// chosen by the item's type").
type Comparator[I Item] func(a, b *Result[I]) int

// DefaultComparator derives an ordering from the Kind actually stored in
// the sample result, so callers do not need to hand-register a comparator
// for every plain numeric or string item — only items with non-default
// orderings (locale collation, tty-name natural order) need one.
func DefaultComparator[I Item](sample *Result[I]) Comparator[I] {
	switch sample.Kind() {
	case KindString:
		return func(a, b *Result[I]) int {
			as, bs := a.String(), b.String()
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	case KindSChar, KindSInt, KindSLong:
		return func(a, b *Result[I]) int {
			ai, bi := a.SInt(), b.SInt()
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	default:
		return func(a, b *Result[I]) int {
			au, bu := a.UInt(), b.UInt()
			switch {
			case au < bu:
				return -1
			case au > bu:
				return 1
			default:
				return 0
			}
		}
	}
}

// Sort reorders stacks stably by the result found at item, using cmp (or
// a Kind-derived default if cmp is nil). order must be +1 (ascending) or
// -1 (descending); any other value is an error. Fewer than two stacks are
// returned unchanged, matching §8's testable properties.
func Sort[I Item](stacks []*Stack[I], item I, order int, cmp Comparator[I]) ([]*Stack[I], error) {
	if order != 1 && order != -1 {
		return nil, ErrBadOrder
	}
	if len(stacks) < 2 {
		return stacks, nil
	}
	off := stacks[0].Offset(item)
	if off < 0 {
		return nil, ErrItemNotConfigured
	}
	if cmp == nil {
		cmp = DefaultComparator[I](&stacks[0].Head[off])
	}
	sort.SliceStable(stacks, func(i, j int) bool {
		return cmp(&stacks[i].Head[off], &stacks[j].Head[off])*order < 0
	})
	return stacks, nil
}
