// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package slabinfo is the kernel slab-cache provider (spec §4.3): a
// whole-file summary (object/slab/cache totals across every cache) plus one
// record per cache, parsed from /proc/slabinfo's version-2 layout only.
package slabinfo

import "github.com/antimetal/procfs/pkg/result"

type Item int32

const (
	Noop Item = iota
	Extra

	// Whole-file summary.
	SlabsObjs
	SlabsAObjs
	SlabsPages
	SlabsSlabs
	SlabsASlabs
	SlabsCaches
	SlabsACaches
	SlabsSizeAvg
	SlabsSizeMin
	SlabsSizeMax
	SlabsSizeActive
	SlabsSizeTotal

	SlabsDeltaObjs
	SlabsDeltaAObjs
	SlabsDeltaPages
	SlabsDeltaSlabs
	SlabsDeltaASlabs
	SlabsDeltaCaches
	SlabsDeltaACaches
	SlabsDeltaSizeAvg
	SlabsDeltaSizeMin
	SlabsDeltaSizeMax
	SlabsDeltaSizeActive
	SlabsDeltaSizeTotal

	// Per-cache.
	NodeName
	NodeObjs
	NodeAObjs
	NodeObjSize
	NodeObjsPerSlab
	NodePagesPerSlab
	NodeSlabs
	NodeASlabs
	NodeUse
	NodeSize

	LogicalEnd
)

type Stack = result.Stack[Item]

type Reap struct {
	Total  int
	Stacks []*Stack
}
