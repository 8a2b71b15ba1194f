// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package meminfo is the memory-info provider (spec §4.5), a thin labeled
// key/value parser over /proc/meminfo exposing named fields such as
// total/free/available/buffers/cached, swap, and hugepages.
package meminfo

import "github.com/antimetal/procfs/pkg/result"

type Item int32

const (
	Noop Item = iota
	Extra

	MemTotal
	MemFree
	MemAvailable
	Buffers
	Cached
	SwapCached
	Active
	Inactive
	SwapTotal
	SwapFree
	Dirty
	Writeback
	AnonPages
	Mapped
	Shmem
	Slab
	SReclaimable
	SUnreclaim
	KernelStack
	PageTables
	CommitLimit
	CommittedAS
	VmallocTotal
	VmallocUsed
	HugePagesTotal
	HugePagesFree
	HugePagesRsvd
	HugePagesSurp
	Hugepagesize

	LogicalEnd
)

// labels maps each named Item to its /proc/meminfo field label.
var labels = map[Item]string{
	MemTotal:       "MemTotal",
	MemFree:        "MemFree",
	MemAvailable:   "MemAvailable",
	Buffers:        "Buffers",
	Cached:         "Cached",
	SwapCached:     "SwapCached",
	Active:         "Active",
	Inactive:       "Inactive",
	SwapTotal:      "SwapTotal",
	SwapFree:       "SwapFree",
	Dirty:          "Dirty",
	Writeback:      "Writeback",
	AnonPages:      "AnonPages",
	Mapped:         "Mapped",
	Shmem:          "Shmem",
	Slab:           "Slab",
	SReclaimable:   "SReclaimable",
	SUnreclaim:     "SUnreclaim",
	KernelStack:    "KernelStack",
	PageTables:     "PageTables",
	CommitLimit:    "CommitLimit",
	CommittedAS:    "Committed_AS",
	VmallocTotal:   "VmallocTotal",
	VmallocUsed:    "VmallocUsed",
	HugePagesTotal: "HugePages_Total",
	HugePagesFree:  "HugePages_Free",
	HugePagesRsvd:  "HugePages_Rsvd",
	HugePagesSurp:  "HugePages_Surp",
	Hugepagesize:   "Hugepagesize",
}

type Stack = result.Stack[Item]
