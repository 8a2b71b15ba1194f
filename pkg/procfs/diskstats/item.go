// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package diskstats is the block-device I/O provider (spec §4.4): it
// parses /proc/diskstats, classifies each device as disk or partition by
// presence in /sys/block, tracks deltas, and reaps stale devices.
package diskstats

import "github.com/antimetal/procfs/pkg/result"

type Item int32

const (
	Noop Item = iota
	Extra

	// Identification.
	Name
	Type
	Major
	Minor

	// Absolute counters.
	ReadsCompleted
	ReadsMerged
	SectorsRead
	ReadTime
	WritesCompleted
	WritesMerged
	SectorsWritten
	WriteTime
	IOsInProgress
	IOTime
	WeightedIOTime

	// Deltas.
	DeltaReadsCompleted
	DeltaSectorsRead
	DeltaWritesCompleted
	DeltaSectorsWritten
	DeltaIOTime

	LogicalEnd
)

// DeviceType is the disk/partition classification result.
type DeviceType int32

const (
	TypePartition DeviceType = iota
	TypeDisk
)

type Stack = result.Stack[Item]

type Reap struct {
	Total  int
	Stacks []*Stack
}
