// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diskstats

import "github.com/antimetal/procfs/pkg/procutils"

// diskstatsFieldCount is the expected field count of one /proc/diskstats
// line: 3 identification fields plus 11 metric fields.
const diskstatsFieldCount = 14

// counters is the 11-field I/O vector from one /proc/diskstats line.
type counters struct {
	ReadsCompleted, ReadsMerged, SectorsRead, ReadTime           uint64
	WritesCompleted, WritesMerged, SectorsWritten, WriteTime     uint64
	IOsInProgress, IOTime, WeightedIOTime                        uint64
}

// deviceRecord is one device's tracked new/old state plus its staleness
// stamp (spec §4.4: "the wall-clock second stamp of its last successful
// read").
type deviceRecord struct {
	name        string
	major, minor uint32
	typ         DeviceType
	frame       procutils.Frame[counters]
	primed      bool
	stamp       int64
}

// deltaU64 is a plain signed difference. Unlike stat's CPU jiffies (spec
// §4.2, explicitly zero-clamped because offlining a CPU resets its
// counters), diskstats counters are monotonic for the life of a device and
// original_source/proc/diskstats.c's HST_set performs no clamping.
func deltaU64(newV, oldV uint64) int64 {
	return int64(newV) - int64(oldV)
}
