// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package stat is the system CPU/interrupt provider (spec §4.2), parsing
// /proc/stat into a jiffies-vector summary, per-CPU vectors, optional
// per-NUMA-node aggregates, and scalar system counters, with one-frame
// deltas clamped to zero.
package stat

import "github.com/antimetal/procfs/pkg/result"

// Item is the stat provider's attribute enumerator (spec §3, §4.2).
type Item int32

const (
	Noop Item = iota
	Extra

	TicID
	TicNumaNode
	TicUser
	TicNice
	TicSystem
	TicIdle
	TicIOWait
	TicIRQ
	TicSoftIRQ
	TicStolen
	TicGuest
	TicGuestNice

	TicDeltaUser
	TicDeltaNice
	TicDeltaSystem
	TicDeltaIdle
	TicDeltaIOWait
	TicDeltaIRQ
	TicDeltaSoftIRQ
	TicDeltaStolen
	TicDeltaGuest
	TicDeltaGuestNice

	SysCtxSwitches
	SysInterrupts
	SysProcBlocked
	SysProcCreated
	SysProcRunning
	SysTimeOfBoot

	SysDeltaCtxSwitches
	SysDeltaInterrupts
	SysDeltaProcBlocked
	SysDeltaProcCreated
	SysDeltaProcRunning

	LogicalEnd
)

// SummaryID and NodeInvalid mirror the C constants PROCPS_STAT_SUMMARY_ID
// and PROCPS_STAT_NODE_INVALID.
const (
	SummaryID   int32 = -11111
	NodeInvalid int32 = -22222
)

// ReapType chooses what reap (§4.2) enumerates.
type ReapType int

const (
	ReapCPUsOnly ReapType = iota
	ReapCPUsAndNodes
)

// Stack and Reap are the stat-flavored aliases of the shared result types.
type Stack = result.Stack[Item]
type Reap struct {
	Total  int
	Stacks []*Stack
}

// Reaped bundles the summary stack with the per-cpu and per-node reaps,
// matching struct stat_reaped.
type Reaped struct {
	Summary *Stack
	CPUs    *Reap
	Nodes   *Reap
}
