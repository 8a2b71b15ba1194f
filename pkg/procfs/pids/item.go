// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package pids is the process-information provider (spec §4.1): it
// enumerates visible tasks under /proc, parses each task's stat/statm/
// status/cmdline/environ/cgroup files according to the currently
// configured item list, and produces one result stack per task.
package pids

import "github.com/antimetal/procfs/pkg/result"

type Item int32

const (
	Noop Item = iota
	Extra

	// Identification.
	Pid
	Ppid
	Pgrp
	Tgid
	Session
	TtyNumber
	TtyName
	TpgID

	// State and scheduling.
	State
	Priority
	Nice
	SchedClass
	NumThreads
	Processor

	// Memory, all reported in kibibytes (page counts are converted).
	VmSize
	VmRSS
	VmData
	VmStack
	VmLib
	VmExe
	MemResKiB
	MemVirtKiB
	MemShrKiB

	// Faults and ticks, absolute and delta.
	FltMin
	FltMaj
	FltMinDelta
	FltMajDelta
	TicsUser
	TicsSystem
	TicsAll
	TicsDelta

	// Time.
	TimeStart
	TimeElapsed

	WchanAddr
	WchanName

	// cgroup/namespace ids.
	Cgroup
	CgroupV
	CgName
	NsPid
	NsMnt
	NsNet
	NsUser
	NsUts
	NsIpc

	// Command line / environment (ownership handoff sources).
	Cmd
	Cmdline
	CmdlineV
	Environ
	EnvironV

	// Supplementary groups (shared source).
	SupGids
	SupGroups

	// systemd unit labels.
	SdUnit
	SdSlice
	SdMach

	// Container name.
	LxcName

	LogicalEnd
)

type Stack = result.Stack[Item]

// Which selects whether Reap/ReadOpen enumerate task-group leaders only, or
// every thread of every task (spec §4.1: "tasks only" vs "tasks and
// threads").
type Which int

const (
	TasksOnly Which = iota
	TasksAndThreads
)

type Reap struct {
	Total    int
	Stacks   []*Stack
	Running  int
	Sleeping int
	Stopped  int
	Zombie   int
}
