// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

import (
	"fmt"

	"github.com/antimetal/procfs/pkg/result"
)

// ttyName derives a human-readable tty name from a /proc/<pid>/stat
// tty_nr device number using the major/minor conventions a handful of
// common driver classes use, rather than original_source's dev_to_tty
// (which scans /dev, stat-ing candidate nodes to find one whose rdev
// matches) — see DESIGN.md for why a directory scan was not carried over.
func ttyName(ttyNr int32) string {
	if ttyNr == 0 {
		return "?"
	}
	major := (ttyNr >> 8) & 0xfff
	minor := (ttyNr & 0xff) | ((ttyNr >> 12) & 0xfff00)
	switch major {
	case 4:
		if minor < 64 {
			return fmt.Sprintf("tty%d", minor)
		}
		return fmt.Sprintf("ttyS%d", minor-64)
	case 3:
		return fmt.Sprintf("ttyp%d", minor)
	case 136, 137, 138, 139, 140, 141, 142, 143:
		return fmt.Sprintf("pts/%d", minor+int32(major-136)*256)
	default:
		return fmt.Sprintf("tty%d:%d", major, minor)
	}
}

// pagesToKiB converts a page count to kibibytes using the provider's
// cached per-page shift (spec §4.1: "computes a per-page shift so page
// counts can be converted to kibibytes").
func pagesToKiB(pages uint64, pageShift uint) uint64 {
	if pageShift < 10 {
		return (pages << pageShift) >> 10
	}
	return pages << (pageShift - 10)
}

// fillCtx carries the per-read values every fillOne call needs beyond the
// task record itself: the page-to-KiB shift, USER_HZ, boot time, and this
// task's history entry (absent on a task's first sighting).
type fillCtx struct {
	pageShift   uint
	userHZ      int64
	bootUnix    int64
	nowUnix     int64
	hist        taskHistory
	haveHist    bool
}

func fillOne(r *result.Result[Item], item Item, t *task, fc fillCtx) {
	r.Tag = item
	switch item {
	case Noop, Extra:
	case Pid:
		r.SetSInt(t.pid)
	case Ppid:
		r.SetSInt(t.stat.ppid)
	case Pgrp:
		r.SetSInt(t.stat.pgrp)
	case Tgid:
		if t.status.tgid != 0 {
			r.SetSInt(t.status.tgid)
		} else {
			r.SetSInt(t.pid)
		}
	case Session:
		r.SetSInt(t.stat.session)
	case TtyNumber:
		r.SetSInt(t.stat.ttyNr)
	case TtyName:
		r.SetString(ttyName(t.stat.ttyNr))
	case TpgID:
		r.SetSInt(t.stat.tpgid)
	case State:
		r.SetSChar(int8(t.stat.state))
	case Priority:
		r.SetSLong(t.stat.priority)
	case Nice:
		r.SetSLong(t.stat.nice)
	case SchedClass:
		r.SetSLong(t.stat.policy)
	case NumThreads:
		r.SetSLong(t.stat.numThreads)
	case Processor:
		r.SetSInt(t.stat.processor)
	case VmSize:
		r.SetULong(pagesToKiB(t.statm.size, fc.pageShift))
	case VmRSS:
		r.SetULong(pagesToKiB(t.statm.resident, fc.pageShift))
	case VmData:
		r.SetULong(pagesToKiB(t.statm.drs, fc.pageShift))
	case VmStack:
		r.SetULong(t.status.vmStkKB)
	case VmLib:
		r.SetULong(pagesToKiB(t.statm.lrs, fc.pageShift))
	case VmExe:
		r.SetULong(pagesToKiB(t.statm.trs, fc.pageShift))
	case MemResKiB:
		r.SetULong(pagesToKiB(t.statm.resident, fc.pageShift))
	case MemVirtKiB:
		r.SetULong(pagesToKiB(t.statm.size, fc.pageShift))
	case MemShrKiB:
		r.SetULong(pagesToKiB(t.statm.share, fc.pageShift))
	case FltMin:
		r.SetULongLong(t.stat.minFlt)
	case FltMaj:
		r.SetULongLong(t.stat.majFlt)
	case FltMinDelta:
		if fc.haveHist {
			r.SetSLong(deltaU64(t.stat.minFlt, fc.hist.fltMin))
		} else {
			r.SetSLong(0)
		}
	case FltMajDelta:
		if fc.haveHist {
			r.SetSLong(deltaU64(t.stat.majFlt, fc.hist.fltMaj))
		} else {
			r.SetSLong(0)
		}
	case TicsUser:
		r.SetULongLong(t.stat.uTime)
	case TicsSystem:
		r.SetULongLong(t.stat.sTime)
	case TicsAll:
		r.SetULongLong(t.stat.uTime + t.stat.sTime)
	case TicsDelta:
		ticksAll := t.stat.uTime + t.stat.sTime
		if fc.haveHist {
			r.SetSLong(deltaU64(ticksAll, fc.hist.ticksAll))
		} else {
			r.SetSLong(0)
		}
	case TimeStart:
		hz := fc.userHZ
		if hz == 0 {
			hz = 100
		}
		r.SetULongLong(uint64(fc.bootUnix) + t.stat.startTime/uint64(hz))
	case TimeElapsed:
		hz := fc.userHZ
		if hz == 0 {
			hz = 100
		}
		started := fc.bootUnix + int64(t.stat.startTime/uint64(hz))
		elapsed := fc.nowUnix - started
		if elapsed < 0 {
			elapsed = 0
		}
		r.SetULongLong(uint64(elapsed))
	case WchanAddr:
		r.SetULongLong(t.stat.wchan)
	case WchanName:
		r.SetString(t.wchanName)
	case Cgroup:
		joined, _ := t.cgroup.take()
		r.SetString(joined)
	case CgroupV:
		_, vec := t.cgroup.take()
		r.SetStringVector(vec)
	case CgName:
		r.SetString(t.cgName)
	case NsPid:
		r.SetULongLong(t.ns["pid"])
	case NsMnt:
		r.SetULongLong(t.ns["mnt"])
	case NsNet:
		r.SetULongLong(t.ns["net"])
	case NsUser:
		r.SetULongLong(t.ns["user"])
	case NsUts:
		r.SetULongLong(t.ns["uts"])
	case NsIpc:
		r.SetULongLong(t.ns["ipc"])
	case Cmd:
		r.SetString(t.stat.comm)
	case Cmdline:
		joined, _ := t.cmdline.take()
		r.SetString(joined)
	case CmdlineV:
		_, vec := t.cmdline.take()
		r.SetStringVector(vec)
	case Environ:
		joined, _ := t.environ.take()
		r.SetString(joined)
	case EnvironV:
		_, vec := t.environ.take()
		r.SetStringVector(vec)
	case SupGids:
		joined, _ := t.supgids.take()
		r.SetString(joined)
	case SupGroups:
		_, vec := t.supgids.take()
		r.SetStringVector(vec)
	case SdUnit:
		r.SetString(t.sdUnit)
	case SdSlice:
		r.SetString(t.sdSlice)
	case SdMach:
		r.SetString(t.sdMach)
	case LxcName:
		r.SetString(t.lxcName)
	}
}
