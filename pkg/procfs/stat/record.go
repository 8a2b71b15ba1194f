// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package stat

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antimetal/procfs/pkg/procutils"
)

// jiffies is the ten-field CPU time vector from spec §4.2.
type jiffies struct {
	User, Nice, System, Idle, IOWait, IRQ, SoftIRQ, Stolen, Guest, GuestNice uint64
}

// cpuRecord is one "cpu" or "cpuN" line's new/old state plus its resolved
// NUMA node.
type cpuRecord struct {
	ID       int32
	NumaNode int32
	frame    procutils.Frame[jiffies]
	// inherited marks a line whose parse failed mid-way; its frame holds a
	// copy of the summary record until the real line parses again.
	inherited bool
}

type scalarCounters struct {
	ctxSwitches procutils.Frame[uint64]
	interrupts  procutils.Frame[uint64]
	procBlocked procutils.Frame[uint64]
	procCreated procutils.Frame[uint64]
	procRunning procutils.Frame[uint64]
	bootTime    uint64
}

// record is the provider's full parsed /proc/stat snapshot.
type record struct {
	summary procutils.Frame[jiffies]
	cpus    []*cpuRecord
	byID    map[int32]*cpuRecord
	nodes   map[int32]*procutils.Frame[jiffies]
	scalars scalarCounters
	primed  bool
}

func newRecord() *record {
	return &record{
		byID:  make(map[int32]*cpuRecord),
		nodes: make(map[int32]*procutils.Frame[jiffies]),
	}
}

// parse reads path (/proc/stat) and rotates every tracked frame, per spec's
// delta rule: "on every read, the previous new of every retained vector is
// copied to old before parsing". Offline-CPU inheritance (spec §4.2) is
// applied for any cpuN line that fails to parse.
func (r *record) parse(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r.summary.Rotate()
	for _, c := range r.cpus {
		c.frame.Rotate()
	}
	r.scalars.ctxSwitches.Rotate()
	r.scalars.interrupts.Rotate()
	r.scalars.procBlocked.Rotate()
	r.scalars.procCreated.Rotate()
	r.scalars.procRunning.Rotate()

	seen := make(map[int32]bool, len(r.cpus))

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch {
		case fields[0] == "cpu":
			jv, ok := parseJiffies(fields[1:])
			if ok {
				r.summary.New = jv
			}
		case strings.HasPrefix(fields[0], "cpu"):
			idStr := strings.TrimPrefix(fields[0], "cpu")
			id64, err := strconv.ParseInt(idStr, 10, 32)
			if err != nil {
				continue
			}
			id := int32(id64)
			seen[id] = true
			c := r.byID[id]
			if c == nil {
				c = &cpuRecord{ID: id, NumaNode: NodeInvalid}
				r.byID[id] = c
				r.cpus = append(r.cpus, c)
			}
			jv, ok := parseJiffies(fields[1:])
			if ok {
				c.frame.New = jv
				c.inherited = false
			} else {
				// Offline-CPU policy: inherit the summary record,
				// preserving this cpu's own id.
				c.frame.New = r.summary.New
				c.inherited = true
			}
		case fields[0] == "ctxt":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.ctxSwitches.New = v
			}
		case fields[0] == "intr":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.interrupts.New = v
			}
		case fields[0] == "btime":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.bootTime = v
			}
		case fields[0] == "processes":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.procCreated.New = v
			}
		case fields[0] == "procs_running":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.procRunning.New = v
			}
		case fields[0] == "procs_blocked":
			if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				r.scalars.procBlocked.New = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !r.primed {
		r.summary.Rotate()
		for _, c := range r.cpus {
			c.frame.Old = c.frame.New
		}
		r.scalars.ctxSwitches.Old = r.scalars.ctxSwitches.New
		r.scalars.interrupts.Old = r.scalars.interrupts.New
		r.scalars.procBlocked.Old = r.scalars.procBlocked.New
		r.scalars.procCreated.Old = r.scalars.procCreated.New
		r.scalars.procRunning.Old = r.scalars.procRunning.New
		r.primed = true
	}

	return nil
}

func parseJiffies(fields []string) (jiffies, bool) {
	var jv jiffies
	if len(fields) < 4 {
		return jv, false
	}
	vals := make([]uint64, 10)
	for i := 0; i < len(fields) && i < 10; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return jv, false
		}
		vals[i] = v
	}
	jv.User, jv.Nice, jv.System, jv.Idle = vals[0], vals[1], vals[2], vals[3]
	jv.IOWait, jv.IRQ, jv.SoftIRQ = vals[4], vals[5], vals[6]
	jv.Stolen, jv.Guest, jv.GuestNice = vals[7], vals[8], vals[9]
	return jv, true
}

// deltaU64 implements spec's "clamps negatives to zero" rule.
func deltaU64(newV, oldV uint64) int64 {
	if newV < oldV {
		return 0
	}
	return int64(newV - oldV)
}
