// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// statFields is the parsed /proc/<pid>/stat record (original_source's
// stat2proc), everything after the parenthesised comm field.
type statFields struct {
	comm                                     string
	state                                    byte
	ppid, pgrp, session, ttyNr, tpgid         int32
	minFlt, cMinFlt, majFlt, cMajFlt          uint64
	uTime, sTime                              uint64
	cuTime, csTime                            int64
	priority, nice                            int64
	numThreads                                int64
	startTime                                 uint64
	vSize                                     uint64
	rss                                       int64
	wchan                                     uint64
	exitSignal, processor                     int32
	rtPriority, policy                        int64
}

// parseStat mirrors stat2proc: split on the last ')' to isolate comm (which
// may itself contain spaces or parens), then scan the remaining
// space-separated fields positionally.
func parseStat(raw string) (statFields, bool) {
	open := strings.IndexByte(raw, '(')
	close := strings.LastIndexByte(raw, ')')
	if open < 0 || close < 0 || close < open {
		return statFields{}, false
	}
	comm := raw[open+1 : close]
	rest := strings.Fields(raw[close+1:])
	if len(rest) < 35 {
		return statFields{}, false
	}

	var sf statFields
	sf.comm = comm
	sf.state = rest[0][0]
	sf.ppid = parseI32(rest[1])
	sf.pgrp = parseI32(rest[2])
	sf.session = parseI32(rest[3])
	sf.ttyNr = parseI32(rest[4])
	sf.tpgid = parseI32(rest[5])
	// rest[6] flags
	sf.minFlt = parseU64(rest[7])
	sf.cMinFlt = parseU64(rest[8])
	sf.majFlt = parseU64(rest[9])
	sf.cMajFlt = parseU64(rest[10])
	sf.uTime = parseU64(rest[11])
	sf.sTime = parseU64(rest[12])
	sf.cuTime = parseI64(rest[13])
	sf.csTime = parseI64(rest[14])
	sf.priority = parseI64(rest[15])
	sf.nice = parseI64(rest[16])
	sf.numThreads = parseI64(rest[17])
	// rest[18] itrealvalue
	sf.startTime = parseU64(rest[19])
	sf.vSize = parseU64(rest[20])
	sf.rss = parseI64(rest[21])
	// rest[22..27]: rsslim, startcode, endcode, startstack, kstkesp, kstkeip
	// rest[28..31]: signal, blocked, sigignore, sigcatch
	sf.wchan = parseU64(rest[32])
	// rest[33] nswap, rest[34] cnswap
	if len(rest) > 36 {
		sf.exitSignal = parseI32(rest[35])
		sf.processor = parseI32(rest[36])
	}
	if len(rest) > 38 {
		sf.rtPriority = parseI64(rest[37])
		sf.policy = parseI64(rest[38])
	}
	return sf, true
}

// statmFields is /proc/<pid>/statm's seven page counts.
type statmFields struct {
	size, resident, share, trs, lrs, drs, dt uint64
}

func parseStatm(raw string) (statmFields, bool) {
	fields := strings.Fields(raw)
	if len(fields) < 7 {
		return statmFields{}, false
	}
	return statmFields{
		size:     parseU64(fields[0]),
		resident: parseU64(fields[1]),
		share:    parseU64(fields[2]),
		trs:      parseU64(fields[3]),
		lrs:      parseU64(fields[4]),
		drs:      parseU64(fields[5]),
		dt:       parseU64(fields[6]),
	}, true
}

// statusFields is the subset of /proc/<pid>/status this provider reads:
// tgid, supplementary groups, and stack VM size (statm has no stack-size
// column, so VmStack comes from here instead). The namespace-id block is
// read from /proc/<pid>/ns/* symlinks instead (see nsIDs).
type statusFields struct {
	tgid    int32
	supGids []string
	vmStkKB uint64
}

func parseStatus(raw string) statusFields {
	var sf statusFields
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "Tgid:"):
			sf.tgid = parseI32(strings.TrimSpace(strings.TrimPrefix(line, "Tgid:")))
		case strings.HasPrefix(line, "Groups:"):
			sf.supGids = strings.Fields(strings.TrimPrefix(line, "Groups:"))
		case strings.HasPrefix(line, "VmStk:"):
			fields := strings.Fields(strings.TrimPrefix(line, "VmStk:"))
			if len(fields) > 0 {
				sf.vmStkKB = parseU64(fields[0])
			}
		}
	}
	return sf
}

// parseUidLine extracts the effective uid (second field) from a status
// file's "Uid:\treal\teffective\tsaved\tfs" line, for Select's
// select-by-uid mode.
func parseUidLine(raw string) (int32, bool) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Uid:"))
		if len(fields) < 2 {
			return 0, false
		}
		return parseI32(fields[1]), true
	}
	return 0, false
}

// nsIDs reads the inode number each <base>/ns/<kind> symlink points to
// (e.g. "pid:[4026531836]"), returning 0 for any kind that can't be read
// (namespaces disabled in this kernel, or the task already gone). base is
// a task's directory, either /proc/<pid> or /proc/<pid>/task/<tid>.
func nsIDs(base string, kinds []string) map[string]uint64 {
	out := make(map[string]uint64, len(kinds))
	for _, kind := range kinds {
		link, err := os.Readlink(filepath.Join(base, "ns", kind))
		if err != nil {
			out[kind] = 0
			continue
		}
		start := strings.IndexByte(link, '[')
		end := strings.IndexByte(link, ']')
		if start < 0 || end < 0 || end < start {
			out[kind] = 0
			continue
		}
		out[kind] = parseU64(link[start+1 : end])
	}
	return out
}

func parseI32(s string) int32 {
	v, _ := strconv.ParseInt(s, 10, 32)
	return int32(v)
}

func parseI64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseU64(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}
