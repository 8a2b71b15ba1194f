// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package signame is the bidirectional signal-number/short-name catalog
// described in spec §6, grounded on original_source/lib/signals.c and
// src/ps/signames.c. It is a process-wide, read-only-after-init table: the
// non-core signal-sender adapter this module's callers build on top of
// consumes exactly these two functions.
package signame

import (
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// rtMax bounds RTMIN+<n>. The procps source hard-codes 127 rather than
// consulting SIGRTMAX at runtime; SPEC_FULL keeps that literal cap (see
// DESIGN.md's Open Question decision) instead of asking the platform.
const rtMax = 127

// rtMin is glibc's SIGRTMIN: the kernel's first real-time signal is 32, and
// glibc reserves 32 and 33 for NPTL (matching what procps's lib/signals.c
// assumes on glibc/Linux).
const rtMin = 34

// catalog maps canonical signal number -> canonical short name (no "SIG"
// prefix), ordered the way procps lists them.
var catalog = []struct {
	num  int
	name string
}{
	{int(unix.SIGHUP), "HUP"},
	{int(unix.SIGINT), "INT"},
	{int(unix.SIGQUIT), "QUIT"},
	{int(unix.SIGILL), "ILL"},
	{int(unix.SIGTRAP), "TRAP"},
	{int(unix.SIGABRT), "ABRT"},
	{int(unix.SIGBUS), "BUS"},
	{int(unix.SIGFPE), "FPE"},
	{int(unix.SIGKILL), "KILL"},
	{int(unix.SIGUSR1), "USR1"},
	{int(unix.SIGSEGV), "SEGV"},
	{int(unix.SIGUSR2), "USR2"},
	{int(unix.SIGPIPE), "PIPE"},
	{int(unix.SIGALRM), "ALRM"},
	{int(unix.SIGTERM), "TERM"},
	{int(unix.SIGSTKFLT), "STKFLT"},
	{int(unix.SIGCHLD), "CHLD"},
	{int(unix.SIGCONT), "CONT"},
	{int(unix.SIGSTOP), "STOP"},
	{int(unix.SIGTSTP), "TSTP"},
	{int(unix.SIGTTIN), "TTIN"},
	{int(unix.SIGTTOU), "TTOU"},
	{int(unix.SIGURG), "URG"},
	{int(unix.SIGXCPU), "XCPU"},
	{int(unix.SIGXFSZ), "XFSZ"},
	{int(unix.SIGVTALRM), "VTALRM"},
	{int(unix.SIGPROF), "PROF"},
	{int(unix.SIGWINCH), "WINCH"},
	{int(unix.SIGIO), "IO"},
	{int(unix.SIGPWR), "PWR"},
	{int(unix.SIGSYS), "SYS"},
}

// aliases map a non-canonical spelling to its canonical short name.
var aliases = map[string]string{
	"CLD":  "CHLD",
	"POLL": "IO",
	"IOT":  "ABRT",
}

var numToName map[int]string
var nameToNum map[string]int

func init() {
	numToName = make(map[int]string, len(catalog))
	nameToNum = make(map[string]int, len(catalog)+len(aliases))
	for _, e := range catalog {
		numToName[e.num] = e.name
		nameToNum[e.name] = e.num
	}
	for alias, canonical := range aliases {
		if n, ok := nameToNum[canonical]; ok {
			nameToNum[alias] = n
		}
	}
}

// NameToNumber resolves a signal name (case-insensitive, with or without a
// leading "SIG") to its number, recognizing the CLD/CHLD, IO/POLL,
// IOT/ABRT aliases, the literal RTMIN, EXIT/NULL mapped to 0, and
// "RTMIN+<n>" bounded at 127. Returns -1 if s does not name a signal.
func NameToNumber(s string) int {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "SIG")

	switch s {
	case "EXIT", "NULL":
		return 0
	case "RTMIN":
		return rtMin
	}

	if rest, ok := strings.CutPrefix(s, "RTMIN+"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return -1
		}
		val := rtMin + n
		if val > rtMax {
			return -1
		}
		return val
	}

	if n, ok := nameToNum[s]; ok {
		return n
	}
	return -1
}

// NumberToName renders n as its catalog short name, "RTMIN" for rtMin,
// "RTMIN+<k>" for rtMin+k up to rtMax, or "0" for signal zero; any other
// number is rendered in decimal.
func NumberToName(n int) string {
	if n == 0 {
		return "0"
	}
	if name, ok := numToName[n]; ok {
		return name
	}
	if n >= rtMin && n <= rtMax {
		if n == rtMin {
			return "RTMIN"
		}
		return "RTMIN+" + strconv.Itoa(n-rtMin)
	}
	return strconv.Itoa(n)
}
