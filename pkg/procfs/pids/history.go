// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

// taskHistory is one task's previous tick sum and previous major/minor
// fault counts (spec §4.1: "a small record containing previous tick sum
// and previous major/minor fault counts"), looked up by task id each read
// and swapped new/sav by the provider's procutils.History[int32,
// taskHistory] the way that type's cur/prev pair already models.
type taskHistory struct {
	ticksAll       uint64
	fltMin, fltMaj uint64
}

func deltaU64(newV, oldV uint64) int64 {
	d := int64(newV) - int64(oldV)
	if d < 0 {
		return 0
	}
	return d
}
