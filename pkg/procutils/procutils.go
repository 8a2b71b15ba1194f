// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package procutils holds the small pieces of host knowledge every /proc
// provider needs: boot time, USER_HZ and page size, cached since none of
// them change while the host is up, plus an uncached mount-sanity check
// (adapted from
// the teacher's pkg/performance/procutils, which cached the same three
// values for the same reason).
package procutils

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProcUtils caches host facts read from /proc.
type ProcUtils struct {
	procPath string

	bootTime     time.Time
	bootTimeOnce sync.Once
	bootTimeErr  error

	userHZ     int64
	userHZOnce sync.Once
	userHZErr  error

	pageSize     int64
	pageSizeOnce sync.Once
	pageSizeErr  error
}

func New(procPath string) *ProcUtils {
	return &ProcUtils{procPath: procPath}
}

// GetBootTime returns the system boot time from /proc/stat's "btime" line.
func (p *ProcUtils) GetBootTime() (time.Time, error) {
	p.bootTimeOnce.Do(func() {
		p.bootTime, p.bootTimeErr = p.readBootTime()
	})
	return p.bootTime, p.bootTimeErr
}

func (p *ProcUtils) readBootTime() (time.Time, error) {
	statPath := filepath.Join(p.procPath, "stat")
	data, err := os.ReadFile(statPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s: %w", statPath, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "btime ") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				btime, err := strconv.ParseInt(parts[1], 10, 64)
				if err != nil {
					return time.Time{}, fmt.Errorf("failed to parse btime: %w", err)
				}
				return time.Unix(btime, 0), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("btime not found in %s", statPath)
}

// GetUserHZ returns USER_HZ (clock ticks per second) from /proc/self/auxv,
// falling back to the near-universal default of 100 if auxv is unreadable.
func (p *ProcUtils) GetUserHZ() (int64, error) {
	p.userHZOnce.Do(func() {
		p.userHZ, p.userHZErr = p.readAuxv(atClktck, 100)
	})
	return p.userHZ, p.userHZErr
}

// GetPageSize returns the system page size in bytes from /proc/self/auxv,
// falling back to 4096 if auxv is unreadable.
func (p *ProcUtils) GetPageSize() (int64, error) {
	p.pageSizeOnce.Do(func() {
		p.pageSize, p.pageSizeErr = p.readAuxv(atPagesz, 4096)
	})
	return p.pageSize, p.pageSizeErr
}

// PageShift returns the shift such that pages<<PageShift == pages*PageSize
// in bytes; providers that report sizes in kibibytes (spec §4.1's "computes
// a per-page shift") combine this with a -10 bit shift to KiB instead of
// dividing repeatedly.
func (p *ProcUtils) PageShift() (uint, error) {
	sz, err := p.GetPageSize()
	if err != nil {
		return 0, err
	}
	var shift uint
	for v := sz; v > 1; v >>= 1 {
		shift++
	}
	return shift, nil
}

// Auxiliary vector keys from <asm/auxvec.h>.
const (
	atPagesz = 6
	atClktck = 17
	atNull   = 0
)

func (p *ProcUtils) readAuxv(key uint64, fallback int64) (int64, error) {
	auxvPath := filepath.Join(p.procPath, "self", "auxv")
	data, err := os.ReadFile(auxvPath)
	if err != nil {
		return fallback, nil
	}
	for i := 0; i <= len(data)-16; i += 16 {
		k := binary.LittleEndian.Uint64(data[i : i+8])
		v := binary.LittleEndian.Uint64(data[i+8 : i+16])
		if k == key {
			return int64(v), nil
		}
		if k == atNull {
			break
		}
	}
	return fallback, nil
}
