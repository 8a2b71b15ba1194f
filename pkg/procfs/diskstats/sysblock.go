// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diskstats

import (
	"os"
	"path/filepath"
)

// classifier resolves a device name to disk or partition by presence in
// /sys/block (spec §4.4). If /sys/block cannot be opened at all, every
// device is treated as a disk (same fallback as original_source's
// Formerly_struct_diskstats handling of a missing sysfs mount).
type classifier struct {
	disks       map[string]bool
	sysAccessible bool
}

func newClassifier(sysPath string) *classifier {
	entries, err := os.ReadDir(filepath.Join(sysPath, "block"))
	if err != nil {
		return &classifier{sysAccessible: false}
	}
	disks := make(map[string]bool, len(entries))
	for _, e := range entries {
		disks[e.Name()] = true
	}
	return &classifier{disks: disks, sysAccessible: true}
}

func (c *classifier) classify(device string) DeviceType {
	if !c.sysAccessible {
		return TypeDisk
	}
	if c.disks[device] {
		return TypeDisk
	}
	return TypePartition
}
