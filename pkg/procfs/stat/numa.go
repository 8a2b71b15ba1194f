// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package stat

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// numaCapability is either present (with a cpu->node map) or absent,
// matching §9's "runtime library loading should be expressed as a
// capability that is either present... or absent". The original links
// libnuma.so at runtime with dlopen/dlsym; Go has no idiomatic equivalent
// dynamic-symbol story, so this probes the same information directly from
// sysfs (see DESIGN.md's Open Question decision).
type numaCapability struct {
	present bool
	cpuNode map[int32]int32
}

func probeNUMA(sysPath string) numaCapability {
	nodeRoot := filepath.Join(sysPath, "devices", "system", "node")
	entries, err := os.ReadDir(nodeRoot)
	if err != nil {
		return numaCapability{}
	}
	cap := numaCapability{cpuNode: make(map[int32]int32)}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}
		nodeIDStr := strings.TrimPrefix(name, "node")
		nodeID, err := strconv.ParseInt(nodeIDStr, 10, 32)
		if err != nil {
			continue
		}
		cap.present = true
		cpuEntries, err := os.ReadDir(filepath.Join(nodeRoot, name))
		if err != nil {
			continue
		}
		for _, ce := range cpuEntries {
			cname := ce.Name()
			if !strings.HasPrefix(cname, "cpu") {
				continue
			}
			cpuIDStr := strings.TrimPrefix(cname, "cpu")
			cpuID, err := strconv.ParseInt(cpuIDStr, 10, 32)
			if err != nil {
				continue
			}
			cap.cpuNode[int32(cpuID)] = int32(nodeID)
		}
	}
	return cap
}

func (n numaCapability) nodeFor(cpuID int32) int32 {
	if !n.present {
		return NodeInvalid
	}
	if node, ok := n.cpuNode[cpuID]; ok {
		return node
	}
	return NodeInvalid
}
