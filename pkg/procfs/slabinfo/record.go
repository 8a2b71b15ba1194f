// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package slabinfo

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/antimetal/procfs/pkg/procerr"
)

// node is one cache's parsed line (original_source's struct slabs_node).
type node struct {
	name                                                      string
	cacheSize                                                 uint64
	nrObjs, nrActiveObjs                                      uint32
	objSize, objsPerSlab, pagesPerSlab, nrSlabs, nrActiveSlabs uint32
	use                                                       uint32
}

// summary is the whole-file aggregate (original_source's struct slabs_summ).
type summary struct {
	nrObjs, nrActiveObjs                           uint32
	nrPages, nrSlabs, nrActiveSlabs                uint32
	nrCaches, nrActiveCaches                       uint32
	avgObjSize, minObjSize, maxObjSize             uint32
	activeSize, totalSize                          uint64
}

// record holds one new/old pair for the summary plus the current cache list.
type record struct {
	newSummary, oldSummary summary
	nodes                  []node
	primed                 bool
}

func newRecord() *record { return &record{} }

// parse reads /proc/slabinfo, accepting only a version-2.x header (a
// header that does not parse is ReadFailed; any other major version is
// UnsupportedVersion) and the same sscanf-equivalent
// per-cache field layout as original_source/proc/slabinfo.c's
// parse_slabinfo20, with pageSize supplied by the caller (procutils).
func (r *record) parse(path string, pageSize uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", err)
		}
		return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", fmt.Errorf("empty file"))
	}
	header := scanner.Text()
	var major, minor int
	if _, err := fmt.Sscanf(header, "slabinfo - version: %d.%d", &major, &minor); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", fmt.Errorf("unrecognized header %q", header))
	}
	if major != 2 {
		return procerr.Wrap(procerr.UnsupportedVersion, "slabinfo.reap", fmt.Errorf("slabinfo version %d.%d unsupported", major, minor))
	}

	r.oldSummary = r.newSummary
	s := summary{minObjSize: math.MaxUint32}
	var nodes []node

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		n, ok := parseCacheLine(line, pageSize)
		if !ok {
			continue
		}
		if n.name == "" {
			n.name = "unknown"
		}
		if n.objSize < s.minObjSize {
			s.minObjSize = n.objSize
		}
		if n.objSize > s.maxObjSize {
			s.maxObjSize = n.objSize
		}
		if n.nrObjs != 0 {
			n.use = uint32(100 * uint64(n.nrActiveObjs) / uint64(n.nrObjs))
			s.nrActiveCaches++
		}
		s.nrObjs += n.nrObjs
		s.nrActiveObjs += n.nrActiveObjs
		s.totalSize += uint64(n.nrObjs) * uint64(n.objSize)
		s.activeSize += uint64(n.nrActiveObjs) * uint64(n.objSize)
		s.nrPages += n.nrSlabs * n.pagesPerSlab
		s.nrSlabs += n.nrSlabs
		s.nrActiveSlabs += n.nrActiveSlabs
		s.nrCaches++
		nodes = append(nodes, n)
	}
	if err := scanner.Err(); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", err)
	}
	if s.minObjSize == math.MaxUint32 {
		s.minObjSize = 0
	}
	if s.nrObjs != 0 {
		s.avgObjSize = uint32(s.totalSize / uint64(s.nrObjs))
	}

	r.newSummary = s
	r.nodes = nodes
	if !r.primed {
		r.oldSummary = r.newSummary
		r.primed = true
	}
	return nil
}

// parseCacheLine mirrors parse_slabinfo20's sscanf pattern:
// "%127s %u %u %u %u %u : tunables %*u %*u %*u : slabdata %u %u %*u"
//
// Field layout (0-indexed): 0 name, 1-5 activeObjs/numObjs/objSize/
// objPerSlab/pagesPerSlab, 6 ":", 7 "tunables", 8-10 limit/batchcount/sharedfactor,
// 11 ":", 12 "slabdata", 13-15 activeSlabs/numSlabs/sharedavail.
func parseCacheLine(line string, pageSize uint64) (node, bool) {
	fields := strings.Fields(line)
	if len(fields) < 16 {
		return node{}, false
	}
	if fields[7] != "tunables" || fields[12] != "slabdata" {
		return node{}, false
	}
	parseU := func(s string) uint32 {
		v, _ := strconv.ParseUint(s, 10, 32)
		return uint32(v)
	}
	n := node{
		name:          fields[0],
		nrActiveObjs:  parseU(fields[1]),
		nrObjs:        parseU(fields[2]),
		objSize:       parseU(fields[3]),
		objsPerSlab:   parseU(fields[4]),
		pagesPerSlab:  parseU(fields[5]),
		nrActiveSlabs: parseU(fields[13]),
		nrSlabs:       parseU(fields[14]),
	}
	n.cacheSize = uint64(n.nrSlabs) * uint64(n.pagesPerSlab) * pageSize
	return n, true
}

func deltaI32(newV, oldV uint32) int64 { return int64(newV) - int64(oldV) }
func deltaI64(newV, oldV uint64) int64 { return int64(newV) - int64(oldV) }
