// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diskstats

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/antimetal/procfs/pkg/procerr"
	"github.com/antimetal/procfs/pkg/result"
	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

// Config configures a Provider.
type Config struct {
	ProcPath string
	SysPath  string
}

func (c Config) withDefaults() Config {
	if c.ProcPath == "" {
		c.ProcPath = "/proc"
	}
	if c.SysPath == "" {
		c.SysPath = "/sys"
	}
	return c
}

// Provider is the diskstats provider context.
type Provider struct {
	cfg      Config
	logger   logr.Logger
	path     string
	class    *classifier
	refcount int32

	devices map[string]*deviceRecord
	order   []string
	curStamp, prevStamp int64

	sf       singleflight.Group
	lastRead time.Time
}

func New(logger logr.Logger, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "diskstats.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	p := &Provider{
		cfg:     cfg,
		logger:  logger.WithName("diskstats"),
		path:    filepath.Join(cfg.ProcPath, "diskstats"),
		class:   newClassifier(cfg.SysPath),
		devices: make(map[string]*deviceRecord),
		refcount: 1,
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) Ref() int32 { p.refcount++; return p.refcount }

func (p *Provider) Unref() (int32, error) {
	if p == nil {
		return 0, procerr.ErrInvalidArgs
	}
	p.refcount--
	if p.refcount <= 0 {
		p.devices, p.order = nil, nil
		return 0, nil
	}
	return p.refcount, nil
}

// reread parses /proc/diskstats, rotates every surviving device's frame,
// classifies devices by /sys/block presence, and evicts stale records
// (spec §4.4's staleness rule: a device absent from this read is removed
// immediately, on its first miss).
func (p *Provider) reread() error {
	f, err := os.Open(p.path)
	if err != nil {
		return procerr.Wrap(procerr.ReadFailed, "diskstats.reap", err)
	}
	defer f.Close()

	p.prevStamp = p.curStamp
	p.curStamp = time.Now().Unix()
	if p.curStamp == p.prevStamp {
		// Guarantee two distinct stamps even across sub-second reads so
		// a device missing from this read (still stamped prevStamp) is told
		// apart from one just parsed and the sweep below evicts it.
		p.curStamp++
	}

	for _, d := range p.devices {
		d.frame.Rotate()
	}

	var order []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < diskstatsFieldCount {
			continue
		}
		major, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			continue
		}
		minor, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}
		name := fields[2]
		cv, ok := parseCounters(fields[3:])
		if !ok {
			continue
		}

		d, exists := p.devices[name]
		if !exists {
			d = &deviceRecord{name: name}
			p.devices[name] = d
		}
		d.major, d.minor = uint32(major), uint32(minor)
		d.typ = p.class.classify(name)
		d.frame.New = cv
		if !d.primed {
			d.frame.Old = cv
			d.primed = true
		}
		d.stamp = p.curStamp
		order = append(order, name)
	}
	if err := scanner.Err(); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "diskstats.reap", err)
	}

	// A device not freshly parsed this read is evicted immediately: its
	// stamp is still p.prevStamp (or older), never p.curStamp, so the
	// first missed read removes it from both the map and Reap's order.
	for name, d := range p.devices {
		if d.stamp != p.curStamp {
			delete(p.devices, name)
		}
	}

	p.order = order
	p.lastRead = time.Now()
	return nil
}

func parseCounters(fields []string) (counters, bool) {
	var c counters
	if len(fields) < 11 {
		return c, false
	}
	vals := make([]uint64, 11)
	for i := 0; i < 11; i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return c, false
		}
		vals[i] = v
	}
	c.ReadsCompleted, c.ReadsMerged, c.SectorsRead, c.ReadTime = vals[0], vals[1], vals[2], vals[3]
	c.WritesCompleted, c.WritesMerged, c.SectorsWritten, c.WriteTime = vals[4], vals[5], vals[6], vals[7]
	c.IOsInProgress, c.IOTime, c.WeightedIOTime = vals[8], vals[9], vals[10]
	return c, true
}

// Get is the per-device single-item accessor, rate-limited to once per
// second the way stat's Get is (spec §4.4: "rate-limited to once per
// second as in §4.2").
func (p *Provider) Get(name string, item Item) (result.Result[Item], error) {
	var zero result.Result[Item]
	if item < Noop || item >= LogicalEnd {
		return zero, procerr.Wrap(procerr.InvalidArgs, "diskstats.get", fmt.Errorf("item %d out of range", item))
	}
	if time.Since(p.lastRead) >= time.Second {
		if _, err, _ := p.sf.Do("read", func() (any, error) {
			return nil, p.reread()
		}); err != nil {
			return zero, err
		}
	}
	d, ok := p.devices[name]
	if !ok {
		return zero, procerr.Wrap(procerr.InvalidArgs, "diskstats.get", fmt.Errorf("unknown device %q", name))
	}
	var r result.Result[Item]
	fillOne(&r, item, d)
	return r, nil
}

// Reap bulk-enumerates every tracked device.
func (p *Provider) Reap(items []Item) (*Reap, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	ext := result.NewExtent(items, LogicalEnd, len(p.order))
	for i, name := range p.order {
		d := p.devices[name]
		for j, item := range items {
			fillOne(&ext.Stacks[i].Head[j], item, d)
		}
	}
	return &Reap{Total: len(ext.Stacks), Stacks: ext.Stacks}, nil
}

// Select returns one stack for a single named device.
func (p *Provider) Select(name string, items []Item) (*Stack, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	d, ok := p.devices[name]
	if !ok {
		return nil, procerr.Wrap(procerr.InvalidArgs, "diskstats.select", fmt.Errorf("unknown device %q", name))
	}
	ext := result.NewExtent(items, LogicalEnd, 1)
	for i, item := range items {
		fillOne(&ext.Stacks[0].Head[i], item, d)
	}
	return ext.Stacks[0], nil
}

func Sort(stacks []*Stack, item Item, order int) ([]*Stack, error) {
	return result.Sort(stacks, item, order, nil)
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return procerr.Wrap(procerr.InvalidArgs, "diskstats", fmt.Errorf("empty item list"))
	}
	for _, it := range items {
		if it < Noop || it >= LogicalEnd {
			return procerr.Wrap(procerr.InvalidArgs, "diskstats", fmt.Errorf("item %d out of range", it))
		}
	}
	return nil
}

func fillOne(r *result.Result[Item], item Item, d *deviceRecord) {
	r.Tag = item
	switch item {
	case Noop, Extra:
	case Name:
		r.SetString(d.name)
	case Type:
		if d.typ == TypeDisk {
			r.SetString("disk")
		} else {
			r.SetString("partition")
		}
	case Major:
		r.SetUInt(d.major)
	case Minor:
		r.SetUInt(d.minor)
	case ReadsCompleted:
		r.SetULongLong(d.frame.New.ReadsCompleted)
	case ReadsMerged:
		r.SetULongLong(d.frame.New.ReadsMerged)
	case SectorsRead:
		r.SetULongLong(d.frame.New.SectorsRead)
	case ReadTime:
		r.SetULongLong(d.frame.New.ReadTime)
	case WritesCompleted:
		r.SetULongLong(d.frame.New.WritesCompleted)
	case WritesMerged:
		r.SetULongLong(d.frame.New.WritesMerged)
	case SectorsWritten:
		r.SetULongLong(d.frame.New.SectorsWritten)
	case WriteTime:
		r.SetULongLong(d.frame.New.WriteTime)
	case IOsInProgress:
		r.SetULongLong(d.frame.New.IOsInProgress)
	case IOTime:
		r.SetULongLong(d.frame.New.IOTime)
	case WeightedIOTime:
		r.SetULongLong(d.frame.New.WeightedIOTime)
	case DeltaReadsCompleted:
		r.SetSLong(deltaU64(d.frame.New.ReadsCompleted, d.frame.Old.ReadsCompleted))
	case DeltaSectorsRead:
		r.SetSLong(deltaU64(d.frame.New.SectorsRead, d.frame.Old.SectorsRead))
	case DeltaWritesCompleted:
		r.SetSLong(deltaU64(d.frame.New.WritesCompleted, d.frame.Old.WritesCompleted))
	case DeltaSectorsWritten:
		r.SetSLong(deltaU64(d.frame.New.SectorsWritten, d.frame.Old.SectorsWritten))
	case DeltaIOTime:
		r.SetSLong(deltaU64(d.frame.New.IOTime, d.frame.Old.IOTime))
	}
}
