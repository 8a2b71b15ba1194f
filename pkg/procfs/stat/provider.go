// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package stat

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/antimetal/procfs/pkg/procerr"
	"github.com/antimetal/procfs/pkg/procutils"
	"github.com/antimetal/procfs/pkg/result"
	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

// Config configures a Provider. ProcPath and SysPath default to /proc and
// /sys the way the teacher's CollectionConfig.HostProcPath does.
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

// Provider is the stat provider context (struct procps_statinfo).
type Provider struct {
	cfg      Config
	logger   logr.Logger
	statPath string
	numa     numaCapability
	rec      *record

	refcount int32

	sf       singleflight.Group
	lastRead time.Time
}

// New creates a stat provider, priming it with a first read so first-read
// deltas are zero (spec §3).
func New(logger logr.Logger, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "stat.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	p := &Provider{
		cfg:      cfg,
		logger:   logger.WithName("stat"),
		statPath: filepath.Join(cfg.ProcPath, "stat"),
		numa:     probeNUMA(cfg.SysPath),
		rec:      newRecord(),
		refcount: 1,
	}
	if err := p.rec.parse(p.statPath); err != nil {
		return nil, procerr.Wrap(procerr.ReadFailed, "stat.New", err)
	}
	p.lastRead = time.Now()
	return p, nil
}

func (p *Provider) Ref() int32 {
	p.refcount++
	return p.refcount
}

// Unref decrements the refcount, releasing all owned state at zero.
// Returns the new refcount, or 0 and procerr.ErrInvalidArgs if p is nil
// (procerr.Code maps that error to the negative InvalidArgs magnitude).
func (p *Provider) Unref() (int32, error) {
	if p == nil {
		return 0, procerr.ErrInvalidArgs
	}
	p.refcount--
	if p.refcount <= 0 {
		p.rec = nil
		return 0, nil
	}
	return p.refcount, nil
}

// reread re-parses /proc/stat unconditionally (used by Reap/Select, which
// §5 says "always re-reads").
func (p *Provider) reread() error {
	if err := p.rec.parse(p.statPath); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "stat.reap", err)
	}
	p.lastRead = time.Now()
	return nil
}

// Get is the rate-limited single-item accessor (spec §4.2/§5): reads are
// coalesced to at most once per wall-clock second. singleflight also
// collapses truly concurrent callers hitting the same window onto one
// underlying read, on top of the time-window cache below.
func (p *Provider) Get(item Item) (result.Result[Item], error) {
	var zero result.Result[Item]
	if item < Noop || item >= LogicalEnd {
		return zero, procerr.Wrap(procerr.InvalidArgs, "stat.get", fmt.Errorf("item %d out of range", item))
	}
	if time.Since(p.lastRead) >= time.Second {
		if _, err, _ := p.sf.Do("read", func() (any, error) {
			return nil, p.reread()
		}); err != nil {
			return zero, err
		}
	}
	var r result.Result[Item]
	fillScalar(&r, item, &p.rec.summary, &p.rec.scalars)
	return r, nil
}

// Reap bulk-enumerates per-cpu (and, if requested and NUMA is present,
// per-node) stacks plus the summary stack (spec §4.2).
func (p *Provider) Reap(what ReapType, items []Item) (*Reaped, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}

	summaryExt := result.NewExtent(items, LogicalEnd, 1)
	fillStack(summaryExt.Stacks[0], items, SummaryID, NodeInvalid, &p.rec.summary, &p.rec.scalars)

	cpuExt := result.NewExtent(items, LogicalEnd, len(p.rec.cpus))
	for i, c := range p.rec.cpus {
		fillStack(cpuExt.Stacks[i], items, c.ID, p.numa.nodeFor(c.ID), &c.frame, &p.rec.scalars)
	}

	reaped := &Reaped{
		Summary: summaryExt.Stacks[0],
		CPUs:    &Reap{Total: len(cpuExt.Stacks), Stacks: cpuExt.Stacks},
	}

	if what == ReapCPUsAndNodes && p.numa.present {
		nodeFrames := map[int32]*procutils.Frame[jiffies]{}
		var order []int32
		for _, c := range p.rec.cpus {
			node := p.numa.nodeFor(c.ID)
			if node == NodeInvalid {
				continue
			}
			nf, ok := nodeFrames[node]
			if !ok {
				nf = &procutils.Frame[jiffies]{}
				nodeFrames[node] = nf
				order = append(order, node)
			}
			nf.New = sumJiffies(nf.New, c.frame.New)
			nf.Old = sumJiffies(nf.Old, c.frame.Old)
		}
		nodeExt := result.NewExtent(items, LogicalEnd, len(order))
		for i, node := range order {
			fillStack(nodeExt.Stacks[i], items, node, node, nodeFrames[node], &p.rec.scalars)
		}
		reaped.Nodes = &Reap{Total: len(nodeExt.Stacks), Stacks: nodeExt.Stacks}
	} else {
		reaped.Nodes = &Reap{}
	}

	return reaped, nil
}

// Select returns one stack for the cpu summary and system scalar counters.
func (p *Provider) Select(items []Item) (*Stack, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	ext := result.NewExtent(items, LogicalEnd, 1)
	fillStack(ext.Stacks[0], items, SummaryID, NodeInvalid, &p.rec.summary, &p.rec.scalars)
	return ext.Stacks[0], nil
}

// Sort reorders stacks by item (spec §4.7).
func Sort(stacks []*Stack, item Item, order int) ([]*Stack, error) {
	return result.Sort(stacks, item, order, nil)
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return procerr.Wrap(procerr.InvalidArgs, "stat", fmt.Errorf("empty item list"))
	}
	for _, it := range items {
		if it < Noop || it >= LogicalEnd {
			return procerr.Wrap(procerr.InvalidArgs, "stat", fmt.Errorf("item %d out of range", it))
		}
	}
	return nil
}

func sumJiffies(a, b jiffies) jiffies {
	return jiffies{
		User: a.User + b.User, Nice: a.Nice + b.Nice, System: a.System + b.System,
		Idle: a.Idle + b.Idle, IOWait: a.IOWait + b.IOWait, IRQ: a.IRQ + b.IRQ,
		SoftIRQ: a.SoftIRQ + b.SoftIRQ, Stolen: a.Stolen + b.Stolen,
		Guest: a.Guest + b.Guest, GuestNice: a.GuestNice + b.GuestNice,
	}
}

func fillStack(s *Stack, items []Item, id, node int32, jv *procutils.Frame[jiffies], sc *scalarCounters) {
	for i, item := range items {
		fillOne(&s.Head[i], item, id, node, jv, sc)
	}
}

func fillScalar(r *result.Result[Item], item Item, jv *procutils.Frame[jiffies], sc *scalarCounters) {
	fillOne(r, item, SummaryID, NodeInvalid, jv, sc)
}

// fillOne is the stat item table's setter dispatch (spec §4.1/§4.6 design
// notes: one row per item, static dispatch instead of function pointers).
func fillOne(r *result.Result[Item], item Item, id, node int32, jv *procutils.Frame[jiffies], sc *scalarCounters) {
	r.Tag = item
	switch item {
	case Noop, Extra:
		// never written / always zero.
	case TicID:
		r.SetSInt(id)
	case TicNumaNode:
		r.SetSInt(node)
	case TicUser:
		r.SetULongLong(jv.New.User)
	case TicNice:
		r.SetULongLong(jv.New.Nice)
	case TicSystem:
		r.SetULongLong(jv.New.System)
	case TicIdle:
		r.SetULongLong(jv.New.Idle)
	case TicIOWait:
		r.SetULongLong(jv.New.IOWait)
	case TicIRQ:
		r.SetULongLong(jv.New.IRQ)
	case TicSoftIRQ:
		r.SetULongLong(jv.New.SoftIRQ)
	case TicStolen:
		r.SetULongLong(jv.New.Stolen)
	case TicGuest:
		r.SetULongLong(jv.New.Guest)
	case TicGuestNice:
		r.SetULongLong(jv.New.GuestNice)
	case TicDeltaUser:
		r.SetSLong(deltaU64(jv.New.User, jv.Old.User))
	case TicDeltaNice:
		r.SetSLong(deltaU64(jv.New.Nice, jv.Old.Nice))
	case TicDeltaSystem:
		r.SetSLong(deltaU64(jv.New.System, jv.Old.System))
	case TicDeltaIdle:
		r.SetSLong(deltaU64(jv.New.Idle, jv.Old.Idle))
	case TicDeltaIOWait:
		r.SetSLong(deltaU64(jv.New.IOWait, jv.Old.IOWait))
	case TicDeltaIRQ:
		r.SetSLong(deltaU64(jv.New.IRQ, jv.Old.IRQ))
	case TicDeltaSoftIRQ:
		r.SetSLong(deltaU64(jv.New.SoftIRQ, jv.Old.SoftIRQ))
	case TicDeltaStolen:
		r.SetSLong(deltaU64(jv.New.Stolen, jv.Old.Stolen))
	case TicDeltaGuest:
		r.SetSLong(deltaU64(jv.New.Guest, jv.Old.Guest))
	case TicDeltaGuestNice:
		r.SetSLong(deltaU64(jv.New.GuestNice, jv.Old.GuestNice))
	case SysCtxSwitches:
		r.SetULong(sc.ctxSwitches.New)
	case SysInterrupts:
		r.SetULong(sc.interrupts.New)
	case SysProcBlocked:
		r.SetULong(sc.procBlocked.New)
	case SysProcCreated:
		r.SetULong(sc.procCreated.New)
	case SysProcRunning:
		r.SetULong(sc.procRunning.New)
	case SysTimeOfBoot:
		r.SetULong(sc.bootTime)
	case SysDeltaCtxSwitches:
		r.SetSInt(int32(deltaU64(sc.ctxSwitches.New, sc.ctxSwitches.Old)))
	case SysDeltaInterrupts:
		r.SetSInt(int32(deltaU64(sc.interrupts.New, sc.interrupts.Old)))
	case SysDeltaProcBlocked:
		r.SetSInt(int32(deltaU64(sc.procBlocked.New, sc.procBlocked.Old)))
	case SysDeltaProcCreated:
		r.SetSInt(int32(deltaU64(sc.procCreated.New, sc.procCreated.Old)))
	case SysDeltaProcRunning:
		r.SetSInt(int32(deltaU64(sc.procRunning.New, sc.procRunning.Old)))
	}
}
