// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/antimetal/procfs/pkg/procerr"
	"github.com/antimetal/procfs/pkg/procutils"
	"github.com/antimetal/procfs/pkg/result"
	"github.com/go-logr/logr"
)

// Config configures a Provider.
type Config struct {
	ProcPath string
}

func (c Config) withDefaults() Config {
	if c.ProcPath == "" {
		c.ProcPath = "/proc"
	}
	return c
}

// Provider is the process-information provider context (spec §4.1's
// "context"): current item list, derived needs mask, cached host facts,
// and the task-id-keyed history used for tick/fault deltas.
type Provider struct {
	cfg      Config
	logger   logr.Logger
	path     string
	utils    *procutils.ProcUtils
	refcount int32

	items []Item
	need  needs

	pageShift uint
	userHZ    int64
	bootTime  time.Time

	hist *procutils.History[int32, taskHistory]

	tok *ReadToken
}

// New allocates a context for the given item list (spec §4.1's "new").
func New(logger logr.Logger, cfg Config, items []Item) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "pids.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	u := procutils.New(cfg.ProcPath)
	pageShift, err := u.PageShift()
	if err != nil {
		return nil, procerr.Wrap(procerr.ReadFailed, "pids.New", err)
	}
	userHZ, err := u.GetUserHZ()
	if err != nil {
		return nil, procerr.Wrap(procerr.ReadFailed, "pids.New", err)
	}
	bootTime, err := u.GetBootTime()
	if err != nil {
		return nil, procerr.Wrap(procerr.ReadFailed, "pids.New", err)
	}

	return &Provider{
		cfg:       cfg,
		logger:    logger.WithName("pids"),
		path:      cfg.ProcPath,
		utils:     u,
		refcount:  1,
		items:     append([]Item(nil), items...),
		need:      computeNeeds(items),
		pageShift: pageShift,
		userHZ:    userHZ,
		bootTime:  bootTime,
		hist:      procutils.NewHistory[int32, taskHistory](),
	}, nil
}

func (p *Provider) Ref() int32 { p.refcount++; return p.refcount }

// Unref decrements the refcount; at zero every extent-backing structure is
// dropped and any open streaming token is shut (spec §4.1's "unref").
func (p *Provider) Unref() (int32, error) {
	if p == nil {
		return 0, procerr.ErrInvalidArgs
	}
	p.refcount--
	if p.refcount <= 0 {
		if p.tok != nil {
			p.tok.Shut()
		}
		p.hist = nil
		p.items = nil
		return 0, nil
	}
	return p.refcount, nil
}

// Reset changes the current item list in place (spec §4.1's "reset").
// Only shrinking or same-size reconfigurations are permitted; enlarging
// requires Unref followed by New.
func (p *Provider) Reset(items []Item) error {
	if err := validateItems(items); err != nil {
		return err
	}
	if len(items) > len(p.items) {
		return procerr.Newf(procerr.InvalidArgs, "pids.reset",
			"reset may only shrink or keep the item list the same size (have %d, want %d)", len(p.items), len(items))
	}
	if itemsEqual(items, p.items) {
		return nil
	}
	p.items = append([]Item(nil), items...)
	p.need = computeNeeds(items)
	return nil
}

func itemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return procerr.Newf(procerr.InvalidArgs, "pids", "empty item list")
	}
	for _, it := range items {
		if it < Noop || it >= LogicalEnd {
			return procerr.Newf(procerr.InvalidArgs, "pids", "item %d out of range", it)
		}
	}
	return nil
}

// taskRef is one task directory discovered during enumeration: its id
// (pid, or tid when walking threads) and the directory to read it from.
type taskRef struct {
	id   int32
	base string
}

// listTasks enumerates /proc/<pid> (tasks only) or every
// /proc/<pid>/task/<tid> (tasks and threads), sorted by id so repeated
// reads visit tasks in a stable order.
func (p *Provider) listTasks(which Which) ([]taskRef, error) {
	entries, err := os.ReadDir(p.path)
	if err != nil {
		return nil, procerr.Wrap(procerr.ReadFailed, "pids.reap", err)
	}
	var pids []int32
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	refs := make([]taskRef, 0, len(pids))
	for _, pid := range pids {
		pidDir := filepath.Join(p.path, strconv.Itoa(int(pid)))
		if which == TasksOnly {
			refs = append(refs, taskRef{id: pid, base: pidDir})
			continue
		}
		taskEntries, err := os.ReadDir(filepath.Join(pidDir, "task"))
		if err != nil {
			// Task vanished between the top-level scan and the task/
			// subdirectory open; skip it (spec §4.1 failure semantics).
			continue
		}
		var tids []int32
		for _, te := range taskEntries {
			tid, err := strconv.ParseInt(te.Name(), 10, 32)
			if err != nil {
				continue
			}
			tids = append(tids, int32(tid))
		}
		sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
		for _, tid := range tids {
			refs = append(refs, taskRef{id: tid, base: filepath.Join(pidDir, "task", strconv.Itoa(int(tid)))})
		}
	}
	return refs, nil
}

// stateBreakdown tallies the one-letter /proc/<pid>/stat state code into
// the running/sleeping/stopped/zombied counts spec §4.1's reap summary
// reports.
func stateBreakdown(rep *Reap, state byte) {
	switch state {
	case 'R':
		rep.Running++
	case 'S', 'D':
		rep.Sleeping++
	case 'T', 't':
		rep.Stopped++
	case 'Z':
		rep.Zombie++
	}
}

func (p *Provider) fillCtxNow() fillCtx {
	return fillCtx{
		pageShift: p.pageShift,
		userHZ:    p.userHZ,
		bootUnix:  p.bootTime.Unix(),
		nowUnix:   time.Now().Unix(),
	}
}

// Reap bulk-enumerates every visible task (spec §4.1's "reap"), rotating
// history so tick/fault deltas are available on every read after the
// first sighting of a given task id.
func (p *Provider) Reap(which Which) (*Reap, error) {
	refs, err := p.listTasks(which)
	if err != nil {
		return nil, err
	}
	p.hist.BeginRead()

	ext := result.NewExtent(p.items, LogicalEnd, len(refs))
	rep := &Reap{Stacks: make([]*Stack, 0, len(refs))}

	idx := 0
	for _, ref := range refs {
		t, ok := readTask(ref.base, ref.id, p.need)
		if !ok {
			continue
		}
		fc := p.fillCtxNow()
		ticksAll := t.stat.uTime + t.stat.sTime
		if prev, had := p.hist.Lookup(ref.id); had {
			fc.hist, fc.haveHist = prev, true
		}
		p.hist.Record(ref.id, taskHistory{ticksAll: ticksAll, fltMin: t.stat.minFlt, fltMaj: t.stat.majFlt})

		stack := ext.Stacks[idx]
		for j, item := range p.items {
			fillOne(&stack.Head[j], item, &t, fc)
		}
		rep.Stacks = append(rep.Stacks, stack)
		stateBreakdown(rep, t.stat.state)
		idx++
	}
	rep.Total = len(rep.Stacks)
	return rep, nil
}

const maxSelectIDs = 255

// Select restricts Reap's enumeration to tasks whose pid (byUID=false) or
// effective uid (byUID=true) appears in ids (spec §4.1's "select"). ids is
// bounded at 255 entries; exceeding that is InvalidArgs.
func (p *Provider) Select(ids []int32, byUID bool, which Which) (*Reap, error) {
	if len(ids) == 0 {
		return nil, procerr.Newf(procerr.InvalidArgs, "pids.select", "empty selection set")
	}
	if len(ids) > maxSelectIDs {
		return nil, procerr.Newf(procerr.InvalidArgs, "pids.select", "selection set of %d exceeds the %d-id bound", len(ids), maxSelectIDs)
	}
	wanted := make(map[int32]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	refs, err := p.listTasks(which)
	if err != nil {
		return nil, err
	}
	p.hist.BeginRead()

	var filtered []taskRef
	var parsed []task
	for _, ref := range refs {
		t, ok := readTask(ref.base, ref.id, p.need)
		if !ok {
			continue
		}
		key := ref.id
		if byUID {
			uid, uerr := taskEUID(ref.base)
			if uerr != nil {
				continue
			}
			key = uid
		}
		if !wanted[key] {
			continue
		}
		filtered = append(filtered, ref)
		parsed = append(parsed, t)
	}

	ext := result.NewExtent(p.items, LogicalEnd, len(filtered))
	rep := &Reap{Stacks: make([]*Stack, 0, len(filtered))}
	for i, ref := range filtered {
		t := parsed[i]
		fc := p.fillCtxNow()
		ticksAll := t.stat.uTime + t.stat.sTime
		if prev, had := p.hist.Lookup(ref.id); had {
			fc.hist, fc.haveHist = prev, true
		}
		p.hist.Record(ref.id, taskHistory{ticksAll: ticksAll, fltMin: t.stat.minFlt, fltMaj: t.stat.majFlt})

		stack := ext.Stacks[i]
		for j, item := range p.items {
			fillOne(&stack.Head[j], item, &t, fc)
		}
		rep.Stacks = append(rep.Stacks, stack)
		stateBreakdown(rep, t.stat.state)
	}
	rep.Total = len(rep.Stacks)
	return rep, nil
}

// taskEUID reads the effective uid from <base>/status's "Uid:" line.
func taskEUID(base string) (int32, error) {
	raw, err := os.ReadFile(filepath.Join(base, "status"))
	if err != nil {
		return 0, err
	}
	euid, ok := parseUidLine(string(raw))
	if !ok {
		return 0, fmt.Errorf("no Uid: line in status")
	}
	return euid, nil
}

// FatalProcUnmounted verifies /proc is reachable and actually the proc
// filesystem before a caller starts relying on this provider (spec §4.1's
// "fatal_proc_unmounted").
func FatalProcUnmounted(procPath string) error {
	return procutils.FatalProcUnmounted(procPath)
}
