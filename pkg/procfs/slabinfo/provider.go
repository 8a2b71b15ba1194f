// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package slabinfo

import (
	"fmt"
	"path/filepath"

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

// Provider is the slabinfo provider context.
type Provider struct {
	cfg      Config
	logger   logr.Logger
	path     string
	utils    *procutils.ProcUtils
	rec      *record
	refcount int32
}

func New(logger logr.Logger, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "slabinfo.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	p := &Provider{
		cfg:      cfg,
		logger:   logger.WithName("slabinfo"),
		path:     filepath.Join(cfg.ProcPath, "slabinfo"),
		utils:    procutils.New(cfg.ProcPath),
		rec:      newRecord(),
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
		p.rec = nil
		return 0, nil
	}
	return p.refcount, nil
}

func (p *Provider) reread() error {
	pageSize, err := p.utils.GetPageSize()
	if err != nil {
		return procerr.Wrap(procerr.ReadFailed, "slabinfo.reap", err)
	}
	return p.rec.parse(p.path, uint64(pageSize))
}

// Reap returns one stack per cache. Summary items in items are filled into
// every stack from the whole-file summary; no separate summary stack is
// returned (Select gives that).
func (p *Provider) Reap(items []Item) (*Reap, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	ext := result.NewExtent(items, LogicalEnd, len(p.rec.nodes))
	for i := range p.rec.nodes {
		fillStack(ext.Stacks[i], items, &p.rec.newSummary, &p.rec.oldSummary, &p.rec.nodes[i])
	}
	return &Reap{Total: len(ext.Stacks), Stacks: ext.Stacks}, nil
}

// Select returns one stack with the whole-file summary items only (no
// per-cache node is addressed, mirroring original_source's select
// restricted to SLABINFO & SLABS items).
func (p *Provider) Select(items []Item) (*Stack, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	ext := result.NewExtent(items, LogicalEnd, 1)
	fillStack(ext.Stacks[0], items, &p.rec.newSummary, &p.rec.oldSummary, nil)
	return ext.Stacks[0], nil
}

func Sort(stacks []*Stack, item Item, order int) ([]*Stack, error) {
	return result.Sort(stacks, item, order, nil)
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return procerr.Wrap(procerr.InvalidArgs, "slabinfo", fmt.Errorf("empty item list"))
	}
	for _, it := range items {
		if it < Noop || it >= LogicalEnd {
			return procerr.Wrap(procerr.InvalidArgs, "slabinfo", fmt.Errorf("item %d out of range", it))
		}
	}
	return nil
}

func fillStack(s *Stack, items []Item, newS, oldS *summary, n *node) {
	for i, item := range items {
		fillOne(&s.Head[i], item, newS, oldS, n)
	}
}

func fillOne(r *result.Result[Item], item Item, newS, oldS *summary, n *node) {
	r.Tag = item
	switch item {
	case Noop, Extra:
	case SlabsObjs:
		r.SetUInt(newS.nrObjs)
	case SlabsAObjs:
		r.SetUInt(newS.nrActiveObjs)
	case SlabsPages:
		r.SetUInt(newS.nrPages)
	case SlabsSlabs:
		r.SetUInt(newS.nrSlabs)
	case SlabsASlabs:
		r.SetUInt(newS.nrActiveSlabs)
	case SlabsCaches:
		r.SetUInt(newS.nrCaches)
	case SlabsACaches:
		r.SetUInt(newS.nrActiveCaches)
	case SlabsSizeAvg:
		r.SetUInt(newS.avgObjSize)
	case SlabsSizeMin:
		r.SetUInt(newS.minObjSize)
	case SlabsSizeMax:
		r.SetUInt(newS.maxObjSize)
	case SlabsSizeActive:
		r.SetULong(newS.activeSize)
	case SlabsSizeTotal:
		r.SetULong(newS.totalSize)
	case SlabsDeltaObjs:
		r.SetSLong(deltaI32(newS.nrObjs, oldS.nrObjs))
	case SlabsDeltaAObjs:
		r.SetSLong(deltaI32(newS.nrActiveObjs, oldS.nrActiveObjs))
	case SlabsDeltaPages:
		r.SetSLong(deltaI32(newS.nrPages, oldS.nrPages))
	case SlabsDeltaSlabs:
		r.SetSLong(deltaI32(newS.nrSlabs, oldS.nrSlabs))
	case SlabsDeltaASlabs:
		r.SetSLong(deltaI32(newS.nrActiveSlabs, oldS.nrActiveSlabs))
	case SlabsDeltaCaches:
		r.SetSLong(deltaI32(newS.nrCaches, oldS.nrCaches))
	case SlabsDeltaACaches:
		r.SetSLong(deltaI32(newS.nrActiveCaches, oldS.nrActiveCaches))
	case SlabsDeltaSizeAvg:
		r.SetSLong(deltaI32(newS.avgObjSize, oldS.avgObjSize))
	case SlabsDeltaSizeMin:
		r.SetSLong(deltaI32(newS.minObjSize, oldS.minObjSize))
	case SlabsDeltaSizeMax:
		r.SetSLong(deltaI32(newS.maxObjSize, oldS.maxObjSize))
	case SlabsDeltaSizeActive:
		r.SetSLong(deltaI64(newS.activeSize, oldS.activeSize))
	case SlabsDeltaSizeTotal:
		r.SetSLong(deltaI64(newS.totalSize, oldS.totalSize))
	case NodeName:
		if n != nil {
			r.SetString(n.name)
		}
	case NodeObjs:
		if n != nil {
			r.SetUInt(n.nrObjs)
		}
	case NodeAObjs:
		if n != nil {
			r.SetUInt(n.nrActiveObjs)
		}
	case NodeObjSize:
		if n != nil {
			r.SetUInt(n.objSize)
		}
	case NodeObjsPerSlab:
		if n != nil {
			r.SetUInt(n.objsPerSlab)
		}
	case NodePagesPerSlab:
		if n != nil {
			r.SetUInt(n.pagesPerSlab)
		}
	case NodeSlabs:
		if n != nil {
			r.SetUInt(n.nrSlabs)
		}
	case NodeASlabs:
		if n != nil {
			r.SetUInt(n.nrActiveSlabs)
		}
	case NodeUse:
		if n != nil {
			r.SetUInt(n.use)
		}
	case NodeSize:
		if n != nil {
			r.SetULong(n.cacheSize)
		}
	}
}
