// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package vmstat is the virtual-memory counters provider (spec §4.5),
// parsing /proc/vmstat's label/value lines into a map plus one-frame
// deltas. Every label is stored as read; Linux carries hundreds of these
// and adds more across releases, so the parser never hard-codes the set,
// and a label the file does not contain is reported as not found.
package vmstat

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antimetal/procfs/pkg/procerr"
	"github.com/go-logr/logr"
)

// Item identifies a named vmstat counter or its delta. Unlike the other
// providers, vmstat's item space is the label string itself (spec §4.5:
// "a large enumeration of named kernel counters"), so Item wraps the label
// with a Delta flag instead of a closed enum.
type Item struct {
	Label string
	Delta bool
}

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

// Provider is the vmstat provider context.
type Provider struct {
	cfg      Config
	logger   logr.Logger
	path     string
	refcount int32

	cur  map[string]uint64
	prev map[string]uint64
}

func New(logger logr.Logger, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "vmstat.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	p := &Provider{
		cfg:      cfg,
		logger:   logger.WithName("vmstat"),
		path:     filepath.Join(cfg.ProcPath, "vmstat"),
		refcount: 1,
		cur:      map[string]uint64{},
		prev:     map[string]uint64{},
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	p.prev = cloneMap(p.cur)
	return p, nil
}

func (p *Provider) Ref() int32 { p.refcount++; return p.refcount }

func (p *Provider) Unref() (int32, error) {
	if p == nil {
		return 0, procerr.ErrInvalidArgs
	}
	p.refcount--
	if p.refcount <= 0 {
		p.cur, p.prev = nil, nil
		return 0, nil
	}
	return p.refcount, nil
}

func (p *Provider) reread() error {
	f, err := os.Open(p.path)
	if err != nil {
		return procerr.Wrap(procerr.ReadFailed, "vmstat.reap", err)
	}
	defer f.Close()

	p.prev = p.cur
	next := make(map[string]uint64, len(p.prev))

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue // malformed value: skipped, not fatal.
		}
		next[fields[0]] = v
	}
	if err := scanner.Err(); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "vmstat.reap", err)
	}
	p.cur = next
	if p.prev == nil {
		p.prev = cloneMap(p.cur)
	}
	return nil
}

// Get reads a single counter (or its delta), rereading unconditionally —
// vmstat has no single-item rate limit requirement in spec §4.5.
func (p *Provider) Get(item Item) (uint64, bool, error) {
	if err := p.reread(); err != nil {
		return 0, false, err
	}
	return p.value(item)
}

// Select returns the requested counters/deltas in one pass without a
// second independent read per item.
func (p *Provider) Select(items []Item) (map[Item]uint64, error) {
	if len(items) == 0 {
		return nil, procerr.Wrap(procerr.InvalidArgs, "vmstat.select", fmt.Errorf("empty item list"))
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	out := make(map[Item]uint64, len(items))
	for _, it := range items {
		v, ok, err := p.value(it)
		if err != nil {
			return nil, err
		}
		if ok {
			out[it] = v
		}
	}
	return out, nil
}

func (p *Provider) value(item Item) (uint64, bool, error) {
	if item.Delta {
		newV, okNew := p.cur[item.Label]
		oldV, okOld := p.prev[item.Label]
		if !okNew || !okOld {
			return 0, false, nil
		}
		if newV < oldV {
			return 0, true, nil
		}
		return newV - oldV, true, nil
	}
	v, ok := p.cur[item.Label]
	return v, ok, nil
}

func cloneMap(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
