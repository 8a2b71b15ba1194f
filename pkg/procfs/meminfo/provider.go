// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package meminfo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antimetal/procfs/pkg/procerr"
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

// Provider is the meminfo provider context.
type Provider struct {
	cfg      Config
	logger   logr.Logger
	path     string
	refcount int32

	values map[Item]uint64
}

func New(logger logr.Logger, cfg Config) (*Provider, error) {
	cfg = cfg.withDefaults()
	if !filepath.IsAbs(cfg.ProcPath) {
		return nil, procerr.Newf(procerr.InvalidArgs, "meminfo.New", "ProcPath must be absolute, got %q", cfg.ProcPath)
	}
	p := &Provider{
		cfg:      cfg,
		logger:   logger.WithName("meminfo"),
		path:     filepath.Join(cfg.ProcPath, "meminfo"),
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
		p.values = nil
		return 0, nil
	}
	return p.refcount, nil
}

// reread parses /proc/meminfo fully. Fields are "Label: value[ kB]"; values
// carrying a kB unit are converted to bytes, bare counts (HugePages_*) are
// kept as reported, and unrecognized labels are ignored (spec §4.5: "the
// parser is a two-pass label lookup... unknown labels are ignored").
func (p *Provider) reread() error {
	f, err := os.Open(p.path)
	if err != nil {
		return procerr.Wrap(procerr.ReadFailed, "meminfo.reap", err)
	}
	defer f.Close()

	byLabel := make(map[string]Item, len(labels))
	for item, label := range labels {
		byLabel[label] = item
	}

	next := make(map[Item]uint64, len(labels))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		label := line[:colon]
		item, ok := byLabel[label]
		if !ok {
			continue
		}
		fields := strings.Fields(line[colon+1:])
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) > 1 && fields[1] == "kB" {
			v *= 1024
		}
		next[item] = v
	}
	if err := scanner.Err(); err != nil {
		return procerr.Wrap(procerr.ReadFailed, "meminfo.reap", err)
	}
	p.values = next
	return nil
}

// Get is the single-item accessor. It re-reads /proc/meminfo on every call;
// unlike stat's and diskstats' Get it is not rate-limited.
func (p *Provider) Get(item Item) (result.Result[Item], error) {
	var zero result.Result[Item]
	if item < Noop || item >= LogicalEnd {
		return zero, procerr.Wrap(procerr.InvalidArgs, "meminfo.get", fmt.Errorf("item %d out of range", item))
	}
	if err := p.reread(); err != nil {
		return zero, err
	}
	var r result.Result[Item]
	fillOne(&r, item, p.values)
	return r, nil
}

// Select returns one stack with the requested items (spec §4.6).
func (p *Provider) Select(items []Item) (*Stack, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if err := p.reread(); err != nil {
		return nil, err
	}
	ext := result.NewExtent(items, LogicalEnd, 1)
	for i, item := range items {
		fillOne(&ext.Stacks[0].Head[i], item, p.values)
	}
	return ext.Stacks[0], nil
}

func Sort(stacks []*Stack, item Item, order int) ([]*Stack, error) {
	return result.Sort(stacks, item, order, nil)
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return procerr.Wrap(procerr.InvalidArgs, "meminfo", fmt.Errorf("empty item list"))
	}
	for _, it := range items {
		if it < Noop || it >= LogicalEnd {
			return procerr.Wrap(procerr.InvalidArgs, "meminfo", fmt.Errorf("item %d out of range", it))
		}
	}
	return nil
}

func fillOne(r *result.Result[Item], item Item, values map[Item]uint64) {
	r.Tag = item
	if item == Noop || item == Extra {
		return
	}
	r.SetULong(values[item])
}
