// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

import "github.com/antimetal/procfs/pkg/result"

// ReadToken is the streaming handle spec §4.1 describes ("read_open
// returns a token owning one extent of one stack; read_next refills that
// stack in place"). Callers that only want the first few tasks matching
// some filter avoid materialising an array for every visible task.
type ReadToken struct {
	p    *Provider
	refs []taskRef
	idx  int
	ext  *result.Extent[Item]
}

// ReadOpen starts a streaming enumeration (spec §4.1's "read_open"). Only
// one token may be open per Provider at a time; opening a second token
// implicitly invalidates the first the way a single-slot extent would.
func (p *Provider) ReadOpen(which Which) (*ReadToken, error) {
	refs, err := p.listTasks(which)
	if err != nil {
		return nil, err
	}
	p.hist.BeginRead()
	if p.tok != nil {
		p.tok.Shut()
	}
	tok := &ReadToken{
		p:    p,
		refs: refs,
		ext:  result.NewExtent(p.items, LogicalEnd, 1),
	}
	p.tok = tok
	return tok, nil
}

// ReadNext refills the token's single stack in place with the next
// visible task and returns it, or ok=false once every task has been
// visited (spec §4.1's "read_next").
func (t *ReadToken) ReadNext() (stack *Stack, ok bool, err error) {
	if t.p == nil {
		return nil, false, nil
	}
	for t.idx < len(t.refs) {
		ref := t.refs[t.idx]
		t.idx++
		tk, parsed := readTask(ref.base, ref.id, t.p.need)
		if !parsed {
			continue
		}
		fc := t.p.fillCtxNow()
		ticksAll := tk.stat.uTime + tk.stat.sTime
		if prev, had := t.p.hist.Lookup(ref.id); had {
			fc.hist, fc.haveHist = prev, true
		}
		t.p.hist.Record(ref.id, taskHistory{ticksAll: ticksAll, fltMin: tk.stat.minFlt, fltMaj: tk.stat.majFlt})

		s := t.ext.Stacks[0]
		for j, item := range t.p.items {
			fillOne(&s.Head[j], item, &tk, fc)
		}
		return s, true, nil
	}
	return nil, false, nil
}

// Shut releases the token (spec §4.1's "read_shut").
func (t *ReadToken) Shut() {
	if t.p != nil && t.p.tok == t {
		t.p.tok = nil
	}
	t.p = nil
	t.refs = nil
	t.ext = nil
}
