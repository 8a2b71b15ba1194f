// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package stat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antimetal/procfs/pkg/procfs/stat"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func writeStat(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644))
}

const fixture = `cpu  100 10 50 800 5 0 0 0 0 0
cpu0 50 5 25 400 2 0 0 0 0 0
cpu1 50 5 25 400 3 0 0 0 0 0
intr 1000 0 0
ctxt 500
btime 1700000000
processes 42
procs_running 2
procs_blocked 0
`

func newProvider(t *testing.T, procDir string) *stat.Provider {
	t.Helper()
	p, err := stat.New(logr.Discard(), stat.Config{ProcPath: procDir, SysPath: filepath.Join(procDir, "nosys")})
	require.NoError(t, err)
	return p
}

func TestDeltaZeroOnFirstRead(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	s, err := p.Select([]stat.Item{stat.TicDeltaUser, stat.TicUser})
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.At(stat.TicDeltaUser).SInt())
	assert.EqualValues(t, 100, s.At(stat.TicUser).UInt())
}

func TestDeltaAfterSecondRead(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	writeStat(t, dir, `cpu  150 10 50 900 5 0 0 0 0 0
ctxt 600
btime 1700000000
processes 42
procs_running 2
procs_blocked 0
`)
	s, err := p.Select([]stat.Item{stat.TicDeltaUser})
	require.NoError(t, err)
	assert.EqualValues(t, 50, s.At(stat.TicDeltaUser).SInt())
}

func TestDeltaClampedToZeroOnOffline(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	// Simulate a counter drop (e.g. CPU offlined) between reads.
	writeStat(t, dir, `cpu  10 10 50 800 5 0 0 0 0 0
ctxt 500
btime 1700000000
processes 42
procs_running 2
procs_blocked 0
`)
	s, err := p.Select([]stat.Item{stat.TicDeltaUser})
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.At(stat.TicDeltaUser).SInt())
}

func TestReapCPUsOnly(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	reaped, err := p.Reap(stat.ReapCPUsOnly, []stat.Item{stat.TicID, stat.TicUser})
	require.NoError(t, err)
	assert.Equal(t, 2, reaped.CPUs.Total)
	assert.NotNil(t, reaped.Summary)
	assert.EqualValues(t, 0, reaped.Nodes.Total)
}

func TestOfflineCPUInheritsSummary(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	// cpu1 line truncated -> unparsable -> should inherit the summary.
	writeStat(t, dir, `cpu  150 10 50 900 5 0 0 0 0 0
cpu0 70 5 25 450 2 0 0 0 0 0
cpu1 garbled
ctxt 600
btime 1700000000
processes 42
procs_running 2
procs_blocked 0
`)
	reaped, err := p.Reap(stat.ReapCPUsOnly, []stat.Item{stat.TicID, stat.TicUser})
	require.NoError(t, err)
	var cpu1 = reaped.CPUs.Stacks[1]
	assert.EqualValues(t, 1, cpu1.At(stat.TicID).SInt())
	assert.EqualValues(t, 150, cpu1.At(stat.TicUser).UInt())
}

func TestGetRateLimitsReads(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	r1, err := p.Get(stat.TicUser)
	require.NoError(t, err)
	writeStat(t, dir, `cpu  999 10 50 800 5 0 0 0 0 0
ctxt 500
btime 1700000000
processes 42
procs_running 2
procs_blocked 0
`)
	r2, err := p.Get(stat.TicUser)
	require.NoError(t, err)
	assert.Equal(t, r1.UInt(), r2.UInt(), "second Get within the same second must be cached")
}

func TestRefUnref(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	assert.EqualValues(t, 2, p.Ref())
	n, err := p.Unref()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = p.Unref()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSortDescendingByID(t *testing.T) {
	dir := t.TempDir()
	writeStat(t, dir, fixture)
	p := newProvider(t, dir)

	reaped, err := p.Reap(stat.ReapCPUsOnly, []stat.Item{stat.TicID})
	require.NoError(t, err)
	sorted, err := stat.Sort(reaped.CPUs.Stacks, stat.TicID, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sorted[0].At(stat.TicID).SInt())
	assert.EqualValues(t, 0, sorted[1].At(stat.TicID).SInt())
}
