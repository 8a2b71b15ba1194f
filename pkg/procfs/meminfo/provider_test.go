// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package meminfo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antimetal/procfs/pkg/procfs/meminfo"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

const fixture = `MemTotal:       16384000 kB
MemFree:         1000000 kB
MemAvailable:    8000000 kB
Buffers:          200000 kB
Cached:          300000 kB
SwapTotal:       2000000 kB
SwapFree:        2000000 kB
HugePages_Total:      10
HugePages_Free:        4
Hugepagesize:       2048 kB
`

func writeMeminfo(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meminfo"), []byte(content), 0o644))
}

func TestGetConvertsKBToBytes(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, fixture)
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	r, err := p.Get(meminfo.MemTotal)
	require.NoError(t, err)
	assert.EqualValues(t, 16384000*1024, r.UInt())
}

func TestGetHugePagesKeptAsRawCount(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, fixture)
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	r, err := p.Get(meminfo.HugePagesTotal)
	require.NoError(t, err)
	assert.EqualValues(t, 10, r.UInt())
}

func TestGetMissingFieldIsZero(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, "MemTotal: 1000 kB\n")
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	r, err := p.Get(meminfo.Dirty)
	require.NoError(t, err)
	assert.EqualValues(t, 0, r.UInt())
}

func TestSelectMultipleFields(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, fixture)
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	s, err := p.Select([]meminfo.Item{meminfo.MemFree, meminfo.SwapFree})
	require.NoError(t, err)
	assert.EqualValues(t, 1000000*1024, s.At(meminfo.MemFree).UInt())
	assert.EqualValues(t, 2000000*1024, s.At(meminfo.SwapFree).UInt())
}

func TestSelectEmptyIsError(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, fixture)
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	_, err = p.Select(nil)
	assert.Error(t, err)
}

func TestGetOutOfRangeItemIsError(t *testing.T) {
	dir := t.TempDir()
	writeMeminfo(t, dir, fixture)
	p, err := meminfo.New(logr.Discard(), meminfo.Config{ProcPath: dir})
	require.NoError(t, err)

	_, err = p.Get(meminfo.LogicalEnd)
	assert.Error(t, err)
}
