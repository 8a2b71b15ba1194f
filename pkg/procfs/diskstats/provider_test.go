// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package diskstats_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antimetal/procfs/pkg/procfs/diskstats"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func writeDiskstats(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "diskstats"), []byte(content), 0o644))
}

const fixture = `   8       0 sda 100 5 2000 30 50 2 1000 20 0 10 10
   8       1 sda1 40 1 800 10 20 1 400 5 0 5 5
 253       0 dm-0 10 0 200 5 5 0 100 2 0 2 2
`

func writeSysBlock(t *testing.T, sysDir string, devices ...string) {
	t.Helper()
	blockDir := filepath.Join(sysDir, "block")
	require.NoError(t, os.MkdirAll(blockDir, 0o755))
	for _, d := range devices {
		require.NoError(t, os.MkdirAll(filepath.Join(blockDir, d), 0o755))
	}
}

func newProvider(t *testing.T, procDir, sysDir string) *diskstats.Provider {
	t.Helper()
	p, err := diskstats.New(logr.Discard(), diskstats.Config{ProcPath: procDir, SysPath: sysDir})
	require.NoError(t, err)
	return p
}

func TestReapClassifiesDisksByPresenceInSysBlock(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda", "dm-0")
	p := newProvider(t, procDir, sysDir)

	reap, err := p.Reap([]diskstats.Item{diskstats.Name, diskstats.Type})
	require.NoError(t, err)
	require.Equal(t, 3, reap.Total)

	types := map[string]string{}
	for _, s := range reap.Stacks {
		types[s.At(diskstats.Name).String()] = s.At(diskstats.Type).String()
	}
	assert.Equal(t, "disk", types["sda"])
	assert.Equal(t, "partition", types["sda1"])
	assert.Equal(t, "disk", types["dm-0"])
}

func TestMissingSysBlockTreatsAllAsDisk(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	// sysDir/block intentionally not created.
	p := newProvider(t, procDir, sysDir)

	reap, err := p.Reap([]diskstats.Item{diskstats.Name, diskstats.Type})
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		assert.Equal(t, "disk", s.At(diskstats.Type).String())
	}
}

func TestDeltaZeroOnFirstRead(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda")
	p := newProvider(t, procDir, sysDir)

	s, err := p.Select("sda", []diskstats.Item{diskstats.DeltaReadsCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.At(diskstats.DeltaReadsCompleted).SInt())
}

func TestDeltaAfterSecondRead(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda")
	p := newProvider(t, procDir, sysDir)

	writeDiskstats(t, procDir, `   8       0 sda 150 5 2500 30 50 2 1000 20 0 10 10
`)
	s, err := p.Select("sda", []diskstats.Item{diskstats.DeltaReadsCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 50, s.At(diskstats.DeltaReadsCompleted).SInt())
}

func TestStaleDeviceEvictedOnFirstMiss(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda")
	p := newProvider(t, procDir, sysDir)

	// sda1 disappears (e.g. unmounted partition); dm-0 keeps reporting.
	writeDiskstats(t, procDir, `   8       0 sda 150 5 2500 30 50 2 1000 20 0 10 10
 253       0 dm-0 10 0 200 5 5 0 100 2 0 2 2
`)
	reap, err := p.Reap([]diskstats.Item{diskstats.Name})
	require.NoError(t, err)
	assert.Equal(t, 2, reap.Total, "device missing from a single read is evicted immediately")

	names := map[string]bool{}
	for _, s := range reap.Stacks {
		names[s.At(diskstats.Name).String()] = true
	}
	assert.False(t, names["sda1"], "evicted device must not reappear in Reap's output")
}

func TestGetUnknownDeviceIsError(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda")
	p := newProvider(t, procDir, sysDir)

	_, err := p.Get("nope", diskstats.ReadsCompleted)
	assert.Error(t, err)
}

func TestRefUnref(t *testing.T) {
	procDir, sysDir := t.TempDir(), t.TempDir()
	writeDiskstats(t, procDir, fixture)
	writeSysBlock(t, sysDir, "sda")
	p := newProvider(t, procDir, sysDir)

	assert.EqualValues(t, 2, p.Ref())
	n, err := p.Unref()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
