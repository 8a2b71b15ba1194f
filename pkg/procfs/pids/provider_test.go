// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/antimetal/procfs/pkg/procfs/pids"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statPid100 = "100 (bash) R 1 100 100 34816 100 0 10 0 1 0 50 20 0 0 20 0 1 0 1000 1000000 250 0 0 0 0 0 0 0 0 0 0 0 0 0 17 0 0 0\n"
const statPid100Second = "100 (bash) R 1 100 100 34816 100 0 15 0 3 0 90 40 0 0 20 0 1 0 1000 1000000 250 0 0 0 0 0 0 0 0 0 0 0 0 0 17 0 0 0\n"
const statPid200 = "200 (sleep) S 1 200 200 0 200 0 5 0 0 0 2 1 0 0 20 0 1 0 2000 500000 100 0 0 0 0 0 0 0 0 0 0 123456 0 0 17 0 0 0\n"

func writeProcRoot(t *testing.T, procDir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(procDir, "stat"),
		[]byte("cpu  0 0 0 0 0 0 0 0 0 0\nbtime 1700000000\n"), 0o644))
}

type fixtureTask struct {
	pid     int32
	statRaw string
	statm   string
	status  string
	cmdline string
	environ string
	cgroup  string
	wchan   string
}

func writeTask(t *testing.T, procDir string, ft fixtureTask) {
	t.Helper()
	dir := filepath.Join(procDir, strconv.Itoa(int(ft.pid)))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(ft.statRaw), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "statm"), []byte(ft.statm), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(ft.status), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(ft.cmdline), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "environ"), []byte(ft.environ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cgroup"), []byte(ft.cgroup), 0o644))
	if ft.wchan != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "wchan"), []byte(ft.wchan), 0o644))
	}
	nsDir := filepath.Join(dir, "ns")
	require.NoError(t, os.MkdirAll(nsDir, 0o755))
	for _, kind := range []string{"pid", "mnt", "net", "user", "uts", "ipc"} {
		require.NoError(t, os.Symlink(kind+":[4026531836]", filepath.Join(nsDir, kind)))
	}
}

func writeFixtureTasks(t *testing.T, procDir string) {
	t.Helper()
	writeProcRoot(t, procDir)
	writeTask(t, procDir, fixtureTask{
		pid:     100,
		statRaw: statPid100,
		statm:   "244 61 10 5 0 50 0\n",
		status:  "Tgid:\t100\nGroups:\t4 24 27\nUid:\t1000\t1000\t1000\t1000\nVmStk:\t132 kB\n",
		cmdline: "bash\x00-c\x00sleep 5\x00",
		environ: "HOME=/root\x00PATH=/bin\x00",
		cgroup:  "1:name=systemd:/user.slice/myapp.service\n",
	})
	writeTask(t, procDir, fixtureTask{
		pid:     200,
		statRaw: statPid200,
		statm:   "122 30 5 2 0 25 0\n",
		status:  "Tgid:\t200\nGroups:\t0\nUid:\t0\t0\t0\t0\n",
		cmdline: "sleep\x005\x00",
		environ: "HOME=/root\x00",
		cgroup:  "1:name=systemd:/system.slice/cron.service\n",
		wchan:   "hrtimer_nanosleep",
	})
}

func newProvider(t *testing.T, procDir string, items []pids.Item) *pids.Provider {
	t.Helper()
	p, err := pids.New(logr.Discard(), pids.Config{ProcPath: procDir}, items)
	require.NoError(t, err)
	return p
}

func TestReapTasksOnlyFillsBasicFields(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.Ppid, pids.State, pids.Cmd})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	require.Equal(t, 2, reap.Total)

	byPid := map[int32]*pids.Stack{}
	for _, s := range reap.Stacks {
		byPid[int32(s.At(pids.Pid).SInt())] = s
	}
	require.Contains(t, byPid, int32(100))
	require.Contains(t, byPid, int32(200))
	assert.Equal(t, "bash", byPid[100].At(pids.Cmd).String())
	assert.EqualValues(t, 1, byPid[100].At(pids.Ppid).SInt())
	assert.Equal(t, 1, reap.Running)
	assert.Equal(t, 1, reap.Sleeping)
}

func TestMemoryItemsConvertPagesToKiB(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.VmRSS, pids.VmSize, pids.MemResKiB})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		if s.At(pids.Pid).SInt() == 100 {
			// 4 KiB pages (the auxv-fallback page size): 61 resident pages -> 244 KiB.
			assert.EqualValues(t, 244, s.At(pids.VmRSS).UInt())
			assert.EqualValues(t, 976, s.At(pids.VmSize).UInt())
			assert.EqualValues(t, 244, s.At(pids.MemResKiB).UInt())
		}
	}
}

func TestVmStackReadFromStatusFile(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.VmStack})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		if s.At(pids.Pid).SInt() == 100 {
			assert.EqualValues(t, 132, s.At(pids.VmStack).UInt())
		}
	}
}

func TestFaultAndTickDeltasZeroOnFirstReadThenPositive(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.FltMinDelta, pids.FltMajDelta, pids.TicsDelta})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		if s.At(pids.Pid).SInt() == 100 {
			assert.EqualValues(t, 0, s.At(pids.FltMinDelta).SInt())
			assert.EqualValues(t, 0, s.At(pids.TicsDelta).SInt())
		}
	}

	require.NoError(t, os.WriteFile(filepath.Join(procDir, "100", "stat"), []byte(statPid100Second), 0o644))
	reap, err = p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		if s.At(pids.Pid).SInt() == 100 {
			assert.EqualValues(t, 5, s.At(pids.FltMinDelta).SInt())
			assert.EqualValues(t, 2, s.At(pids.FltMajDelta).SInt())
			assert.EqualValues(t, 60, s.At(pids.TicsDelta).SInt())
		}
	}
}

func TestCgroupAndSystemdLabels(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.CgName, pids.SdUnit, pids.SdSlice})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		if s.At(pids.Pid).SInt() == 100 {
			assert.Equal(t, "myapp.service", s.At(pids.CgName).String())
			assert.Equal(t, "myapp.service", s.At(pids.SdUnit).String())
			assert.Equal(t, "user.slice", s.At(pids.SdSlice).String())
		}
	}
}

func TestWchanNameOnlyReadWhenBlocked(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.WchanName})

	reap, err := p.Reap(pids.TasksOnly)
	require.NoError(t, err)
	for _, s := range reap.Stacks {
		switch s.At(pids.Pid).SInt() {
		case 100:
			assert.Equal(t, "", s.At(pids.WchanName).String())
		case 200:
			assert.Equal(t, "hrtimer_nanosleep", s.At(pids.WchanName).String())
		}
	}
}

func TestSelectByPidRestrictsResults(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid})

	reap, err := p.Select([]int32{200}, false, pids.TasksOnly)
	require.NoError(t, err)
	require.Equal(t, 1, reap.Total)
	assert.EqualValues(t, 200, reap.Stacks[0].At(pids.Pid).SInt())
}

func TestSelectByUID(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid})

	reap, err := p.Select([]int32{1000}, true, pids.TasksOnly)
	require.NoError(t, err)
	require.Equal(t, 1, reap.Total)
	assert.EqualValues(t, 100, reap.Stacks[0].At(pids.Pid).SInt())
}

func TestSelectRejectsOversizedSet(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid})

	ids := make([]int32, 256)
	_, err := p.Select(ids, false, pids.TasksOnly)
	assert.Error(t, err)
}

func TestResetShrinkAllowedGrowRejected(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid, pids.Cmd})

	assert.NoError(t, p.Reset([]pids.Item{pids.Pid}))
	assert.Error(t, p.Reset([]pids.Item{pids.Pid, pids.Cmd, pids.State}))
}

func TestReadOpenReadNextReadShutStreams(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid})

	tok, err := p.ReadOpen(pids.TasksOnly)
	require.NoError(t, err)

	seen := map[int32]bool{}
	for {
		s, ok, err := tok.ReadNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen[int32(s.At(pids.Pid).SInt())] = true
	}
	assert.True(t, seen[100])
	assert.True(t, seen[200])
	tok.Shut()
}

func TestRefUnref(t *testing.T) {
	procDir := t.TempDir()
	writeFixtureTasks(t, procDir)
	p := newProvider(t, procDir, []pids.Item{pids.Pid})

	assert.EqualValues(t, 2, p.Ref())
	n, err := p.Unref()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSortRejectsOrderOtherThanPlusMinusOne(t *testing.T) {
	_, err := pids.Sort(nil, pids.TtyName, 2)
	assert.Error(t, err, "an order other than +-1 must be rejected")
}
