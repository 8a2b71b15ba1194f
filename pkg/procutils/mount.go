// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procutils

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sys/unix"
)

// procSuperMagic is PROC_SUPER_MAGIC from linux/magic.h.
const procSuperMagic = 0x9fa0

// FatalProcUnmounted verifies /proc is actually the proc virtual filesystem
// and not, e.g., an empty directory left behind by a container that never
// mounted it (spec §4.1's fatal_proc_unmounted). It retries briefly with
// backoff since /proc can be mid-mount for a few milliseconds during early
// container start.
func FatalProcUnmounted(procPath string) error {
	op := func() (struct{}, error) {
		var st unix.Statfs_t
		if err := unix.Statfs(procPath, &st); err != nil {
			return struct{}{}, err
		}
		if int64(st.Type) != procSuperMagic {
			return struct{}{}, &notProcError{path: procPath}
		}
		return struct{}{}, nil
	}
	_, err := backoff.Retry(context.Background(), op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(200*time.Millisecond),
	)
	return err
}

type notProcError struct{ path string }

func (e *notProcError) Error() string {
	return filepath.Clean(e.path) + " is not mounted as a proc filesystem"
}
