// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package procerr_test

import (
	"testing"

	"github.com/antimetal/procfs/pkg/procerr"
	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, 0, procerr.Code(nil))
	assert.Equal(t, -int(procerr.InvalidArgs), procerr.Code(procerr.Wrap(procerr.InvalidArgs, "op", nil)))
	assert.Equal(t, -int(procerr.UnsupportedVersion), procerr.Code(procerr.Wrap(procerr.UnsupportedVersion, "op", nil)))
}

func TestIsClassifiesByKind(t *testing.T) {
	err := procerr.Wrap(procerr.ReadFailed, "stat.reap", procerr.New("boom"))
	assert.True(t, procerr.Is(err, procerr.ErrReadFailed))
	assert.False(t, procerr.Is(err, procerr.ErrInvalidArgs))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := procerr.New("boom")
	err := procerr.Wrap(procerr.ReadFailed, "op", cause)
	assert.Equal(t, cause, procerr.Unwrap(err))
}
