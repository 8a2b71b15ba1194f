// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package signame_test

import (
	"testing"

	"github.com/antimetal/procfs/pkg/signame"
	"github.com/stretchr/testify/assert"
)

func TestNameToNumberCaseInsensitiveWithAndWithoutSig(t *testing.T) {
	assert.EqualValues(t, 15, signame.NameToNumber("SIGterm"))
	assert.EqualValues(t, 15, signame.NameToNumber("term"))
	assert.EqualValues(t, 15, signame.NameToNumber("TERM"))
}

func TestAliases(t *testing.T) {
	assert.Equal(t, signame.NameToNumber("CHLD"), signame.NameToNumber("CLD"))
	assert.Equal(t, signame.NameToNumber("IO"), signame.NameToNumber("POLL"))
	assert.Equal(t, signame.NameToNumber("ABRT"), signame.NameToNumber("IOT"))
}

func TestExitAndNull(t *testing.T) {
	assert.EqualValues(t, 0, signame.NameToNumber("EXIT"))
	assert.EqualValues(t, 0, signame.NameToNumber("NULL"))
	assert.Equal(t, "0", signame.NumberToName(0))
}

func TestRTMinPlusN(t *testing.T) {
	got := signame.NameToNumber("RTMIN+4")
	assert.Equal(t, 34+4, got)
	assert.Equal(t, "RTMIN+4", signame.NumberToName(got))
}

func TestRTMinPlusNOverflowRejected(t *testing.T) {
	assert.Equal(t, -1, signame.NameToNumber("RTMIN+200"))
}

func TestUnknownNameRejected(t *testing.T) {
	assert.Equal(t, -1, signame.NameToNumber("NOTASIGNAL"))
}

func TestRoundTripEveryStandardSignal(t *testing.T) {
	for n := 1; n <= 31; n++ {
		name := signame.NumberToName(n)
		if name == "" {
			continue
		}
		if got := signame.NameToNumber(name); got != -1 {
			assert.Equal(t, n, got, "round trip failed for %d (%s)", n, name)
		}
	}
}

func TestSigPrefixEquivalence(t *testing.T) {
	for _, s := range []string{"hup", "int", "kill", "chld"} {
		assert.Equal(t, signame.NameToNumber(s), signame.NameToNumber("SIG"+s))
	}
}
