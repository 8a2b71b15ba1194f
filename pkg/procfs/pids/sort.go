// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pids

import (
	hversion "github.com/hashicorp/go-version"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/antimetal/procfs/pkg/result"
)

// localeCollator orders string items (command, cgroup path, systemd unit
// names) the way a locale-aware comparator would rather than a raw byte
// comparison, the ordering spec §4.7 describes as "a comparator chosen by
// the item's type" for non-numeric items.
var localeCollator = collate.New(language.English)

func stringCollationComparator(a, b *result.Result[Item]) int {
	return localeCollator.CompareString(a.String(), b.String())
}

// ttyNameComparator treats a tty name's trailing digits as a version
// component so "tty2" sorts before "tty10"; plain byte comparison would
// order them the other way since "1" < "2" lexically.
func ttyNameComparator(a, b *result.Result[Item]) int {
	as, bs := a.String(), b.String()
	pa, na := splitTrailingDigits(as)
	pb, nb := splitTrailingDigits(bs)
	if pa != pb {
		return localeCollator.CompareString(pa, pb)
	}
	va, erra := hversion.NewVersion(na)
	vb, errb := hversion.NewVersion(nb)
	if erra != nil || errb != nil || na == "" || nb == "" {
		return localeCollator.CompareString(as, bs)
	}
	return va.Compare(vb)
}

func splitTrailingDigits(s string) (prefix, digits string) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[:i], s[i:]
}

// comparatorFor returns the registered comparator for item, or nil to let
// result.Sort derive one from the stored Kind (spec §4.7's default for
// plain numeric items).
func comparatorFor(item Item) result.Comparator[Item] {
	switch item {
	case TtyName:
		return ttyNameComparator
	case Cmd, Cgroup, CgName, SdUnit, SdSlice, SdMach, LxcName:
		return stringCollationComparator
	default:
		return nil
	}
}

// Sort reorders stacks stably by the result at item (spec §4.1's "sort").
func Sort(stacks []*Stack, item Item, order int) ([]*Stack, error) {
	return result.Sort(stacks, item, order, comparatorFor(item))
}
