// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package procerr defines the error taxonomy shared by every provider in
// this module. Every error a provider returns classifies as exactly one
// Kind, so callers that only care about the taxonomy can test with
// errors.Is against the package-level sentinels instead of parsing strings.
package procerr

import (
	stderrors "errors"
	"fmt"
	"os"
)

var (
	As     = stderrors.As
	Is     = stderrors.Is
	Join   = stderrors.Join
	New    = stderrors.New
	Unwrap = stderrors.Unwrap
)

// Kind is one of the error magnitudes from spec.md §7. TransientNotFound is
// deliberately absent: it is suppressed internally by the pids provider and
// never surfaced to a caller.
type Kind int

const (
	// InvalidArgs: null pointers, out-of-range items, unordered/oversize
	// selection sets.
	InvalidArgs Kind = iota + 1
	// OutOfMemory: any allocation failure.
	OutOfMemory
	// PermissionDenied: caller cannot open the required /proc node.
	PermissionDenied
	// ReadFailed: I/O error, truncated read, unexpected EOF, malformed line.
	ReadFailed
	// UnsupportedVersion: /proc/slabinfo major version != 2.
	UnsupportedVersion
)

func (k Kind) String() string {
	switch k {
	case InvalidArgs:
		return "InvalidArgs"
	case OutOfMemory:
		return "OutOfMemory"
	case PermissionDenied:
		return "PermissionDenied"
	case ReadFailed:
		return "ReadFailed"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	default:
		return "Unknown"
	}
}

// Code returns the §6 numeric return convention: a negative magnitude for
// the error's Kind, or 0 if err is nil. Unclassified errors map to
// ReadFailed, the catch-all for I/O failures.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if As(err, &e) {
		return -int(e.Kind)
	}
	return -int(ReadFailed)
}

// Error pairs a Kind with the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, procerr.ErrInvalidArgs) against the sentinels below.
func (e *Error) Is(target error) bool {
	var k *Error
	if As(target, &k) {
		return e.Kind == k.Kind
	}
	return false
}

// Wrap and Newf pair an op and an underlying cause with a Kind.
func Wrap(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// sentinels so callers can errors.Is(err, procerr.ErrInvalidArgs) without
// constructing an *Error themselves.
var (
	ErrInvalidArgs        = &Error{Kind: InvalidArgs, Op: "sentinel"}
	ErrOutOfMemory        = &Error{Kind: OutOfMemory, Op: "sentinel"}
	ErrPermissionDenied   = &Error{Kind: PermissionDenied, Op: "sentinel"}
	ErrReadFailed         = &Error{Kind: ReadFailed, Op: "sentinel"}
	ErrUnsupportedVersion = &Error{Kind: UnsupportedVersion, Op: "sentinel"}
)

// Of classifies an arbitrary error (e.g. from os.Open) into a Kind using
// the standard library's errno-backed predicates.
func Of(op string, err error) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return Wrap(PermissionDenied, op, err)
	}
	return Wrap(ReadFailed, op, err)
}
