// Package errs defines the failure kinds surfaced by every client in this
// module. Callers branch with errors.Is(err, errs.OracleRejected) and
// friends, or errors.As into *errs.Error for the details.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	// ConfigMissing: required configuration was absent at startup.
	ConfigMissing Kind = iota + 1
	// OracleUnavailable: the oracle answered with a non-2xx status or could
	// not be reached.
	OracleUnavailable
	// OracleRejected: the oracle answered but its success flag was false.
	OracleRejected
	// ChainRevert: the node rejected the transaction or it reverted.
	ChainRevert
	// MalformedResponse: a remote payload was missing a key or carried a
	// value that could not be converted.
	MalformedResponse
)

func (k Kind) String() string {
	switch k {
	case ConfigMissing:
		return "config missing"
	case OracleUnavailable:
		return "oracle unavailable"
	case OracleRejected:
		return "oracle rejected"
	case ChainRevert:
		return "chain revert"
	case MalformedResponse:
		return "malformed response"
	default:
		return "unknown"
	}
}

// Error implements error so a bare Kind can be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "muon.uPnl_B".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same Kind as e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func New(kind Kind, op string, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Missing builds a ConfigMissing error listing every missing name.
func Missing(names ...string) error {
	return &Error{Kind: ConfigMissing, Msg: strings.Join(names, ", ")}
}
