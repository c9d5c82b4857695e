// Package bind implements the runtime-agnostic core of mirrorbind: the
// wrapper/lifetime model that lets a scripting runtime co-own a native
// instance, the call-time error taxonomy, and the generic dispatch
// trampoline shared by every runtime backend.
package bind

import (
	"fmt"

	"github.com/chazu/mirrorbind/descriptor"
)

// ErrorKind tags the call-time failure classes. Build-time failures are
// *descriptor.UnsupportedTypeError; everything that can happen during a call
// is one of these four.
type ErrorKind int

const (
	// ArityMismatch: the caller supplied the wrong number of arguments.
	ArityMismatch ErrorKind = iota
	// ArgumentConversion: an argument's dynamic type does not match the
	// expected native category.
	ArgumentConversion
	// InvalidObject: access on a released wrapper.
	InvalidObject
	// NativeInvocation: the native method itself failed or panicked.
	NativeInvocation
)

func (k ErrorKind) String() string {
	switch k {
	case ArityMismatch:
		return "ArityMismatchError"
	case ArgumentConversion:
		return "ArgumentConversionError"
	case InvalidObject:
		return "InvalidObjectError"
	case NativeInvocation:
		return "NativeInvocationError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the single call-time error value. Backends translate it 1:1 into
// the runtime's error-signaling mechanism, keeping the kind machine-checkable
// and the message human-readable.
type Error struct {
	Kind     ErrorKind
	Index    int    // argument index, for ArgumentConversion
	Expected string // expected category, for ArgumentConversion
	msg      string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.msg
}

// ArityError reports a call with the wrong argument count.
func ArityError(want, got int) *Error {
	return &Error{
		Kind: ArityMismatch,
		msg:  fmt.Sprintf("expected %d arguments, got %d", want, got),
	}
}

// ConversionError reports an argument whose runtime type did not match the
// expected category. index is zero-based.
func ConversionError(index int, expected descriptor.Category, cause error) *Error {
	msg := fmt.Sprintf("argument %d: expected %s", index, expected)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{
		Kind:     ArgumentConversion,
		Index:    index,
		Expected: expected.String(),
		msg:      msg,
	}
}

// ValueError reports a single-value conversion failure outside an argument
// list (property writes, sequence elements, record fields).
func ValueError(expected descriptor.Category, got string) *Error {
	return &Error{
		Kind:     ArgumentConversion,
		Expected: expected.String(),
		msg:      fmt.Sprintf("expected %s, got %s", expected, got),
	}
}

// InvalidObjectErr reports access on a released wrapper.
func InvalidObjectErr(class string) *Error {
	return &Error{
		Kind: InvalidObject,
		msg:  fmt.Sprintf("%s instance has been released", class),
	}
}

// InvocationError wraps a failure raised by the native method itself,
// preserving the original message.
func InvocationError(cause any) *Error {
	return &Error{
		Kind: NativeInvocation,
		msg:  fmt.Sprint(cause),
	}
}
