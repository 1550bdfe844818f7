// Package kernelerror defines the typed error catalogue used throughout the
// kernel. Every syscall-facing failure originates as one of these values;
// dispatch (ksyscall) collapses them to the -1/256 contract of the real
// syscall ABI, but internally and in tests they carry enough context (pid,
// fd, name) to say exactly what went wrong.
package kernelerror

import (
	"fmt"
	"strings"
)

// Values supplies the formatting arguments for a curated error.
type Values []interface{}

// curated is an error built from a message template shared by every
// instance of a given failure, so that callers can test against the
// template (Is/Has) without caring about the specific values involved.
type curated struct {
	message string
	values  Values
}

// New creates a new curated error from one of the message templates below.
func New(message string, values ...interface{}) error {
	return curated{message: message, values: values}
}

// Error returns the normalised error message, de-duplicating adjacent parts
// that arise from wrapping one curated error inside another.
func (e curated) Error() string {
	s := fmt.Errorf(e.message, e.values...).Error()

	p := strings.SplitN(s, ": ", 3)
	if len(p) > 1 && p[0] == p[1] {
		return strings.Join(p[1:], ": ")
	}
	return strings.Join(p, ": ")
}

// Head returns the template a curated error was built from, or the plain
// error message if err isn't one of ours.
func Head(err error) string {
	if e, ok := err.(curated); ok {
		return e.message
	}
	return err.Error()
}

// IsAny reports whether err was built by this package.
func IsAny(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(curated)
	return ok
}

// Is reports whether err's template is exactly head.
func Is(err error, head string) bool {
	if err == nil {
		return false
	}
	e, ok := err.(curated)
	return ok && e.message == head
}

// Has reports whether head appears anywhere in err's chain of wrapped
// curated values.
func Has(err error, head string) bool {
	if !IsAny(err) {
		return false
	}
	if Is(err, head) {
		return true
	}
	for _, v := range err.(curated).values {
		if e, ok := v.(curated); ok && Has(e, head) {
			return true
		}
	}
	return false
}

// Message templates, one per §7 error kind. Values is the set of %v slots
// each template expects.
const (
	NoFreeProcessSlot = "no free process slot"
	FileNotFound      = "file not found: %v"
	NotELF            = "not an ELF-like executable: %v"
	BadFileDescriptor = "bad file descriptor: %v"
	NoFreeDescriptor  = "no free file descriptor"
	ReadOnly          = "read-only: %v"
	BadInode          = "bad inode: %v"
	BadFrequency      = "unsupported RTC frequency: %v"
	BadArgument       = "bad argument: %v"
	OutOfUserWindow   = "pointer outside user program window: %v"
	Unimplemented     = "syscall not implemented: %v"
	UserFault         = "fatal exception in user mode: %v"
)
