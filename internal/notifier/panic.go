package notifier

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// PanicError carries a recovered panic value together with the stack of the panicking goroutine.
type PanicError struct {
	Value interface{}
	stack []uintptr
}

// NewPanicError wraps a value returned by recover.
//
// It must be called from the deferred function that recovered the panic,
// otherwise the frames that panicked are already gone from the stack.
// Wrapping an existing *PanicError returns it unchanged.
func NewPanicError(v interface{}) *PanicError {
	if pe, ok := v.(*PanicError); ok {
		return pe
	}

	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)

	return &PanicError{
		Value: v,
		stack: trimPanicFrames(pcs[:n]),
	}
}

// Error implements error interface.
func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap returns panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// StackTrace returns stack starting at the frame that panicked.
func (e *PanicError) StackTrace() errors.StackTrace {
	st := make(errors.StackTrace, len(e.stack))
	for i, pc := range e.stack {
		st[i] = errors.Frame(pc)
	}
	return st
}

// trimPanicFrames drops recover machinery above the deepest runtime.gopanic,
// then any runtime frames directly below it (sigpanic, panicmem...).
func trimPanicFrames(pcs []uintptr) []uintptr {
	cut := -1
	for i, pc := range pcs {
		if funcName(pc) == "runtime.gopanic" {
			cut = i
		}
	}
	if cut < 0 {
		return pcs
	}

	pcs = pcs[cut+1:]
	for len(pcs) > 0 && strings.HasPrefix(funcName(pcs[0]), "runtime.") {
		pcs = pcs[1:]
	}

	return pcs
}

func funcName(pc uintptr) string {
	fn := runtime.FuncForPC(pc - 1)
	if fn == nil {
		return ""
	}
	return fn.Name()
}
