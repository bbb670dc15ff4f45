package notifier

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	maxBacktraceFrames = 64
	maxCodeHunkFrames  = 10
	codeHunkRadius     = 2
	projectRoot        = "/PROJECT_ROOT"
)

// pkgPrefix is the function name prefix of every function in this package.
var pkgPrefix = reflect.TypeOf((*Notifier)(nil)).Elem().PkgPath() + "."

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// errorStack returns the most relevant stack carried by err:
// a panic stack first, then the deepest pkg/errors stack in the chain.
func errorStack(err error) []uintptr {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe.stack
	}

	var found errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			found = st.StackTrace()
		}
	}
	if found == nil {
		return nil
	}

	pcs := make([]uintptr, len(found))
	for i, f := range found {
		pcs[i] = uintptr(f)
	}
	return pcs
}

// callerStack captures current stack without the leading frames of this package.
func callerStack() []uintptr {
	pcs := make([]uintptr, maxBacktraceFrames)
	n := runtime.Callers(2, pcs)
	pcs = pcs[:n]
	for len(pcs) > 0 && strings.HasPrefix(funcName(pcs[0]), pkgPrefix) {
		pcs = pcs[1:]
	}
	return pcs
}

// errorType returns type name of the root cause of err.
func errorType(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		if cause, ok := pe.Value.(error); ok {
			return fmt.Sprintf("%T", errors.Cause(cause))
		}
		return fmt.Sprintf("%T", pe.Value)
	}
	return fmt.Sprintf("%T", errors.Cause(err))
}

// backtraceBuilder resolves program counters into notice frames.
type backtraceBuilder struct {
	rootDirectory string
	codeCache     *lru.Cache
}

func newBacktraceBuilder(rootDirectory string, cacheSize int) (*backtraceBuilder, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating lru cache for code hunks")
	}

	return &backtraceBuilder{
		rootDirectory: rootDirectory,
		codeCache:     cache,
	}, nil
}

func (b *backtraceBuilder) build(pcs []uintptr) []StackFrame {
	if len(pcs) > maxBacktraceFrames {
		pcs = pcs[:maxBacktraceFrames]
	}

	res := make([]StackFrame, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" || frame.File != "" {
			sf := StackFrame{
				File: b.file(frame.File),
				Line: frame.Line,
				Func: frame.Function,
			}
			if len(res) < maxCodeHunkFrames {
				sf.Code = b.codeHunk(frame.File, frame.Line)
			}
			res = append(res, sf)
		}
		if !more {
			break
		}
	}

	return res
}

func (b *backtraceBuilder) file(path string) string {
	if b.rootDirectory != "" && strings.HasPrefix(path, b.rootDirectory) {
		return projectRoot + strings.TrimPrefix(path, b.rootDirectory)
	}
	return path
}

func (b *backtraceBuilder) codeHunk(path string, line int) map[int]string {
	lines := b.fileLines(path)
	if len(lines) == 0 || line <= 0 || line > len(lines) {
		return nil
	}

	start := line - codeHunkRadius
	if start < 1 {
		start = 1
	}
	end := line + codeHunkRadius
	if end > len(lines) {
		end = len(lines)
	}

	hunk := make(map[int]string, end-start+1)
	for i := start; i <= end; i++ {
		hunk[i] = lines[i-1]
	}
	return hunk
}

func (b *backtraceBuilder) fileLines(path string) []string {
	if path == "" {
		return nil
	}
	if v, ok := b.codeCache.Get(path); ok {
		return v.([]string)
	}

	var lines []string
	if data, err := os.ReadFile(path); err == nil {
		lines = strings.Split(string(data), "\n")
	}
	// Unreadable files are cached too, as empty.
	b.codeCache.Add(path, lines)

	return lines
}
