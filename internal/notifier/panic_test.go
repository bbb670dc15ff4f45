package notifier

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func panicking() {
	panic("boom")
}

//go:noinline
func repanicking() {
	defer func() {
		if v := recover(); v != nil {
			panic(v)
		}
	}()
	panicking()
}

//go:noinline
func nilDereferencing() {
	var m *struct{ v int }
	m.v++
}

func recoverPanic(fn func()) (pe *PanicError) {
	defer func() {
		if v := recover(); v != nil {
			pe = NewPanicError(v)
		}
	}()
	fn()
	return nil
}

func topFunction(pcs []uintptr) string {
	frame, _ := runtime.CallersFrames(pcs).Next()
	return frame.Function
}

func TestNewPanicError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fn          func()
		wantTop     string
		wantMessage string
	}{
		{
			name:        "explicit panic",
			fn:          panicking,
			wantTop:     pkgPrefix + "panicking",
			wantMessage: "boom",
		},
		{
			name:        "repanic keeps origin",
			fn:          repanicking,
			wantTop:     pkgPrefix + "panicking",
			wantMessage: "boom",
		},
		{
			name:        "runtime error",
			fn:          nilDereferencing,
			wantTop:     pkgPrefix + "nilDereferencing",
			wantMessage: "runtime error: invalid memory address or nil pointer dereference",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pe := recoverPanic(tt.fn)
			require.NotNil(t, pe)
			assert.Equal(t, tt.wantTop, topFunction(pe.stack))
			assert.Equal(t, tt.wantMessage, pe.Error())
			assert.Len(t, pe.StackTrace(), len(pe.stack))
		})
	}
}

func TestNewPanicErrorKeepsWrapped(t *testing.T) {
	t.Parallel()

	pe := recoverPanic(panicking)
	require.NotNil(t, pe)

	again := recoverPanic(func() {
		panic(pe)
	})
	assert.Same(t, pe, again)
}

func TestTrimPanicFramesWithoutPanic(t *testing.T) {
	t.Parallel()

	pcs := make([]uintptr, 32)
	n := runtime.Callers(1, pcs)
	pcs = pcs[:n]

	assert.Equal(t, pcs, trimPanicFrames(pcs))
	assert.True(t, strings.HasSuffix(topFunction(pcs), "TestTrimPanicFramesWithoutPanic"))
}
