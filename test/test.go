package test

import (
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func ConfigLogging() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

type CallWatcher struct {
	mu            sync.Mutex
	functionCalls map[string][][]interface{}
}

func NewCallWatcher() *CallWatcher {
	return &CallWatcher{functionCalls: make(map[string][][]interface{})}
}

// GetCall returns the arguments of every call to funcName. The name may be
// the short method name ("Commit") or the fully qualified runtime name.
func (w *CallWatcher) GetCall(funcName string) [][]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	var calls [][]interface{}
	for name, c := range w.functionCalls {
		if matches(name, funcName) {
			calls = append(calls, c...)
		}
	}
	return calls
}

func (w *CallWatcher) GetCallCount(funcName string) int {
	return len(w.GetCall(funcName))
}

func (w *CallWatcher) VerifyCount(funcName string, want int, t *testing.T) {
	t.Helper()
	if got := w.GetCallCount(funcName); got != want {
		t.Errorf("unexpected call count for %s got=%d want=%d", funcName, got, want)
	}
}

func (w *CallWatcher) AddCall(args ...interface{}) {
	pc := make([]uintptr, 15)
	n := runtime.Callers(2, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	funcName := frame.Function

	w.mu.Lock()
	defer w.mu.Unlock()
	calls := w.functionCalls[funcName]
	w.functionCalls[funcName] = append(calls, args)
}

func matches(fullName, funcName string) bool {
	return fullName == funcName || strings.HasSuffix(fullName, "."+funcName)
}
