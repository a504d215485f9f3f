// Package nlog is a minimal leveled logger in the style of aistore's cmn/nlog:
// package-level functions, no structured sink, a verbosity gate for hot paths.
package nlog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// verbosity is a global knob checked by FastV; tests and callers bump it
// instead of wiring a logger through every component.
var verbosity int32

func SetVerbosity(v int) { atomic.StoreInt32(&verbosity, int32(v)) }

// FastV reports whether module-level tracing at the given level is enabled.
// The module argument is accepted (and ignored beyond presence) to mirror
// the teacher's per-module verbosity gates (cos.SmoduleMirror and friends)
// without reimplementing its module registry.
func FastV(level int, module string) bool {
	_ = module
	return int32(level) <= atomic.LoadInt32(&verbosity)
}

func stamp() string { return time.Now().Format("15:04:05.000000") }

func Infoln(v ...any) {
	fmt.Fprintln(os.Stderr, append([]any{stamp(), "I"}, v...)...)
}

func Infof(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "%s I "+format+"\n", append([]any{stamp()}, v...)...)
}

func Warningln(v ...any) {
	fmt.Fprintln(os.Stderr, append([]any{stamp(), "W"}, v...)...)
}

func Warningf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "%s W "+format+"\n", append([]any{stamp()}, v...)...)
}

func Errorln(v ...any) {
	fmt.Fprintln(os.Stderr, append([]any{stamp(), "E"}, v...)...)
}

func Errorf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "%s E "+format+"\n", append([]any{stamp()}, v...)...)
}
