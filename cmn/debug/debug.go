// Package debug provides assertions that are checked only when the
// PDIST_DEBUG environment variable is set at startup, mirroring aistore's cmn/debug: cheap no-ops in production builds,
// loud panics when chasing a protocol bug in development.
package debug

import (
	"fmt"
	"os"
)

var enabled = os.Getenv("PDIST_DEBUG") != ""

func Enabled() bool { return enabled }

func Assert(cond bool) {
	if enabled && !cond {
		panic("assertion failed")
	}
}

func Assertf(cond bool, format string, args ...any) {
	if enabled && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

func AssertNoErr(err error) {
	if enabled && err != nil {
		panic(err)
	}
}
