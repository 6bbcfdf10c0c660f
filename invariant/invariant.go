// Package invariant provides a debug-only assertion helper for programmer
// invariants (a client transitioning from a list it is not on, a resource
// counter driven negative). It mirrors the source's assert(), which is
// compiled out of release builds: outside of a debug build the check still
// runs but only logs, never panics, so a violated invariant degrades a
// production pool instead of crashing it.
package invariant

import (
	"fmt"
	"os"
)

// Debug controls whether Assert panics (true) or only reports (false) on a
// violated invariant. Initialized at startup from the CONNPOOL_DEBUG_ASSERT
// environment variable ("1" enables it), or set directly by tests that want
// hard failures.
var Debug = os.Getenv("CONNPOOL_DEBUG_ASSERT") == "1"

// Assert panics with msg (formatted like fmt.Sprintf) when cond is false and
// Debug is enabled; otherwise it writes the violation to stderr and returns.
func Assert(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if Debug {
		panic("invariant violated: " + msg)
	}
	fmt.Fprintln(os.Stderr, "invariant violated (continuing, set CONNPOOL_DEBUG_ASSERT=1 to panic):", msg)
}
