package log

import (
	"fmt"
	"strings"
)

// PoolLogf returns a function for pmemlog.Options.Logf.
// Every pool lifecycle message (create, open, close) is recorded as
// a "pmemlog" event. It also goes to the regular log, unless verboseOnly
// is set and Verbose is false.
func PoolLogf(verboseOnly bool) func(format string, args ...any) {
	return func(format string, args ...any) {
		s := fmt.Sprintf(format, args...)
		if !verboseOnly || Verbose {
			Logf("%s", s)
		}
		msg := strings.TrimSpace(strings.TrimPrefix(s, "pmemlog: "))
		Event("pmemlog", "msg", msg)
	}
}
