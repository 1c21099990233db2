package classifier

import (
	"strconv"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// coerceInts replaces every string-valued field that parses cleanly as an
// optionally-signed base-10 integer with the parsed int. Parse failures are
// silent no-ops — many fields are legitimately non-numeric — and non-string
// values (flags, native timestamps, passthrough metadata) are untouched.
// Document fragments survive unchanged because "{...}" never parses as an
// integer.
func coerceInts(rec *types.Record) {
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(s); err == nil {
			rec.Set(key, n)
		}
	}
}
