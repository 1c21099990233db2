package classifier

import (
	"regexp"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// MarkerCollection is the throwaway collection queried to stamp a marker
// into the profile stream. The marker pattern below matches the profile
// entry that query produces.
const MarkerCollection = "phony_mongoprofile_marker"

// pattern pairs a compiled expression with the record kind it produces.
type pattern struct {
	re   *regexp.Regexp
	kind types.Kind
}

// catalog is the ordered list of recognized operation shapes, tested against
// entry text in priority order: first match wins. Compiled once at startup
// and never mutated, so it is safe to share across goroutines.
//
// Document fragments are captured as greedy `{.*}` bounded by the rest of
// the pattern rather than by brace balancing. A fragment containing a
// literal `}` followed by option-like text can therefore be mis-captured;
// trailing options never look like a second document, so in practice the
// capture ends at the right place.
var catalog = []pattern{
	{regexp.MustCompile(`query (?P<db>[^.]+)\.` + MarkerCollection + `.*\n` +
		`query: \{ \$query: \{ text: "(?P<text>.*)" \} \}`), types.KindMarker},
	{regexp.MustCompile(`query (?P<db>[^.]+)\.\$cmd ntoreturn:(?P<ntoreturn>\d+) ` +
		`command: (?P<command>\{.*\}) (?P<options>.*)`), types.KindCommand},
	{regexp.MustCompile(`query (?P<db>[^.]+)\.(?P<collection>[^ ]+) (?P<options1>.*)\n` +
		`query: (?P<query>\{.*\}) (?P<options2>.*)`), types.KindQuery},
	{regexp.MustCompile(`insert (?P<db>[^.]+)\.(?P<collection>[^ ]+)`), types.KindInsert},
	{regexp.MustCompile(`update (?P<db>[^.]+)\.(?P<collection>[^ ]+)  ` +
		`query: (?P<query>\{.*\})(?P<options>.*)`), types.KindUpdate},
	{regexp.MustCompile(`remove (?P<db>[^.]+)\.(?P<collection>[^ ]+)  ` +
		`query: (?P<query>\{.*\})(?P<options>.*)`), types.KindRemove},
	{regexp.MustCompile(`getmore (?P<db>[^.]+)\.(?P<collection>[^ ]+) ` +
		`(?P<options1>.*?) getMore: (?P<query>\{.*\})(?P<options2>.*)`), types.KindGetMore},
}
