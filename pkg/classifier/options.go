package classifier

import (
	"strings"

	"github.com/Velocidex/ordereddict"
)

// ParseOptions parses a trailing options fragment — whitespace-separated
// tokens like "ntoreturn:5 reslen:62 exhaust" — into an ordered key:value
// mapping. A token splits on its first colon only, so values may themselves
// contain colons; a token without a colon is a bare flag and maps to true.
// An empty fragment yields an empty mapping.
func ParseOptions(fragment string) *ordereddict.Dict {
	opts := ordereddict.NewDict()
	for _, token := range strings.Fields(strings.TrimSpace(fragment)) {
		if k, v, found := strings.Cut(token, ":"); found {
			opts.Set(k, v)
		} else {
			opts.Set(token, true)
		}
	}
	return opts
}
