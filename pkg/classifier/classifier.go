// Package classifier turns raw MongoDB profile entries into typed records.
//
// Classification is a pure function over the entry text: the entry is tested
// against an ordered catalog of operation patterns, named capture groups
// become record fields, trailing option fragments are expanded into
// key:value pairs, and numeric-looking string fields are coerced to ints.
// Entries matching no pattern come back as unknown-kind records rather than
// errors; downstream consumers treat those as just another variant.
package classifier

import (
	"errors"
	"sort"
	"strings"

	"github.com/supporttools/mongo-profiler/pkg/types"
)

// ErrMalformedEntry is returned alongside the unknown-kind record built for
// an entry with no info text. Callers log and skip; it is never fatal.
var ErrMalformedEntry = errors.New("profile entry has no info text")

// Classify builds exactly one record for the given profile entry.
//
// The returned record is always non-nil. When the entry carries no info text
// the record is unknown-kind with only the original entry fields, and
// ErrMalformedEntry is returned so the caller can warn and skip it.
func Classify(entry types.RawEntry) (*types.Record, error) {
	if entry.Info == "" {
		rec := newRecord(types.KindUnknown, entry)
		coerceInts(rec)
		return rec, ErrMalformedEntry
	}

	for _, p := range catalog {
		m := p.re.FindStringSubmatch(entry.Info)
		if m == nil {
			continue
		}
		rec := newRecord(p.kind, entry)
		for i, name := range p.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			rec.Set(name, m[i])
		}
		expandOptions(rec)
		coerceInts(rec)
		return rec, nil
	}

	rec := newRecord(types.KindUnknown, entry)
	coerceInts(rec)
	return rec, nil
}

// newRecord creates a record of the given kind carrying the original entry
// fields: info text, timestamp, then passthrough metadata in sorted key
// order so field order is stable.
func newRecord(kind types.Kind, entry types.RawEntry) *types.Record {
	rec := types.NewRecord(kind)
	if entry.Info != "" {
		rec.Set("info", entry.Info)
	}
	if entry.HasTS {
		rec.Set("ts", entry.TS)
	}
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := rec.Get(k); !ok {
			rec.Set(k, entry.Fields[k])
		}
	}
	return rec
}

// expandOptions replaces every options* field with the key:value pairs
// parsed from its text. Some patterns capture options twice; fragments are
// expanded in field order, so pairs from a later fragment override pairs
// from an earlier one on key collision.
func expandOptions(rec *types.Record) {
	for _, key := range rec.Keys() {
		if !strings.HasPrefix(key, "options") {
			continue
		}
		v, _ := rec.Get(key)
		rec.Delete(key)
		fragment, ok := v.(string)
		if !ok {
			continue
		}
		parsed := ParseOptions(fragment)
		for _, k := range parsed.Keys() {
			pv, _ := parsed.Get(k)
			rec.Set(k, pv)
		}
	}
}
