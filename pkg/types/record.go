package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/Velocidex/ordereddict"
)

// Kind identifies which operation shape a profile entry matched.
type Kind string

const (
	// KindCommand is a database command run through db.$cmd.
	KindCommand Kind = "command"

	// KindQuery is a plain collection query.
	KindQuery Kind = "query"

	// KindMarker is a synthetic entry inserted to label a point in time.
	KindMarker Kind = "marker"

	// KindInsert is a document insert.
	KindInsert Kind = "insert"

	// KindUpdate is a document update.
	KindUpdate Kind = "update"

	// KindRemove is a document remove.
	KindRemove Kind = "remove"

	// KindGetMore is a cursor continuation for an earlier query.
	KindGetMore Kind = "getmore"

	// KindUnknown is assigned when no pattern matched the entry text.
	KindUnknown Kind = "unknown"
)

// shortInfoExcluded lists the structural fields left out of ShortInfo output.
var shortInfoExcluded = map[string]bool{
	"command":    true,
	"info":       true,
	"collection": true,
	"query":      true,
	"db":         true,
	"ts":         true,
}

// Record is one classified profile entry: a kind tag plus an ordered bag of
// named fields. Field values are strings, ints, bools, native timestamps, or
// passthrough metadata from the raw entry. Fields keep insertion order so
// renderings are deterministic and mirror extraction order.
//
// A Record is built once during classification and never mutated afterwards.
type Record struct {
	kind   Kind
	fields *ordereddict.Dict
}

// NewRecord creates an empty record of the given kind.
func NewRecord(kind Kind) *Record {
	return &Record{
		kind:   kind,
		fields: ordereddict.NewDict(),
	}
}

// Kind returns the record's operation kind.
func (r *Record) Kind() Kind {
	return r.kind
}

// Set stores a field value. A new key is appended; an existing key is
// overwritten in place, keeping its position, so later option fragments
// override earlier ones without reordering the record.
func (r *Record) Set(key string, value any) {
	// Dict.Set moves an existing key to the end of the order; Update is
	// the order-preserving overwrite and appends when the key is new.
	r.fields.Update(key, value)
}

// Get returns a field value and whether it is present.
func (r *Record) Get(key string) (any, bool) {
	return r.fields.Get(key)
}

// Delete removes a field if present.
func (r *Record) Delete(key string) {
	r.fields.Delete(key)
}

// Keys returns the field names in insertion order. The slice is a snapshot:
// Dict.Keys aliases the dict's internal key slice, so callers that mutate
// the record while iterating need a detached copy.
func (r *Record) Keys() []string {
	keys := r.fields.Keys()
	snapshot := make([]string, len(keys))
	copy(snapshot, keys)
	return snapshot
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.fields.Len()
}

// Timestamp returns the record's "ts" field when it holds a native timestamp.
func (r *Record) Timestamp() (time.Time, bool) {
	v, ok := r.fields.Get("ts")
	if !ok {
		return time.Time{}, false
	}
	ts, ok := v.(time.Time)
	return ts, ok
}

// TSDiff returns the seconds elapsed since the previous timestamped record,
// when the session harness computed one.
func (r *Record) TSDiff() (float64, bool) {
	v, ok := r.fields.Get("ts_diff")
	if !ok {
		return 0, false
	}
	d, ok := v.(float64)
	return d, ok
}

// str returns a field rendered as a string, or "" when absent.
func (r *Record) str(key string) string {
	v, ok := r.fields.Get(key)
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// Render reconstructs an equivalent shell command string for the record.
// Unknown records render as a plain field dump.
func (r *Record) Render() string {
	switch r.kind {
	case KindCommand:
		return fmt.Sprintf("%s> db.runCommand(%s)", r.str("db"), r.str("command"))
	case KindQuery:
		return fmt.Sprintf("%s> db.%s.find(%s)", r.str("db"), r.str("collection"), r.str("query"))
	case KindMarker:
		return fmt.Sprintf("==== %s ====", r.str("text"))
	case KindInsert:
		return fmt.Sprintf("%s> db.%s.insert({...})", r.str("db"), r.str("collection"))
	case KindUpdate:
		return fmt.Sprintf("%s> db.%s.update(%s, {...})", r.str("db"), r.str("collection"), r.str("query"))
	case KindRemove:
		return fmt.Sprintf("%s> db.%s.remove(%s)", r.str("db"), r.str("collection"), r.str("query"))
	case KindGetMore:
		return fmt.Sprintf("%s> db.%s.find(%s) *getmore", r.str("db"), r.str("collection"), r.str("query"))
	default:
		return r.dump(nil)
	}
}

// ShortInfo renders the record's non-structural fields as space-joined
// key:value pairs, for terse diagnostic display.
func (r *Record) ShortInfo() string {
	return r.dump(shortInfoExcluded)
}

// dump joins key:value pairs in insertion order, skipping excluded keys.
func (r *Record) dump(excluded map[string]bool) string {
	var parts []string
	for _, key := range r.fields.Keys() {
		if excluded[key] {
			continue
		}
		v, _ := r.fields.Get(key)
		parts = append(parts, fmt.Sprintf("%s:%v", key, v))
	}
	return strings.Join(parts, " ")
}
