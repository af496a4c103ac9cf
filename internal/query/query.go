// Package query compiles event filters into parameterized SQL against the
// events/event_tags schema. Filter values are always bound as arguments.
package query

import (
	"example.com/backstage/services/eventlog/internal/event"
)

const fromLiveEvents = " FROM events LEFT JOIN event_tags ON events.id = event_tags.event_id WHERE events.deleted = FALSE"

// Base queries that Compile extends
const (
	SelectEvents   = "SELECT DISTINCT events.*" + fromLiveEvents
	SelectEventIDs = "SELECT DISTINCT events.id, events.created_at" + fromLiveEvents
)

// Count wraps a compiled id query so that it returns the number of distinct
// matching events
func Count(idQuery string) string {
	return "SELECT COUNT(*) FROM (" + idQuery + ") AS matched"
}

// Compile appends the constraints of f to base.
//
// An entirely empty filter returns base unchanged with no arguments.
// Otherwise one AND clause is emitted per present field in a fixed order
// (ids, authors, kinds, since, until, then tag name and tag values for each
// tag constraint in ascending name order), followed by newest-first ordering
// and, when set, a limit bound to the final argument.
func Compile(base string, f event.Filter) (string, []any) {
	if f.IsEmpty() {
		return base, nil
	}

	b := NewBuilder(base)

	if f.IDs != nil {
		ids := make([][]byte, 0, len(f.IDs))
		for _, id := range f.IDs {
			ids = append(ids, id.Bytes())
		}
		b.And("events.id = ANY (?)", ids)
	}

	if f.Authors != nil {
		authors := make([][]byte, 0, len(f.Authors))
		for _, pk := range f.Authors {
			authors = append(authors, pk.Bytes())
		}
		b.And("events.pubkey = ANY (?)", authors)
	}

	if f.Kinds != nil {
		kinds := make([]int64, 0, len(f.Kinds))
		for _, k := range f.Kinds {
			kinds = append(kinds, int64(k))
		}
		b.And("events.kind = ANY (?)", kinds)
	}

	if f.Since != nil {
		b.And("events.created_at >= ?", int64(*f.Since))
	}

	if f.Until != nil {
		b.And("events.created_at <= ?", int64(*f.Until))
	}

	for _, name := range f.TagNames() {
		values := append(make([]string, 0, len(f.Tags[name])), f.Tags[name]...)
		b.And("event_tags.tag = ?", name)
		b.And("event_tags.tag_value = ANY (?)", values)
	}

	b.Append(" ORDER BY events.created_at DESC")

	if f.Limit != nil {
		b.Bind(" LIMIT ?", int64(*f.Limit))
	}

	return b.Build()
}
