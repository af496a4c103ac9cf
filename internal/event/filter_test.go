package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterEvent() Event {
	var e Event
	e.ID[0] = 1
	e.PubKey[0] = 2
	e.CreatedAt = 150
	e.Kind = 7
	e.Tags = []Tag{{"p", "alice"}, {"t", "go"}, {"x"}}
	return e
}

func TestNewFilterIsEmpty(t *testing.T) {
	require.True(t, NewFilter().IsEmpty())
	require.False(t, NewFilter().WithLimit(1).IsEmpty())
	require.False(t, NewFilter().WithIDs().IsEmpty())
}

func TestFilterBuildersDoNotAlias(t *testing.T) {
	base := NewFilter().WithTag("p", "alice")
	derived := base.WithTag("t", "go")

	assert.Len(t, base.Tags, 1)
	assert.Len(t, derived.Tags, 2)

	kinds := []Kind{1, 2}
	f := NewFilter().WithKinds(kinds...)
	kinds[0] = 9
	assert.Equal(t, []Kind{1, 2}, f.Kinds)
}

func TestFilterEmptySetIsPresent(t *testing.T) {
	f := NewFilter().WithIDs()

	require.NotNil(t, f.IDs)
	require.Empty(t, f.IDs)
	require.False(t, f.Match(filterEvent()))
}

func TestWithDefaultLimit(t *testing.T) {
	f := NewFilter().WithDefaultLimit(10)
	require.NotNil(t, f.Limit)
	assert.Equal(t, 10, *f.Limit)

	f = NewFilter().WithLimit(3).WithDefaultLimit(10)
	assert.Equal(t, 3, *f.Limit)
}

func TestTagNamesSorted(t *testing.T) {
	f := NewFilter().WithTag("p").WithTag("e").WithTag("t")

	assert.Equal(t, []string{"e", "p", "t"}, f.TagNames())
}

func TestFilterMatch(t *testing.T) {
	e := filterEvent()
	other := e.ID
	other[0] = 9

	cases := []struct {
		name   string
		filter Filter
		match  bool
	}{
		{"empty", NewFilter(), true},
		{"id", NewFilter().WithIDs(e.ID), true},
		{"other id", NewFilter().WithIDs(other), false},
		{"author", NewFilter().WithAuthors(e.PubKey), true},
		{"kind", NewFilter().WithKinds(1, 7), true},
		{"wrong kind", NewFilter().WithKinds(1), false},
		{"since inclusive", NewFilter().WithSince(150), true},
		{"since after", NewFilter().WithSince(151), false},
		{"until inclusive", NewFilter().WithUntil(150), true},
		{"until before", NewFilter().WithUntil(149), false},
		{"tag", NewFilter().WithTag("p", "bob", "alice"), true},
		{"tag wrong value", NewFilter().WithTag("p", "bob"), false},
		{"content-less tag", NewFilter().WithTag("x", ""), false},
		{"two tags", NewFilter().WithTag("p", "alice").WithTag("t", "go"), true},
		{"limit ignored", NewFilter().WithLimit(0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.match, tc.filter.Match(e))
		})
	}
}
