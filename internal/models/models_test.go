package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/eventlog/internal/event"
)

func testEvent() event.Event {
	var e event.Event
	e.ID[0] = 0x01
	e.PubKey[0] = 0x02
	e.Sig[0] = 0x03
	e.CreatedAt = 1700000000
	e.Kind = 1
	e.Content = "note"
	e.Tags = []event.Tag{
		{"e", "abc", "wss://relay.example.com"},
		{"p", "alice"},
		{"t"},
		{"", "nameless"},
		{"empty", ""},
		{},
		{"p", "bob"},
	}
	return e
}

func TestExtractTagsSkipsUnindexableTags(t *testing.T) {
	e := testEvent()

	rows := ExtractTags(e)

	require.Equal(t, []TagRow{
		{Tag: "e", TagValue: "abc", EventID: e.ID.Bytes()},
		{Tag: "p", TagValue: "alice", EventID: e.ID.Bytes()},
		{Tag: "p", TagValue: "bob", EventID: e.ID.Bytes()},
	}, rows)
}

func TestExtractTagsWithoutTags(t *testing.T) {
	e := testEvent()
	e.Tags = nil

	assert.Empty(t, ExtractTags(e))
}

func TestFromEvent(t *testing.T) {
	e := testEvent()

	rec := FromEvent(e)

	assert.Equal(t, e.ID.Bytes(), rec.Event.ID)
	assert.Equal(t, e.PubKey.Bytes(), rec.Event.PubKey)
	assert.Equal(t, int64(1700000000), rec.Event.CreatedAt)
	assert.Equal(t, int64(1), rec.Event.Kind)
	assert.False(t, rec.Event.Deleted)
	assert.Len(t, rec.Tags, 3)

	decoded, err := rec.Event.Decode()
	require.NoError(t, err)
	require.Equal(t, e, decoded)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "events", EventRow{}.TableName())
	assert.Equal(t, "event_tags", TagRow{}.TableName())
}
