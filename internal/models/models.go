package models

import (
	"example.com/backstage/services/eventlog/internal/codec"
	"example.com/backstage/services/eventlog/internal/event"
)

// Table names
const (
	EventsTable    = "events"
	EventTagsTable = "event_tags"
)

// EventRow is the persisted form of an event. Only Deleted ever changes
// after insertion.
type EventRow struct {
	ID        []byte `gorm:"column:id;primaryKey"`
	PubKey    []byte `gorm:"column:pubkey"`
	CreatedAt int64  `gorm:"column:created_at"`
	Kind      int64  `gorm:"column:kind"`
	Payload   []byte `gorm:"column:payload"`
	Deleted   bool   `gorm:"column:deleted"`
}

// TableName overrides the table name used by GORM
func (EventRow) TableName() string {
	return EventsTable
}

// TagRow is one indexable tag of an event
type TagRow struct {
	Tag      string `gorm:"column:tag"`
	TagValue string `gorm:"column:tag_value"`
	EventID  []byte `gorm:"column:event_id"`
}

// TableName overrides the table name used by GORM
func (TagRow) TableName() string {
	return EventTagsTable
}

// Record groups an event row with the tag rows saved alongside it
type Record struct {
	Event EventRow
	Tags  []TagRow
}

// FromEvent builds the rows persisted for e. The payload is the full encoded
// event; tags without a name or without content are not indexed.
func FromEvent(e event.Event) Record {
	return Record{
		Event: EventRow{
			ID:        e.ID.Bytes(),
			PubKey:    e.PubKey.Bytes(),
			CreatedAt: int64(e.CreatedAt),
			Kind:      int64(e.Kind),
			Payload:   codec.Encode(e),
			Deleted:   false,
		},
		Tags: ExtractTags(e),
	}
}

// ExtractTags returns one TagRow per indexable tag of e, in tag order
func ExtractTags(e event.Event) []TagRow {
	var rows []TagRow
	for _, tag := range e.Tags {
		name := tag.Name()
		content, ok := tag.Content()
		if name == "" || !ok || content == "" {
			continue
		}
		rows = append(rows, TagRow{
			Tag:      name,
			TagValue: content,
			EventID:  e.ID.Bytes(),
		})
	}
	return rows
}

// Decode reconstructs the logical event from the stored payload
func (r EventRow) Decode() (event.Event, error) {
	return codec.Decode(r.Payload)
}
