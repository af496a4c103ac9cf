// Package codec encodes events into the opaque payload stored alongside each
// event row, and decodes payloads back into events.
//
// The payload is a FlatBuffers table:
//
//	table Event {
//	  id:[ubyte];
//	  pubkey:[ubyte];
//	  created_at:ulong;
//	  kind:ushort;
//	  tags:[TagValues];
//	  content:string;
//	  sig:[ubyte];
//	}
//	table TagValues { values:[string]; }
//
// Field slots are part of the persisted format and must not be reordered.
package codec

import (
	"fmt"
	"sync"

	flatbuffers "github.com/google/flatbuffers/go"

	"example.com/backstage/services/eventlog/internal/event"
)

const (
	slotID = iota
	slotPubKey
	slotCreatedAt
	slotKind
	slotTags
	slotContent
	slotSig
	eventFieldCount
)

const (
	slotTagValues = iota
	tagFieldCount
)

const initialBuilderSize = 1024

// DecodeError reports a payload that could not be parsed into an event
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode event payload: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type lockedBuilder struct {
	mu sync.Mutex
	b  *flatbuffers.Builder
}

var sharedBuilder = sync.OnceValue(func() *lockedBuilder {
	return &lockedBuilder{b: flatbuffers.NewBuilder(initialBuilderSize)}
})

// Encode serializes the full event. Calls share one builder; a caller that
// finds it busy builds with a throwaway builder rather than waiting.
func Encode(e event.Event) []byte {
	shared := sharedBuilder()
	if shared.mu.TryLock() {
		defer shared.mu.Unlock()
		return encode(shared.b, e)
	}
	return encode(flatbuffers.NewBuilder(initialBuilderSize), e)
}

func encode(b *flatbuffers.Builder, e event.Event) []byte {
	b.Reset()

	// a nil slice leaves its slot out so that nil and empty decode apart
	var tags flatbuffers.UOffsetT
	if e.Tags != nil {
		tagOffsets := make([]flatbuffers.UOffsetT, len(e.Tags))
		for i, tag := range e.Tags {
			tagOffsets[i] = encodeTag(b, tag)
		}
		tags = offsetVector(b, tagOffsets)
	}

	id := b.CreateByteVector(e.ID[:])
	pubkey := b.CreateByteVector(e.PubKey[:])
	sig := b.CreateByteVector(e.Sig[:])
	content := b.CreateString(e.Content)

	b.StartObject(eventFieldCount)
	b.PrependUint64Slot(slotCreatedAt, uint64(e.CreatedAt), 0)
	b.PrependUOffsetTSlot(slotID, id, 0)
	b.PrependUOffsetTSlot(slotPubKey, pubkey, 0)
	if e.Tags != nil {
		b.PrependUOffsetTSlot(slotTags, tags, 0)
	}
	b.PrependUOffsetTSlot(slotContent, content, 0)
	b.PrependUOffsetTSlot(slotSig, sig, 0)
	b.PrependUint16Slot(slotKind, uint16(e.Kind), 0)
	b.Finish(b.EndObject())

	// FinishedBytes aliases the builder's buffer, which is reused
	finished := b.FinishedBytes()
	out := make([]byte, len(finished))
	copy(out, finished)
	return out
}

func encodeTag(b *flatbuffers.Builder, tag event.Tag) flatbuffers.UOffsetT {
	var valuesVec flatbuffers.UOffsetT
	if tag != nil {
		values := make([]flatbuffers.UOffsetT, len(tag))
		for j, v := range tag {
			values[j] = b.CreateString(v)
		}
		valuesVec = offsetVector(b, values)
	}

	b.StartObject(tagFieldCount)
	if tag != nil {
		b.PrependUOffsetTSlot(slotTagValues, valuesVec, 0)
	}
	return b.EndObject()
}

func offsetVector(b *flatbuffers.Builder, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	b.StartVector(flatbuffers.SizeUOffsetT, len(offsets), flatbuffers.SizeUOffsetT)
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	return b.EndVector(len(offsets))
}

// Decode parses a payload produced by Encode. Malformed input yields a
// *DecodeError.
func Decode(buf []byte) (e event.Event, err error) {
	if len(buf) < 2*flatbuffers.SizeUOffsetT {
		return event.Event{}, &DecodeError{Err: fmt.Errorf("payload too short (%d bytes)", len(buf))}
	}

	defer func() {
		if r := recover(); r != nil {
			e = event.Event{}
			err = &DecodeError{Err: fmt.Errorf("malformed payload: %v", r)}
		}
	}()

	root := flatbuffers.Table{Bytes: buf, Pos: flatbuffers.GetUOffsetT(buf)}

	if err := fixedBytes(&root, slotID, e.ID[:], "id"); err != nil {
		return event.Event{}, err
	}
	if err := fixedBytes(&root, slotPubKey, e.PubKey[:], "pubkey"); err != nil {
		return event.Event{}, err
	}
	if err := fixedBytes(&root, slotSig, e.Sig[:], "sig"); err != nil {
		return event.Event{}, err
	}

	if o := fieldOffset(&root, slotCreatedAt); o != 0 {
		e.CreatedAt = event.Timestamp(root.GetUint64(o + root.Pos))
	}
	if o := fieldOffset(&root, slotKind); o != 0 {
		e.Kind = event.Kind(root.GetUint16(o + root.Pos))
	}
	if o := fieldOffset(&root, slotContent); o != 0 {
		e.Content = root.String(o + root.Pos)
	}

	tags, err := decodeTags(&root)
	if err != nil {
		return event.Event{}, err
	}
	e.Tags = tags

	return e, nil
}

func decodeTags(root *flatbuffers.Table) ([]event.Tag, error) {
	o := fieldOffset(root, slotTags)
	if o == 0 {
		return nil, nil
	}

	n, start, err := vectorBounds(root, o)
	if err != nil {
		return nil, err
	}

	tags := make([]event.Tag, n)
	for i := 0; i < n; i++ {
		pos := root.Indirect(start + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT))
		tagTable := flatbuffers.Table{Bytes: root.Bytes, Pos: pos}

		vo := fieldOffset(&tagTable, slotTagValues)
		if vo == 0 {
			continue
		}
		m, vstart, err := vectorBounds(&tagTable, vo)
		if err != nil {
			return nil, err
		}
		values := make(event.Tag, m)
		for j := 0; j < m; j++ {
			values[j] = string(tagTable.ByteVector(vstart + flatbuffers.UOffsetT(j*flatbuffers.SizeUOffsetT)))
		}
		tags[i] = values
	}
	return tags, nil
}

// vectorBounds returns the length and element start of the vector at field
// offset o, checking that the elements fit in the buffer before anything is
// allocated for them.
func vectorBounds(t *flatbuffers.Table, o flatbuffers.UOffsetT) (int, flatbuffers.UOffsetT, error) {
	n := t.VectorLen(o)
	start := t.Vector(o)
	end := uint64(start) + uint64(n)*flatbuffers.SizeUOffsetT
	if n < 0 || end > uint64(len(t.Bytes)) {
		return 0, 0, &DecodeError{Err: fmt.Errorf("vector of %d elements exceeds payload", n)}
	}
	return n, start, nil
}

func fieldOffset(t *flatbuffers.Table, slot int) flatbuffers.UOffsetT {
	return flatbuffers.UOffsetT(t.Offset(flatbuffers.VOffsetT(4 + 2*slot)))
}

func fixedBytes(t *flatbuffers.Table, slot int, dst []byte, name string) error {
	o := fieldOffset(t, slot)
	if o == 0 {
		return &DecodeError{Err: fmt.Errorf("missing %s", name)}
	}
	b := t.ByteVector(o + t.Pos)
	if len(b) != len(dst) {
		return &DecodeError{Err: fmt.Errorf("invalid %s length %d", name, len(b))}
	}
	copy(dst, b)
	return nil
}
