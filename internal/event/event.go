package event

import (
	"encoding/hex"
	"fmt"
)

// Sizes of the fixed-length identity fields
const (
	IDSize        = 32
	PublicKeySize = 32
	SignatureSize = 64
)

// ID is the content hash identifying an event
type ID [IDSize]byte

// PublicKey is the author key of an event
type PublicKey [PublicKeySize]byte

// Signature is the author's signature over the event id
type Signature [SignatureSize]byte

// Timestamp is a unix timestamp in seconds
type Timestamp uint64

// Kind is the event type
type Kind uint16

// Tag is an indexable annotation: a name followed by zero or more values
type Tag []string

// Event is an immutable, content-addressed log record.
//
// Events reaching the store are assumed to be verified already: the id is
// not recomputed and the signature is not checked.
type Event struct {
	ID        ID
	PubKey    PublicKey
	CreatedAt Timestamp
	Kind      Kind
	Tags      []Tag
	Content   string
	Sig       Signature
}

// Name returns the tag name, or "" for an empty tag
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Content returns the first tag value and whether it is present
func (t Tag) Content() (string, bool) {
	if len(t) < 2 {
		return "", false
	}
	return t[1], true
}

// Bytes returns a copy of the id as a byte slice
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	return decodeFixedHex(id[:], text, "event id")
}

// Bytes returns a copy of the key as a byte slice
func (pk PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, pk[:])
	return b
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	return decodeFixedHex(pk[:], text, "public key")
}

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeFixedHex(s[:], text, "signature")
}

// ParseID parses a hex encoded event id
func ParseID(s string) (ID, error) {
	var id ID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// ParsePublicKey parses a hex encoded public key
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	err := pk.UnmarshalText([]byte(s))
	return pk, err
}

// IDFromBytes copies a stored id into an ID
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("invalid event id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func decodeFixedHex(dst []byte, text []byte, what string) error {
	if hex.DecodedLen(len(text)) != len(dst) {
		return fmt.Errorf("invalid %s length: expected %d hex characters, got %d", what, len(dst)*2, len(text))
	}
	if _, err := hex.Decode(dst, text); err != nil {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	return nil
}
