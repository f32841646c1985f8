package conversation

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// IDLength is the size in bytes of a conversation ID.
const IDLength = 32

// ErrIDLength is returned when raw bytes cannot be used as a conversation ID.
var ErrIDLength = errors.New("conversation id must be 32 bytes")

// ID is the fixed-size identifier of a conversation. It is used as topic1 when
// filtering ledger events.
type ID [IDLength]byte

// NewID derives the conversation ID for a human-readable conversation name by
// hashing it with SHA3-256. The same name always yields the same ID.
func NewID(name string) ID {
	return ID(sha3.Sum256([]byte(name)))
}

// IDFromBytes copies b into an ID. It fails if b is not exactly IDLength bytes.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLength {
		return id, fmt.Errorf("%w: got %d", ErrIDLength, len(b))
	}

	copy(id[:], b)
	return id, nil
}

// ParseID parses a hex encoded ID, with or without a 0x prefix.
func ParseID(s string) (ID, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("decoding conversation id: %w", err)
	}

	return IDFromBytes(b)
}

// Hex returns the lowercase hex encoding of the ID without a 0x prefix.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return "0x" + id.Hex()
}

// IsZero reports whether the ID is all zero bytes.
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText encodes the ID as 0x-prefixed hex.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex encoded ID.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}
