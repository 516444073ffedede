// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// SegmentLen is the length of a base64-packed ID with its two padding
// characters stripped: 16 bytes encode to 24 characters ending in "==".
const SegmentLen = 22

// Empty is the zero ID.
var Empty = ID{}

// ID is a 128-bit identifier.
type ID [16]byte

// NewID creates a random ID.
func NewID() ID {
	return FromUUID(uuid.New())
}

// FromUUID converts a UUID to an ID.
func FromUUID(u uuid.UUID) ID {
	return ID(u)
}

// FromName derives a deterministic ID from an arbitrary string, so that
// string-keyed entities map to the same 128-bit identity on every node.
func FromName(name string) ID {
	return FromUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)))
}

// GenerateTestID creates a random ID for testing.
func GenerateTestID() ID {
	var id ID
	rand.Read(id[:])
	return id
}

// UUID returns the ID as a UUID.
func (id ID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// String returns the hex representation of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the ID.
func (id ID) Bytes() []byte {
	return id[:]
}

// IsZero reports whether the ID is all zeroes.
func (id ID) IsZero() bool {
	return id == Empty
}

// FromString creates an ID from a hex string.
func FromString(s string) (ID, error) {
	var id ID
	bytes, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(bytes) != len(id) {
		return id, fmt.Errorf("invalid ID length: expected %d, got %d", len(id), len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}

// EncodeSegment packs the ID into a fixed 22-character base64 string by
// stripping the trailing "==" padding. DecodeSegment is the exact inverse.
func (id ID) EncodeSegment() string {
	return base64.StdEncoding.EncodeToString(id[:])[:SegmentLen]
}

// DecodeSegment reverses EncodeSegment, re-appending the stripped padding
// before decoding.
func DecodeSegment(s string) (ID, error) {
	var id ID
	if len(s) != SegmentLen {
		return id, fmt.Errorf("invalid segment length: expected %d, got %d", SegmentLen, len(s))
	}
	bytes, err := base64.StdEncoding.DecodeString(s + "==")
	if err != nil {
		return id, err
	}
	if len(bytes) != len(id) {
		return id, fmt.Errorf("invalid segment payload: expected %d bytes, got %d", len(id), len(bytes))
	}
	copy(id[:], bytes)
	return id, nil
}
