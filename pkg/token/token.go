// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements the compact auction token threaded through
// win/loss/impression/click callback URLs. A token carries the identity of
// an in-flight bid (exchange, campaign, bid) plus a small packed payload,
// and must round-trip exactly through an external ad exchange. It is
// deliberately unsigned: the encoding is a correlation handle, not a
// credential.
package token

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adxyz/rtbidder/pkg/ids"
)

var (
	ErrMalformedToken = errors.New("malformed auction token")
	ErrShortPayload   = errors.New("auction token payload too short")
	ErrBadOperation   = errors.New("auction token operation out of range")
)

// Operation identifies which callback a token variant belongs to.
type Operation uint32

const (
	OpUnknown Operation = iota
	OpWin
	OpLoss
	OpImpression
	OpClicked
	OpAction
)

var opNames = [...]string{"unknown", "win", "loss", "impression", "clicked", "action"}

func (op Operation) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("operation(%d)", uint32(op))
}

// ParseOperation maps a callback path segment back to an Operation.
func ParseOperation(s string) (Operation, error) {
	for i, name := range opNames {
		if s == name {
			return Operation(i), nil
		}
	}
	return OpUnknown, fmt.Errorf("%w: %q", ErrBadOperation, s)
}

// payloadLen is the fixed packed payload size: 8-byte CPM double, 8-byte
// timestamp, 4-byte operation.
const payloadLen = 20

// idSegments is the total length of the three packed identifier segments.
const idSegments = 3 * ids.SegmentLen

// Token is the in-memory form of an auction token.
type Token struct {
	Exchange  ids.ID
	Campaign  ids.ID
	Bid       ids.ID
	CPM       float64
	Timestamp int64 // 100ns ticks since the Unix epoch, see Ticks.
	Operation Operation
}

// Ticks converts a time to the token timestamp convention: a 64-bit count
// of 100-nanosecond intervals since the Unix epoch.
func Ticks(t time.Time) int64 {
	return t.UnixNano() / 100
}

// TicksTime converts a token timestamp back to a time.
func TicksTime(ticks int64) time.Time {
	return time.Unix(0, ticks*100)
}

var (
	urlSafe   = strings.NewReplacer("+", "-", "/", "_")
	urlUnsafe = strings.NewReplacer("-", "+", "_", "/")
)

// Encode packs the token into a URL-safe string. The three identifiers are
// each packed to a fixed 22-character base64 segment, the payload is
// length-prefixed, little-endian and base64-encoded, and the whole string
// is base64-encoded once more before the URL-safety transform.
func Encode(t *Token) string {
	var sb strings.Builder
	sb.Grow(idSegments + 32)
	sb.WriteString(t.Exchange.EncodeSegment())
	sb.WriteString(t.Campaign.EncodeSegment())
	sb.WriteString(t.Bid.EncodeSegment())

	payload := make([]byte, 1+payloadLen)
	payload[0] = payloadLen
	binary.LittleEndian.PutUint64(payload[1:9], math.Float64bits(t.CPM))
	binary.LittleEndian.PutUint64(payload[9:17], uint64(t.Timestamp))
	binary.LittleEndian.PutUint32(payload[17:21], uint32(t.Operation))
	sb.WriteString(base64.StdEncoding.EncodeToString(payload))

	outer := base64.StdEncoding.EncodeToString([]byte(sb.String()))
	return urlSafe.Replace(outer)
}

// Decode reverses Encode exactly. Malformed input surfaces as an error,
// never as a defaulted token: a zeroed token on a postback path would
// misattribute spend to the wrong campaign.
func Decode(s string) (*Token, error) {
	inner, err := base64.StdEncoding.DecodeString(urlUnsafe.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(inner) <= idSegments {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(inner))
	}

	t := &Token{}
	segments := []*ids.ID{&t.Exchange, &t.Campaign, &t.Bid}
	for i, id := range segments {
		seg := string(inner[i*ids.SegmentLen : (i+1)*ids.SegmentLen])
		decoded, err := ids.DecodeSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: identifier %d: %v", ErrMalformedToken, i, err)
		}
		*id = decoded
	}

	raw, err := base64.StdEncoding.DecodeString(string(inner[idSegments:]))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	if len(raw) < 1+payloadLen || int(raw[0]) < payloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(raw))
	}

	t.CPM = math.Float64frombits(binary.LittleEndian.Uint64(raw[1:9]))
	t.Timestamp = int64(binary.LittleEndian.Uint64(raw[9:17]))
	t.Operation = Operation(binary.LittleEndian.Uint32(raw[17:21]))
	if t.Operation > OpAction {
		return nil, fmt.Errorf("%w: %d", ErrBadOperation, uint32(t.Operation))
	}

	return t, nil
}

// OperationString mutates the token's operation in place and returns the
// freshly encoded string. Minting one callback URL per operation reuses
// the identifiers instead of re-deriving them each time.
func (t *Token) OperationString(op Operation) string {
	t.Operation = op
	return Encode(t)
}
