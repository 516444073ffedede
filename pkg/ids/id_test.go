// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	parsed, err := FromString(id.String())
	require.NoError(err)
	require.Equal(id, parsed)
}

func TestFromStringInvalid(t *testing.T) {
	require := require.New(t)

	_, err := FromString("zz")
	require.Error(err)

	_, err = FromString("abcd")
	require.Error(err)
}

func TestSegmentRoundTrip(t *testing.T) {
	require := require.New(t)

	for i := 0; i < 100; i++ {
		id := GenerateTestID()
		seg := id.EncodeSegment()
		require.Len(seg, SegmentLen)

		decoded, err := DecodeSegment(seg)
		require.NoError(err)
		require.Equal(id, decoded)
	}
}

func TestDecodeSegmentInvalid(t *testing.T) {
	require := require.New(t)

	_, err := DecodeSegment("too short")
	require.Error(err)

	_, err = DecodeSegment("!!!!!!!!!!!!!!!!!!!!!!")
	require.Error(err)
}

func TestFromNameDeterministic(t *testing.T) {
	require := require.New(t)

	a := FromName("campaign-42")
	b := FromName("campaign-42")
	c := FromName("campaign-43")
	require.Equal(a, b)
	require.NotEqual(a, c)
	require.False(a.IsZero())
}

func TestUUIDInterop(t *testing.T) {
	require := require.New(t)

	id := NewID()
	require.Equal(id, FromUUID(id.UUID()))
}
