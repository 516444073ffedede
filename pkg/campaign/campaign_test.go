// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package campaign

import (
	"testing"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/adxyz/rtbidder/pkg/filter"
	"github.com/adxyz/rtbidder/pkg/log"
)

func i64(v int64) *int64 { return &v }

func bannerCreative() *CreativeRecord {
	return &CreativeRecord{
		ID:         "cr-1",
		CampaignID: "camp-1",
		Contents: []ContentRecord{{
			ID:     "ct-1",
			Kind:   KindBanner,
			Width:  300,
			Height: 250,
			MIME:   "image/png",
			URI:    "https://cdn.example.com/cr-1.png",
		}},
	}
}

func TestBuildCompilesFilters(t *testing.T) {
	require := require.New(t)

	start := time.Now().Add(-time.Hour)
	rec := &CampaignRecord{
		ID:        "camp-1",
		Status:    StatusActive,
		Start:     &start,
		MaxCPM:    2.0,
		TargetCPM: 1.0,
		FilterRules: []filter.Rule{
			{Property: "geo.country", Op: filter.EQ, Value: "gbr"},
		},
		DailyBudget: decimal.NewFromInt(100),
	}

	c := Build(rec, []*CreativeRecord{bannerCreative()}, log.NoLog)
	require.NotNil(c.Exclude)
	require.NotNil(c.Price)
	require.NotNil(c.Schedule)
	require.True(c.Schedule.End.IsZero())
	require.Len(c.Creatives, 1)

	gbReq := &openrtb2.BidRequest{Device: &openrtb2.Device{Geo: &openrtb2.Geo{Country: "GBR"}}}
	usReq := &openrtb2.BidRequest{Device: &openrtb2.Device{Geo: &openrtb2.Geo{Country: "USA"}}}
	require.True(c.Exclude(gbReq, nil))
	require.False(c.Exclude(usReq, nil))
	require.Equal(1.0, c.Price(usReq))
}

// A campaign whose rules all fail to compile must degrade to permissive
// defaults, never to nil predicates.
func TestBuildDegradesOnBadRules(t *testing.T) {
	require := require.New(t)

	rec := &CampaignRecord{
		ID:        "camp-1",
		Status:    StatusActive,
		TargetCPM: 1.5,
		FilterRules: []filter.Rule{
			{Property: "not.a.property", Op: filter.EQ, Value: "x"},
		},
		TargetRules: []filter.TargetRule{
			{Rule: filter.Rule{Property: "also.bogus", Op: filter.EQ, Value: "y"}, CPM: 9.0},
		},
	}

	c := Build(rec, nil, log.NoLog)
	require.NotNil(c.Exclude)
	require.NotNil(c.Price)

	req := &openrtb2.BidRequest{}
	require.False(c.Exclude(req, nil))
	require.Equal(1.5, c.Price(req))
	require.Nil(c.Schedule)
}

func TestContentMatchesBannerGeometry(t *testing.T) {
	require := require.New(t)

	cr := NewCreative(bannerCreative(), log.NoLog)
	ct := cr.Contents[0]

	req := &openrtb2.BidRequest{}
	fits := &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(300), H: i64(250)}}
	wrongSize := &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(728), H: i64(90)}}
	videoSlot := &openrtb2.Imp{Video: &openrtb2.Video{MIMEs: []string{"video/mp4"}}}

	require.True(ct.Matches(req, fits))
	require.False(ct.Matches(req, wrongSize))
	require.False(ct.Matches(req, videoSlot))
	require.False(ct.Matches(req, nil))
}

func TestContentMatchesScalable(t *testing.T) {
	require := require.New(t)

	rec := bannerCreative()
	rec.Contents[0].CanScale = true
	ct := NewCreative(rec, log.NoLog).Contents[0]

	req := &openrtb2.BidRequest{}
	doubled := &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(600), H: i64(500)}}
	require.True(ct.Matches(req, doubled))
}

func TestContentRulesExclude(t *testing.T) {
	require := require.New(t)

	rec := bannerCreative()
	rec.Contents[0].Rules = []filter.Rule{
		{Property: "device.os", Op: filter.EQ, Value: "android"},
	}
	ct := NewCreative(rec, log.NoLog).Contents[0]

	imp := &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(300), H: i64(250)}}
	android := &openrtb2.BidRequest{Device: &openrtb2.Device{OS: "Android"}}
	ios := &openrtb2.BidRequest{Device: &openrtb2.Device{OS: "iOS"}}

	require.False(ct.Matches(android, imp))
	require.True(ct.Matches(ios, imp))
}

func TestContentRehydrateIsIdempotent(t *testing.T) {
	require := require.New(t)

	ct := NewCreative(bannerCreative(), log.NoLog).Contents[0]
	req := &openrtb2.BidRequest{}
	imp := &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(300), H: i64(250)}}

	require.True(ct.Matches(req, imp))
	ct.Rehydrate()
	require.True(ct.Matches(req, imp))
}

func TestVideoContentMatchesVideoSlot(t *testing.T) {
	require := require.New(t)

	rec := &CreativeRecord{
		ID:         "cr-2",
		CampaignID: "camp-1",
		Contents:   []ContentRecord{{ID: "ct-2", Kind: KindVideo, Width: 1280, Height: 720, MIME: "video/mp4"}},
	}
	ct := NewCreative(rec, log.NoLog).Contents[0]

	req := &openrtb2.BidRequest{}
	require.True(ct.Matches(req, &openrtb2.Imp{Video: &openrtb2.Video{MIMEs: []string{"video/mp4"}}}))
	require.False(ct.Matches(req, &openrtb2.Imp{Banner: &openrtb2.Banner{W: i64(300), H: i64(250)}}))
}

func TestReferences(t *testing.T) {
	require := require.New(t)

	rec := &CampaignRecord{ID: "camp-1", Status: StatusActive}
	c := Build(rec, []*CreativeRecord{bannerCreative()}, log.NoLog)
	require.True(c.References("cr-1"))
	require.False(c.References("cr-2"))
}

func TestStatusString(t *testing.T) {
	require := require.New(t)

	require.Equal("active", StatusActive.String())
	require.Equal("paused", StatusPaused.String())
	require.Equal("banner", KindBanner.String())
}
