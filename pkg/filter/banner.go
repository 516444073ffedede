// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filter

import (
	"math"

	"github.com/prebid/openrtb/v20/openrtb2"
)

const ratioEpsilon = 1e-6

// MatchBanner decides whether a banner creative of the given dimensions
// can serve the impression's banner slot. Declared min/max bounds reject
// first. A scalable creative matches on aspect ratio; a fixed one requires
// exact width and height equality.
func MatchBanner(width, height int64, canScale bool, banner *openrtb2.Banner) bool {
	if banner == nil || width <= 0 || height <= 0 {
		return false
	}

	if banner.WMin > 0 && width < banner.WMin {
		return false
	}
	if banner.WMax > 0 && width > banner.WMax {
		return false
	}
	if banner.HMin > 0 && height < banner.HMin {
		return false
	}
	if banner.HMax > 0 && height > banner.HMax {
		return false
	}

	slotW, slotH, ok := bannerSize(banner)
	if !ok {
		return false
	}

	if canScale {
		return math.Abs(float64(height)/float64(width)-float64(slotH)/float64(slotW)) < ratioEpsilon
	}
	return width == slotW && height == slotH
}

// bannerSize resolves the slot dimensions, preferring the direct W/H pair
// over the first format entry.
func bannerSize(banner *openrtb2.Banner) (int64, int64, bool) {
	if banner.W != nil && banner.H != nil && *banner.W > 0 && *banner.H > 0 {
		return *banner.W, *banner.H, true
	}
	for _, f := range banner.Format {
		if f.W > 0 && f.H > 0 {
			return f.W, f.H, true
		}
	}
	return 0, 0, false
}
