// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package filter

import (
	"github.com/prebid/openrtb/v20/openrtb2"
)

// accessors maps rule property names to typed extraction functions. Built
// once at package load; lookup happens at rule compile time, never per
// request.
var accessors = map[string]accessor{
	"device.os": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.OS == "" {
			return nil, false
		}
		return []operand{strOperand(req.Device.OS)}, true
	},
	"device.osv": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.OSV == "" {
			return nil, false
		}
		return []operand{strOperand(req.Device.OSV)}, true
	},
	"device.make": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.Make == "" {
			return nil, false
		}
		return []operand{strOperand(req.Device.Make)}, true
	},
	"device.model": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.Model == "" {
			return nil, false
		}
		return []operand{strOperand(req.Device.Model)}, true
	},
	"device.devicetype": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.DeviceType == 0 {
			return nil, false
		}
		return []operand{numOperand(float64(req.Device.DeviceType))}, true
	},
	"device.connectiontype": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Device == nil || req.Device.ConnectionType == nil {
			return nil, false
		}
		return []operand{numOperand(float64(*req.Device.ConnectionType))}, true
	},
	"geo.country": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		geo := requestGeo(req)
		if geo == nil || geo.Country == "" {
			return nil, false
		}
		return []operand{strOperand(geo.Country)}, true
	},
	"geo.region": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		geo := requestGeo(req)
		if geo == nil || geo.Region == "" {
			return nil, false
		}
		return []operand{strOperand(geo.Region)}, true
	},
	"geo.city": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		geo := requestGeo(req)
		if geo == nil || geo.City == "" {
			return nil, false
		}
		return []operand{strOperand(geo.City)}, true
	},
	"geo.zip": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		geo := requestGeo(req)
		if geo == nil || geo.ZIP == "" {
			return nil, false
		}
		return []operand{strOperand(geo.ZIP)}, true
	},
	"user.yob": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.User == nil || req.User.Yob == 0 {
			return nil, false
		}
		return []operand{numOperand(float64(req.User.Yob))}, true
	},
	"user.gender": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.User == nil || req.User.Gender == "" {
			return nil, false
		}
		return []operand{strOperand(req.User.Gender)}, true
	},
	"site.domain": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Site == nil || req.Site.Domain == "" {
			return nil, false
		}
		return []operand{strOperand(req.Site.Domain)}, true
	},
	"site.page": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.Site == nil || req.Site.Page == "" {
			return nil, false
		}
		return []operand{strOperand(req.Site.Page)}, true
	},
	"app.bundle": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.App == nil || req.App.Bundle == "" {
			return nil, false
		}
		return []operand{strOperand(req.App.Bundle)}, true
	},
	"app.name": func(req *openrtb2.BidRequest, _ *openrtb2.Imp) ([]operand, bool) {
		if req.App == nil || req.App.Name == "" {
			return nil, false
		}
		return []operand{strOperand(req.App.Name)}, true
	},
	"imp.bidfloor": func(_ *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool) {
		if imp == nil {
			return nil, false
		}
		return []operand{numOperand(imp.BidFloor)}, true
	},
	"imp.tagid": func(_ *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool) {
		if imp == nil || imp.TagID == "" {
			return nil, false
		}
		return []operand{strOperand(imp.TagID)}, true
	},
	"banner.w": func(_ *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool) {
		if imp == nil || imp.Banner == nil || imp.Banner.W == nil {
			return nil, false
		}
		return []operand{numOperand(float64(*imp.Banner.W))}, true
	},
	"banner.h": func(_ *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool) {
		if imp == nil || imp.Banner == nil || imp.Banner.H == nil {
			return nil, false
		}
		return []operand{numOperand(float64(*imp.Banner.H))}, true
	},
	"video.mimes": func(_ *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool) {
		if imp == nil || imp.Video == nil || len(imp.Video.MIMEs) == 0 {
			return nil, false
		}
		vals := make([]operand, len(imp.Video.MIMEs))
		for i, m := range imp.Video.MIMEs {
			vals[i] = strOperand(m)
		}
		return vals, true
	},
}

// requestGeo prefers device geo and falls back to user geo.
func requestGeo(req *openrtb2.BidRequest) *openrtb2.Geo {
	if req.Device != nil && req.Device.Geo != nil {
		return req.Device.Geo
	}
	if req.User != nil {
		return req.User.Geo
	}
	return nil
}

// Properties lists the bindable property names, for validation surfaces.
func Properties() []string {
	names := make([]string, 0, len(accessors))
	for name := range accessors {
		names = append(names, name)
	}
	return names
}
