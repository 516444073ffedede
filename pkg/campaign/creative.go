// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package campaign

import (
	"fmt"
	"sync/atomic"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adxyz/rtbidder/pkg/filter"
	"github.com/adxyz/rtbidder/pkg/log"
)

// ContentKind is the media type of a creative content variant.
type ContentKind int

const (
	KindBanner ContentKind = iota
	KindVideo
	KindAudio
)

var kindNames = [...]string{"banner", "video", "audio"}

func (k ContentKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CreativeRecord is the storage shape of a creative.
type CreativeRecord struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaign_id"`
	Contents   []ContentRecord `json:"contents"`
}

// ContentRecord is the storage shape of one content variant.
type ContentRecord struct {
	ID       string        `json:"id"`
	Kind     ContentKind   `json:"kind"`
	Width    int64         `json:"width"`
	Height   int64         `json:"height"`
	CanScale bool          `json:"can_scale"`
	MIME     string        `json:"mime"`
	URI      string        `json:"uri"`
	Rules    []filter.Rule `json:"rules,omitempty"`
}

// Creative owns one or more content variants.
type Creative struct {
	ID         string
	CampaignID string
	Contents   []*CreativeContent
}

// NewCreative builds a runtime creative. Content filters hydrate lazily on
// first use.
func NewCreative(rec *CreativeRecord, logger log.Logger) *Creative {
	if logger == nil {
		logger = log.NoLog
	}
	cr := &Creative{
		ID:         rec.ID,
		CampaignID: rec.CampaignID,
		Contents:   make([]*CreativeContent, 0, len(rec.Contents)),
	}
	for _, ct := range rec.Contents {
		cr.Contents = append(cr.Contents, &CreativeContent{
			ID:       ct.ID,
			Kind:     ct.Kind,
			Width:    ct.Width,
			Height:   ct.Height,
			CanScale: ct.CanScale,
			MIME:     ct.MIME,
			URI:      ct.URI,
			Rules:    ct.Rules,
			log:      logger,
		})
	}
	return cr
}

// CreativeContent is one servable variant of a creative. Its impression
// filter is hydrated lazily and memoized; recomputation is idempotent.
type CreativeContent struct {
	ID       string
	Kind     ContentKind
	Width    int64
	Height   int64
	CanScale bool
	MIME     string
	URI      string
	Rules    []filter.Rule

	matcher atomic.Pointer[filter.Predicate]
	log     log.Logger
}

// Matches reports whether this content can serve the impression: the media
// kind must line up, banner geometry must fit, and the content's own
// exclusion rules must not match.
func (c *CreativeContent) Matches(req *openrtb2.BidRequest, imp *openrtb2.Imp) bool {
	return c.predicate()(req, imp)
}

// Rehydrate discards the memoized filter so the next Matches recompiles
// it. Used when a creative definition is refreshed.
func (c *CreativeContent) Rehydrate() {
	c.matcher.Store(nil)
}

func (c *CreativeContent) predicate() filter.Predicate {
	if p := c.matcher.Load(); p != nil {
		return *p
	}
	p := c.compile()
	c.matcher.Store(&p)
	return p
}

func (c *CreativeContent) compile() filter.Predicate {
	logger := c.log
	if logger == nil {
		logger = log.NoLog
	}
	exclude := filter.Compile(c.Rules, logger.With(log.String("content", c.ID)))

	kind := c.Kind
	width, height, canScale := c.Width, c.Height, c.CanScale

	return func(req *openrtb2.BidRequest, imp *openrtb2.Imp) bool {
		if imp == nil {
			return false
		}
		switch kind {
		case KindBanner:
			if !filter.MatchBanner(width, height, canScale, imp.Banner) {
				return false
			}
		case KindVideo:
			if imp.Video == nil {
				return false
			}
		case KindAudio:
			if imp.Audio == nil {
				return false
			}
		default:
			return false
		}
		return !exclude(req, imp)
	}
}
