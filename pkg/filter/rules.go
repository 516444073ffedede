// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package filter compiles declarative campaign rules into fast reusable
// predicates over OpenRTB requests. Binding, type coercion and string
// folding happen once at compile time; evaluation against a request does
// no reflection, parsing or allocation.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/adxyz/rtbidder/pkg/log"
)

// Comparator is the comparison operator of a rule.
type Comparator int

const (
	EQ Comparator = iota
	NEQ
	GT
	GTE
	LT
	LTE
	IN
	NOTIN
)

var comparatorNames = [...]string{"eq", "neq", "gt", "gte", "lt", "lte", "in", "notin"}

func (c Comparator) String() string {
	if int(c) < len(comparatorNames) {
		return comparatorNames[c]
	}
	return fmt.Sprintf("comparator(%d)", int(c))
}

// Rule is one declarative filter rule bound against a request property.
type Rule struct {
	Property string     `json:"property"`
	Op       Comparator `json:"op"`
	Value    any        `json:"value,omitempty"`
	Values   []any      `json:"values,omitempty"`
}

// TargetRule is a filter rule that carries a CPM price and a weight. When
// the rule matches a request, its CPM participates in the campaign's
// computed price.
type TargetRule struct {
	Rule
	CPM    float64 `json:"cpm"`
	Weight float64 `json:"weight"`
}

// Predicate reports whether a request (and optionally one impression)
// matches a compiled rule group. For campaign-level filters a true result
// means the request is excluded from bidding.
type Predicate func(req *openrtb2.BidRequest, imp *openrtb2.Imp) bool

// PriceModifier computes a CPM bid price for a request.
type PriceModifier func(req *openrtb2.BidRequest) float64

var (
	errUnknownProperty = errors.New("unknown property")
	errBadValue        = errors.New("unsupported rule value")
	errNeedsNumber     = errors.New("ordered comparator needs a numeric value")
	errEmptySet        = errors.New("set comparator needs a non-empty value list")
)

// operand is a coerced rule or request value: a folded string or a number.
type operand struct {
	str   string
	num   float64
	isNum bool
}

func strOperand(s string) operand  { return operand{str: strings.ToLower(s)} }
func numOperand(f float64) operand { return operand{num: f, isNum: true} }

func coerce(v any) (operand, error) {
	switch x := v.(type) {
	case string:
		return strOperand(x), nil
	case float64:
		return numOperand(x), nil
	case float32:
		return numOperand(float64(x)), nil
	case int:
		return numOperand(float64(x)), nil
	case int64:
		return numOperand(float64(x)), nil
	case int32:
		return numOperand(float64(x)), nil
	default:
		return operand{}, fmt.Errorf("%w: %T", errBadValue, v)
	}
}

// accessor extracts the values of one bound property from a request.
// Multi-valued properties (e.g. video MIME types) yield several operands.
// ok is false when the property is absent from the request.
type accessor func(req *openrtb2.BidRequest, imp *openrtb2.Imp) ([]operand, bool)

type boundRule struct {
	get     accessor
	op      Comparator
	operand operand
	strSet  map[string]struct{}
	numSet  map[float64]struct{}
}

func (b *boundRule) match(req *openrtb2.BidRequest, imp *openrtb2.Imp) bool {
	vals, ok := b.get(req, imp)
	if !ok {
		return false
	}
	for _, v := range vals {
		if b.matchOne(v) {
			return true
		}
	}
	return false
}

func (b *boundRule) matchOne(v operand) bool {
	switch b.op {
	case EQ:
		return equal(v, b.operand)
	case NEQ:
		return !equal(v, b.operand)
	case GT:
		return v.isNum && v.num > b.operand.num
	case GTE:
		return v.isNum && v.num >= b.operand.num
	case LT:
		return v.isNum && v.num < b.operand.num
	case LTE:
		return v.isNum && v.num <= b.operand.num
	case IN:
		return b.inSet(v)
	case NOTIN:
		return !b.inSet(v)
	}
	return false
}

func (b *boundRule) inSet(v operand) bool {
	if v.isNum {
		_, ok := b.numSet[v.num]
		return ok
	}
	_, ok := b.strSet[v.str]
	return ok
}

func equal(a, b operand) bool {
	if a.isNum != b.isNum {
		return false
	}
	if a.isNum {
		return a.num == b.num
	}
	return a.str == b.str
}

func bind(r Rule) (*boundRule, error) {
	get, ok := accessors[r.Property]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownProperty, r.Property)
	}

	b := &boundRule{get: get, op: r.Op}

	switch r.Op {
	case IN, NOTIN:
		if len(r.Values) == 0 {
			return nil, errEmptySet
		}
		b.strSet = make(map[string]struct{}, len(r.Values))
		b.numSet = make(map[float64]struct{}, len(r.Values))
		for _, v := range r.Values {
			op, err := coerce(v)
			if err != nil {
				return nil, err
			}
			if op.isNum {
				b.numSet[op.num] = struct{}{}
			} else {
				b.strSet[op.str] = struct{}{}
			}
		}
	case GT, GTE, LT, LTE:
		op, err := coerce(r.Value)
		if err != nil {
			return nil, err
		}
		if !op.isNum {
			return nil, errNeedsNumber
		}
		b.operand = op
	default:
		op, err := coerce(r.Value)
		if err != nil {
			return nil, err
		}
		b.operand = op
	}

	return b, nil
}

func bindAll(rules []Rule, logger log.Logger) []*boundRule {
	if logger == nil {
		logger = log.NoLog
	}
	bound := make([]*boundRule, 0, len(rules))
	for _, r := range rules {
		b, err := bind(r)
		if err != nil {
			// One bad rule must not abort the rest of the group.
			logger.Error("skipping uncompilable rule",
				log.String("property", r.Property),
				log.String("op", r.Op.String()),
				log.Error(err))
			continue
		}
		bound = append(bound, b)
	}
	return bound
}

// Compile builds an exclusion predicate from a rule group. Rules are
// OR-combined: any match excludes the request. A group that binds no rules
// (including a nil or empty group) degrades to permissive and never
// excludes anything.
func Compile(rules []Rule, logger log.Logger) Predicate {
	bound := bindAll(rules, logger)
	if len(bound) == 0 {
		return func(*openrtb2.BidRequest, *openrtb2.Imp) bool { return false }
	}
	return func(req *openrtb2.BidRequest, imp *openrtb2.Imp) bool {
		for _, b := range bound {
			if b.match(req, imp) {
				return true
			}
		}
		return false
	}
}

type boundTarget struct {
	rule   *boundRule
	cpm    float64
	weight float64
}

// CompileTargets builds a price modifier from weighted target rules. The
// computed price is the weight-weighted mean CPM of all matching targets;
// when none match (or none compiled) it is fallbackCPM. A zero weight
// counts as 1.
func CompileTargets(targets []TargetRule, fallbackCPM float64, logger log.Logger) PriceModifier {
	if logger == nil {
		logger = log.NoLog
	}
	bound := make([]boundTarget, 0, len(targets))
	for _, t := range targets {
		b, err := bind(t.Rule)
		if err != nil {
			logger.Error("skipping uncompilable target rule",
				log.String("property", t.Property),
				log.Error(err))
			continue
		}
		w := t.Weight
		if w == 0 {
			w = 1
		}
		bound = append(bound, boundTarget{rule: b, cpm: t.CPM, weight: w})
	}

	if len(bound) == 0 {
		return func(*openrtb2.BidRequest) float64 { return fallbackCPM }
	}

	return func(req *openrtb2.BidRequest) float64 {
		var sum, weight float64
		for _, t := range bound {
			if t.rule.match(req, nil) {
				sum += t.cpm * t.weight
				weight += t.weight
			}
		}
		if weight == 0 {
			return fallbackCPM
		}
		return sum / weight
	}
}
