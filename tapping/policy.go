// Package tapping holds the per-key hold thresholds of dual-role keys.
package tapping

import "github.com/e82eric/pointerlayer/clock"

// DefaultTappingTerm is used for every key without an override.
const DefaultTappingTerm clock.Millis = 200

// Policy maps a dual-role key to the time after which it resolves to its hold binding.
// A Policy is not modified after construction.
type Policy struct {
	defaultTerm clock.Millis
	overrides   map[uint16]clock.Millis
}

// NewPolicy creates a policy. A zero defaultTerm is replaced by DefaultTappingTerm,
// zero overrides are ignored.
func NewPolicy(defaultTerm clock.Millis, overrides map[uint16]clock.Millis) *Policy {
	if defaultTerm == 0 {
		defaultTerm = DefaultTappingTerm
	}
	p := Policy{
		defaultTerm: defaultTerm,
		overrides:   make(map[uint16]clock.Millis, len(overrides)),
	}
	for code, term := range overrides {
		if term > 0 {
			p.overrides[code] = term
		}
	}
	return &p
}

// ResolveHoldThreshold returns the hold threshold of the given key.
func (p *Policy) ResolveHoldThreshold(code uint16) clock.Millis {
	if term, ok := p.overrides[code]; ok {
		return term
	}
	return p.defaultTerm
}

// Default returns the threshold of keys without an override.
func (p *Policy) Default() clock.Millis {
	return p.defaultTerm
}
