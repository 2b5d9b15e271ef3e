// Package layers tracks which layer is the highest active one.
package layers

import (
	"math/bits"

	log "github.com/sirupsen/logrus"
)

// MaxLayers is the number of layers a State can hold.
const MaxLayers = 32

// Resolver caches the highest active layer for the pointer transformer.
// It is written on every layer change and keeps no history.
type Resolver struct {
	current int
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// OnLayerStateChanged stores the new highest active layer. Any value is accepted.
func (r *Resolver) OnLayerStateChanged(highest int) {
	if highest != r.current {
		log.Debugf("Resolver: layer %d -> %d", r.current, highest)
	}
	r.current = highest
}

// CurrentLayer returns the highest active layer of the last notification.
func (r *Resolver) CurrentLayer() int {
	return r.current
}

// State is a set of active layers, one bit per layer index.
type State uint32

// On returns the state with layer i activated. Indices outside [0, MaxLayers) are ignored.
func (s State) On(i int) State {
	if i < 0 || i >= MaxLayers {
		return s
	}
	return s | 1<<uint(i)
}

// Off returns the state with layer i deactivated.
func (s State) Off(i int) State {
	if i < 0 || i >= MaxLayers {
		return s
	}
	return s &^ (1 << uint(i))
}

// Set activates or deactivates layer i.
func (s State) Set(i int, on bool) State {
	if on {
		return s.On(i)
	}
	return s.Off(i)
}

func (s State) IsOn(i int) bool {
	return s.On(i) == s && i >= 0 && i < MaxLayers
}

// Highest returns the highest active layer, or 0 if no layer is active.
func (s State) Highest() int {
	if s == 0 {
		return 0
	}
	return bits.Len32(uint32(s)) - 1
}
