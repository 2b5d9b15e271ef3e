// Package core ties the activity controller, the layer resolver, the pointer
// transformer and the tapping policy together.
//
// Key events, layer changes and pointer ticks arrive from several goroutines
// (device readers, tap-hold timers and the poll loop). The engine applies them
// one at a time in the order they arrive, so the components it owns never see
// concurrent calls.
package core

import (
	"sync"
	"time"

	"github.com/e82eric/pointerlayer/activity"
	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/layers"
	"github.com/e82eric/pointerlayer/pointer"
	"github.com/e82eric/pointerlayer/tapping"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Activity    activity.Config
	Pointer     pointer.Config
	TappingTerm clock.Millis
	// TappingTerms overrides the tapping term of single keys.
	TappingTerms map[uint16]clock.Millis
}

// Output is the result of a polling tick.
type Output struct {
	pointer.Output
	// AutoLayer reports whether the activity-triggered layer should be active.
	AutoLayer bool
}

type Engine struct {
	mu sync.Mutex

	clock       clock.Clock
	activity    *activity.Controller
	resolver    *layers.Resolver
	transformer *pointer.Transformer
	policy      *tapping.Policy

	// time of the last event, events are never applied before it
	last    clock.Millis
	hasLast bool
}

func NewEngine(conf Config, c clock.Clock) (*Engine, error) {
	e := Engine{
		clock:    c,
		activity: activity.NewController(conf.Activity),
		resolver: layers.NewResolver(),
		policy:   tapping.NewPolicy(conf.TappingTerm, conf.TappingTerms),
	}
	var err error
	e.transformer, err = pointer.New(conf.Pointer, e.activity, e.resolver)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// KeyPressed registers the press of a key that is not a pointer key at the time it was read
// from the device.
func (e *Engine) KeyPressed(code uint16, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now() - clock.Millis(max(time.Since(at), 0).Milliseconds())
	now = e.advance(now)
	log.Debugf("Engine: key %d pressed at %d", code, now)
	e.activity.OnNonPointerKeyPress(now)
}

// advance returns now, or the time of the last event if now is before it.
func (e *Engine) advance(now clock.Millis) clock.Millis {
	if e.hasLast && int32(now-e.last) < 0 {
		return e.last
	}
	e.last = now
	e.hasLast = true
	return now
}

// LayerChanged registers a new highest active layer.
func (e *Engine) LayerChanged(highest int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolver.OnLayerStateChanged(highest)
}

// Tick transforms the pointer sample of one polling tick.
func (e *Engine) Tick(sample pointer.Sample) Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.advance(e.clock.Now())
	out := Output{Output: e.transformer.Transform(sample, now)}
	out.AutoLayer = e.activity.IsActive(now)
	return out
}

// HoldThreshold returns the tapping term of a dual-role key.
func (e *Engine) HoldThreshold(code uint16) clock.Millis {
	// the policy is never modified, no lock needed
	return e.policy.ResolveHoldThreshold(code)
}

// ActivityState returns the state of the activity controller as of the last event.
func (e *Engine) ActivityState() activity.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activity.State()
}
