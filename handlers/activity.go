package handlers

import (
	"time"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/pointer"
)

// KeyNotifier is told about every key press that does not belong to the pointer.
type KeyNotifier interface {
	KeyPressed(code uint16, at time.Time)
}

// ActivityHandler is the head of the chain. It reports key presses when they happen,
// before tap-hold decides what a dual-role key means.
type ActivityHandler struct {
	BaseHandler

	conf     *config.Config
	notifier KeyNotifier
}

func NewActivityHandler(conf *config.Config, notifier KeyNotifier) *ActivityHandler {
	return &ActivityHandler{
		conf:     conf,
		notifier: notifier,
	}
}

func (a *ActivityHandler) HandleEvent(eventBinding EventBinding) {
	event := eventBinding.Event
	if event.IsPress && !a.isPointerKey(a.mappedBinding(eventBinding)) {
		a.notifier.KeyPressed(event.Code, event.Time)
	}
	a.next.HandleEvent(eventBinding)
}

// isPointerKey returns true for mouse buttons and for keys that switch to a layer which scrolls
// or gestures with the pointer. Either half of a tap-hold is enough.
func (a *ActivityHandler) isPointerKey(binding config.Binding) bool {
	switch t := binding.(type) {
	case config.ButtonBinding:
		return true
	case config.TapHoldBinding:
		return a.isPointerKey(t.TapBinding) || a.isPointerKey(t.HoldBinding)
	case config.MultiBinding:
		for _, b := range t.Bindings {
			if a.isPointerKey(b) {
				return true
			}
		}
	case config.LayerBinding:
		return a.isPointerLayer(t.Layer)
	case config.ToggleLayerBinding:
		return a.isPointerLayer(t.Layer)
	}
	return false
}

func (a *ActivityHandler) isPointerLayer(name string) bool {
	i, ok := a.conf.LayerIndex(name)
	if !ok {
		return false
	}
	switch a.conf.Layers[i].Pointer {
	case pointer.ModeScroll, pointer.ModeVolume, pointer.ModeTab:
		return true
	}
	return false
}
