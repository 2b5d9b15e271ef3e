// Package handlers contains the chain that resolves key events to bindings
// before they are executed.
package handlers

import (
	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/keyboard"
)

// EventBinding is a key event together with the binding it resolved to, if any yet.
type EventBinding struct {
	Event   keyboard.Event
	Binding config.Binding
}

type LayerManager interface {
	// LayerFor returns the active layer that decides what the key does. Transparent layers
	// leave keys they do not bind to the layers below them.
	LayerFor(code uint16) *config.Layer
	BaseLayer() *config.Layer
}

// HoldThresholds provides the tapping term of dual-role keys.
type HoldThresholds interface {
	HoldThreshold(code uint16) clock.Millis
}

type EventHandler interface {
	HandleEvent(event EventBinding)
	SetNextHandler(handler EventHandler)
	SetLayerManager(manager LayerManager)
}

type BaseHandler struct {
	next         EventHandler
	layerManager LayerManager
}

func (b *BaseHandler) SetNextHandler(handler EventHandler) {
	b.next = handler
}

func (b *BaseHandler) SetLayerManager(manager LayerManager) {
	b.layerManager = manager
}

// mappedBinding returns the binding attached to the event, or the one of the active layers.
func (b *BaseHandler) mappedBinding(eventBinding EventBinding) config.Binding {
	if eventBinding.Binding != nil {
		return eventBinding.Binding
	}
	code := eventBinding.Event.Code
	return b.layerManager.LayerFor(code).Bindings[code]
}

// Chain links the handlers in the given order and sets the layer manager of each.
func Chain(manager LayerManager, handlers ...EventHandler) EventHandler {
	for i, h := range handlers {
		h.SetLayerManager(manager)
		if i+1 < len(handlers) {
			h.SetNextHandler(handlers[i+1])
		}
	}
	return handlers[0]
}
