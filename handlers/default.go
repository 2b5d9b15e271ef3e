package handlers

import (
	"github.com/e82eric/pointerlayer/config"
	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

// DefaultHandler resolves key presses that are still unbound with the bindings of the active layers.
type DefaultHandler struct {
	BaseHandler
}

func NewDefaultHandler() *DefaultHandler {
	return &DefaultHandler{}
}

func (d *DefaultHandler) HandleEvent(eventBinding EventBinding) {
	log.Debugf("DefaultHandler: handling Event: %+v", eventBinding)
	event := eventBinding.Event

	if event.IsPress && eventBinding.Binding == nil {
		eventBinding.Binding = d.resolve(event.Code)
	}

	d.next.HandleEvent(eventBinding)
}

func (d *DefaultHandler) resolve(code uint16) config.Binding {
	currentLayer := d.layerManager.LayerFor(code)
	if binding, ok := currentLayer.Bindings[code]; ok {
		return binding
	}

	// escape leads back to the base layer, unless it is mapped to something else
	baseLayer := d.layerManager.BaseLayer()
	if code == evdev.KEY_ESC && currentLayer != baseLayer {
		return config.LayerBinding{Layer: baseLayer.Name}
	}

	if currentLayer.WildcardBinding != nil {
		return currentLayer.WildcardBinding
	}
	if currentLayer.PassThrough {
		return config.KeyBinding{KeyCombo: []uint16{code}}
	}
	return nil
}
