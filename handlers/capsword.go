package handlers

import (
	"sync"
	"time"

	"github.com/e82eric/pointerlayer/config"
	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

var capsWordLetters = map[uint16]bool{
	evdev.KEY_A: true, evdev.KEY_B: true, evdev.KEY_C: true, evdev.KEY_D: true, evdev.KEY_E: true,
	evdev.KEY_F: true, evdev.KEY_G: true, evdev.KEY_H: true, evdev.KEY_I: true, evdev.KEY_J: true,
	evdev.KEY_K: true, evdev.KEY_L: true, evdev.KEY_M: true, evdev.KEY_N: true, evdev.KEY_O: true,
	evdev.KEY_P: true, evdev.KEY_Q: true, evdev.KEY_R: true, evdev.KEY_S: true, evdev.KEY_T: true,
	evdev.KEY_U: true, evdev.KEY_V: true, evdev.KEY_W: true, evdev.KEY_X: true, evdev.KEY_Y: true,
	evdev.KEY_Z: true,
	// shifted to an underscore
	evdev.KEY_MINUS: true,
}

// keys that continue a word without being shifted
var capsWordContinue = map[uint16]bool{
	evdev.KEY_1: true, evdev.KEY_2: true, evdev.KEY_3: true, evdev.KEY_4: true, evdev.KEY_5: true,
	evdev.KEY_6: true, evdev.KEY_7: true, evdev.KEY_8: true, evdev.KEY_9: true, evdev.KEY_0: true,
	evdev.KEY_BACKSPACE: true, evdev.KEY_DELETE: true,
	evdev.KEY_LEFTSHIFT: true, evdev.KEY_RIGHTSHIFT: true,
}

// CapsWordHandler shifts letters while caps word is on. Caps word ends with the first key that is
// not part of a word, or after the timeout without a key press. It needs resolved bindings, so
// it comes after the default handler.
type CapsWordHandler struct {
	BaseHandler

	mu      sync.Mutex
	timeout time.Duration
	active  bool
	timer   *time.Timer
}

func NewCapsWordHandler(timeoutMs int64) *CapsWordHandler {
	return &CapsWordHandler{
		timeout: time.Duration(timeoutMs) * time.Millisecond,
	}
}

func (c *CapsWordHandler) HandleEvent(eventBinding EventBinding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if eventBinding.Event.IsPress {
		switch binding := eventBinding.Binding.(type) {
		case config.CapsWordBinding:
			c.setActive(!c.active)
		case config.KeyBinding:
			if c.active {
				eventBinding.Binding = c.apply(eventBinding.Event.Code, binding)
			}
		case nil, config.NopBinding, config.LayerBinding, config.ToggleLayerBinding, config.TapHoldBinding:
		default:
			c.setActive(false)
		}
	}
	c.next.HandleEvent(eventBinding)
}

// apply returns the binding to execute for a key pressed during caps word.
func (c *CapsWordHandler) apply(code uint16, binding config.KeyBinding) config.Binding {
	if len(binding.KeyCombo) != 1 {
		c.setActive(false)
		return binding
	}
	key := binding.KeyCombo[0]
	if key == config.WildcardKey {
		key = code
	}
	switch {
	case capsWordLetters[key]:
		c.setActive(true)
		return config.KeyBinding{KeyCombo: []uint16{evdev.KEY_LEFTSHIFT, key}}
	case capsWordContinue[key]:
		c.setActive(true)
	default:
		c.setActive(false)
	}
	return binding
}

// setActive switches caps word on or off. Switching on again restarts the timeout.
func (c *CapsWordHandler) setActive(active bool) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if active != c.active {
		log.Debugf("CapsWordHandler: active %v", active)
	}
	c.active = active
	if !active {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer != c.timer {
			return
		}
		log.Debugf("CapsWordHandler: timed out")
		c.active = false
		c.timer = nil
	})
	c.timer = timer
}

// Active reports whether caps word is on.
func (c *CapsWordHandler) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
