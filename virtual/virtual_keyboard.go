// Package virtual emits key and pointer events through uinput devices.
package virtual

import (
	"sync"

	"github.com/e82eric/pointerlayer/config"
	"github.com/jbensmann/uinput"
	log "github.com/sirupsen/logrus"
)

const keyboardName = "pointerlayer keyboard"

// Keyboard presses keys on behalf of physical keys and releases them with the physical key.
// It also taps whole chords, used for macros and pointer gestures.
type Keyboard struct {
	mu sync.Mutex

	uinputKeyboard   uinput.Keyboard
	isPressed        map[uint16]bool
	pressedModifiers map[uint16]bool
	triggeredKeys    map[uint16][]uint16
}

func NewKeyboard() (*Keyboard, error) {
	uk, err := uinput.CreateKeyboard("/dev/uinput", []byte(keyboardName))
	if err != nil {
		return nil, err
	}
	return newKeyboard(uk), nil
}

func newKeyboard(uk uinput.Keyboard) *Keyboard {
	return &Keyboard{
		uinputKeyboard:   uk,
		isPressed:        make(map[uint16]bool),
		pressedModifiers: make(map[uint16]bool),
		triggeredKeys:    make(map[uint16][]uint16),
	}
}

// PressKeys holds codes down until triggeredByKey is released. All but the last code are modifiers
// which are released as soon as another combination is pressed.
func (v *Keyboard) PressKeys(triggeredByKey uint16, codes []uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.triggeredKeys[triggeredByKey] = append(v.triggeredKeys[triggeredByKey], codes...)
	for c := range v.pressedModifiers {
		v.releaseKey(c)
	}
	for i, c := range codes {
		v.pressKey(c)
		if i < len(codes)-1 {
			v.pressedModifiers[c] = true
		}
	}
}

// Tap presses the chord in order and releases it in reverse order.
func (v *Keyboard) Tap(chord []uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for c := range v.pressedModifiers {
		v.releaseKey(c)
	}
	for _, c := range chord {
		v.pressKey(c)
	}
	for i := len(chord) - 1; i >= 0; i-- {
		v.releaseKey(chord[i])
	}
}

func (v *Keyboard) pressKey(code uint16) {
	alias, _ := config.GetKeyAlias(code)
	log.Debugf("Keyboard: pressing %v (%v)", alias, code)
	if err := v.uinputKeyboard.KeyDown(int(code)); err != nil {
		log.Warnf("Keyboard: failed to press the key %v: %v", code, err)
	}
	v.isPressed[code] = true
}

func (v *Keyboard) releaseKey(code uint16) {
	alias, _ := config.GetKeyAlias(code)
	log.Debugf("Keyboard: releasing %v (%v)", alias, code)
	if err := v.uinputKeyboard.KeyUp(int(code)); err != nil {
		log.Warnf("Keyboard: failed to release the key %v: %v", code, err)
	}
	delete(v.isPressed, code)
	delete(v.pressedModifiers, code)
}

// OriginalKeyUp releases everything that the physical key pressed.
func (v *Keyboard) OriginalKeyUp(code uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()

	codes, ok := v.triggeredKeys[code]
	if !ok {
		return
	}
	for _, c := range codes {
		if v.isPressed[c] {
			v.releaseKey(c)
		}
	}
	delete(v.triggeredKeys, code)
}

func (v *Keyboard) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	_ = v.uinputKeyboard.Close()
}
