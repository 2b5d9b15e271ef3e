package trackball

import (
	"math"
	"testing"

	"github.com/e82eric/pointerlayer/pointer"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
)

func rel(code uint16, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_REL, Code: code, Value: value}
}

func key(code uint16, value int32) evdev.InputEvent {
	return evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
}

func TestDrainSumsMotion(t *testing.T) {
	d := &Device{}
	for _, e := range []evdev.InputEvent{rel(evdev.REL_X, 3), rel(evdev.REL_Y, -2), rel(evdev.REL_X, 4), rel(evdev.REL_WHEEL, 1)} {
		d.handleEvent(e)
	}
	assert.Equal(t, pointer.Sample{DX: 7, DY: -2}, d.Drain())
	assert.Equal(t, pointer.Sample{}, d.Drain(), "motion is reset after draining")
}

func TestDrainClamps(t *testing.T) {
	d := &Device{}
	d.handleEvent(rel(evdev.REL_X, 40000))
	d.handleEvent(rel(evdev.REL_Y, -40000))
	assert.Equal(t, pointer.Sample{DX: math.MaxInt16, DY: math.MinInt16}, d.Drain())

	d.handleEvent(rel(evdev.REL_X, math.MaxInt32))
	d.handleEvent(rel(evdev.REL_X, 1))
	assert.Equal(t, int16(math.MaxInt16), d.Drain().DX)
}

func TestButtonsAreHeld(t *testing.T) {
	d := &Device{}
	d.handleEvent(key(evdev.BTN_LEFT, 1))
	d.handleEvent(key(evdev.BTN_MIDDLE, 1))
	assert.Equal(t, pointer.ButtonLeft|pointer.ButtonMiddle, d.Drain().Buttons)
	assert.Equal(t, pointer.ButtonLeft|pointer.ButtonMiddle, d.Drain().Buttons, "buttons stay down until released")

	d.handleEvent(key(evdev.BTN_LEFT, 0))
	d.handleEvent(key(evdev.BTN_RIGHT, 2)) // autorepeat
	d.handleEvent(key(evdev.KEY_A, 1))
	assert.Equal(t, pointer.ButtonMiddle, d.Drain().Buttons)
}

func TestMerge(t *testing.T) {
	merged := Merge(
		pointer.Sample{DX: 30000, DY: 1, Buttons: pointer.ButtonLeft},
		pointer.Sample{DX: 30000, DY: -3, Buttons: pointer.ButtonRight},
	)
	assert.Equal(t, pointer.Sample{DX: math.MaxInt16, DY: -2, Buttons: pointer.ButtonLeft | pointer.ButtonRight}, merged)
}
