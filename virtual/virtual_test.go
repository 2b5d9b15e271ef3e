package virtual

import (
	"fmt"
	"testing"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/pointer"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/jbensmann/uinput"
	"github.com/stretchr/testify/assert"
)

// fakeKeyboard records the calls, methods that are not overridden panic.
type fakeKeyboard struct {
	uinput.Keyboard
	calls []string
}

func (f *fakeKeyboard) KeyDown(key int) error {
	f.calls = append(f.calls, fmt.Sprintf("down %d", key))
	return nil
}

func (f *fakeKeyboard) KeyUp(key int) error {
	f.calls = append(f.calls, fmt.Sprintf("up %d", key))
	return nil
}

func (f *fakeKeyboard) Close() error {
	return nil
}

type fakeMouse struct {
	uinput.Mouse
	calls []string
}

func (f *fakeMouse) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakeMouse) Move(x, y int32) error { return f.record("move %d %d", x, y) }
func (f *fakeMouse) Wheel(horizontal bool, delta int32) error {
	return f.record("wheel %v %d", horizontal, delta)
}
func (f *fakeMouse) WheelHighRes(horizontal bool, delta int32) error {
	return f.record("wheelHighRes %v %d", horizontal, delta)
}
func (f *fakeMouse) LeftPress() error     { return f.record("left press") }
func (f *fakeMouse) LeftRelease() error   { return f.record("left release") }
func (f *fakeMouse) RightPress() error    { return f.record("right press") }
func (f *fakeMouse) RightRelease() error  { return f.record("right release") }
func (f *fakeMouse) MiddlePress() error   { return f.record("middle press") }
func (f *fakeMouse) MiddleRelease() error { return f.record("middle release") }
func (f *fakeMouse) Close() error         { return nil }

func TestKeyboardTap(t *testing.T) {
	fake := &fakeKeyboard{}
	k := newKeyboard(fake)
	k.Tap([]uint16{evdev.KEY_LEFTCTRL, evdev.KEY_LEFTSHIFT, evdev.KEY_TAB})
	assert.Equal(t, []string{
		fmt.Sprintf("down %d", evdev.KEY_LEFTCTRL),
		fmt.Sprintf("down %d", evdev.KEY_LEFTSHIFT),
		fmt.Sprintf("down %d", evdev.KEY_TAB),
		fmt.Sprintf("up %d", evdev.KEY_TAB),
		fmt.Sprintf("up %d", evdev.KEY_LEFTSHIFT),
		fmt.Sprintf("up %d", evdev.KEY_LEFTCTRL),
	}, fake.calls)
}

func TestKeyboardPressKeys(t *testing.T) {
	fake := &fakeKeyboard{}
	k := newKeyboard(fake)
	k.PressKeys(evdev.KEY_A, []uint16{evdev.KEY_LEFTCTRL, evdev.KEY_C})
	k.OriginalKeyUp(evdev.KEY_B)
	assert.Len(t, fake.calls, 2, "releasing another key changes nothing")

	k.OriginalKeyUp(evdev.KEY_A)
	assert.Equal(t, []string{
		fmt.Sprintf("down %d", evdev.KEY_LEFTCTRL),
		fmt.Sprintf("down %d", evdev.KEY_C),
		fmt.Sprintf("up %d", evdev.KEY_LEFTCTRL),
		fmt.Sprintf("up %d", evdev.KEY_C),
	}, fake.calls)
}

func TestKeyboardModifiersReleasedByNextCombo(t *testing.T) {
	fake := &fakeKeyboard{}
	k := newKeyboard(fake)
	k.PressKeys(evdev.KEY_A, []uint16{evdev.KEY_LEFTCTRL, evdev.KEY_C})
	k.PressKeys(evdev.KEY_B, []uint16{evdev.KEY_V})
	assert.Equal(t, fmt.Sprintf("up %d", evdev.KEY_LEFTCTRL), fake.calls[2])
	assert.Equal(t, fmt.Sprintf("down %d", evdev.KEY_V), fake.calls[3])
}

func TestMouseReport(t *testing.T) {
	fake := &fakeMouse{}
	m := newMouse(fake)

	m.Report(pointer.Report{X: 3, Y: -2})
	m.Report(pointer.Report{V: -1, H: 2})
	m.Report(pointer.Report{})
	assert.Equal(t, []string{
		"move 3 -2",
		"wheelHighRes true 240",
		"wheel true 2",
		"wheelHighRes false -120",
		"wheel false -1",
	}, fake.calls)
}

func TestMouseReportButtonEdges(t *testing.T) {
	fake := &fakeMouse{}
	m := newMouse(fake)

	m.Report(pointer.Report{Buttons: pointer.ButtonLeft})
	m.Report(pointer.Report{Buttons: pointer.ButtonLeft | pointer.ButtonMiddle})
	m.Report(pointer.Report{Buttons: pointer.ButtonMiddle})
	m.Report(pointer.Report{})
	assert.Equal(t, []string{
		"left press",
		"middle press",
		"left release",
		"middle release",
	}, fake.calls)
}

func TestMouseButtonPress(t *testing.T) {
	fake := &fakeMouse{}
	m := newMouse(fake)

	m.ButtonPress(evdev.KEY_J, config.ButtonRight)
	m.OriginalKeyUp(evdev.KEY_K)
	m.OriginalKeyUp(evdev.KEY_J)
	m.OriginalKeyUp(evdev.KEY_J)
	assert.Equal(t, []string{"right press", "right release"}, fake.calls)
}
