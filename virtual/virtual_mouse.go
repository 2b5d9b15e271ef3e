package virtual

import (
	"sync"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/pointer"
	"github.com/jbensmann/uinput"
	log "github.com/sirupsen/logrus"
)

const (
	mouseName = "pointerlayer"
	// one wheel click corresponds to 120 high-resolution steps
	highResStepsPerClick = 120
)

var reportButtons = []struct {
	bit    pointer.Buttons
	button config.MouseButton
}{
	{pointer.ButtonLeft, config.ButtonLeft},
	{pointer.ButtonRight, config.ButtonRight},
	{pointer.ButtonMiddle, config.ButtonMiddle},
}

// Mouse writes pointer reports and key-driven button presses to a uinput mouse.
type Mouse struct {
	mu          sync.Mutex
	uinputMouse uinput.Mouse

	isButtonPressed map[config.MouseButton]bool
	buttonsByKeys   map[uint16]config.MouseButton
	// buttons held by the last report
	reported pointer.Buttons
}

func NewMouse() (*Mouse, error) {
	um, err := uinput.CreateMouse("/dev/uinput", []byte(mouseName))
	if err != nil {
		return nil, err
	}
	return newMouse(um), nil
}

func newMouse(um uinput.Mouse) *Mouse {
	return &Mouse{
		uinputMouse:     um,
		isButtonPressed: make(map[config.MouseButton]bool),
		buttonsByKeys:   make(map[uint16]config.MouseButton),
	}
}

// Report moves, scrolls and presses or releases the buttons that changed since the last report.
func (m *Mouse) Report(r pointer.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.X != 0 || r.Y != 0 {
		log.Debugf("Mouse: move %v %v", r.X, r.Y)
		if err := m.uinputMouse.Move(int32(r.X), int32(r.Y)); err != nil {
			log.Warnf("Mouse: move failed: %v", err)
		}
	}
	m.wheel(true, r.H)
	m.wheel(false, r.V)

	changed := r.Buttons ^ m.reported
	for _, b := range reportButtons {
		if changed&b.bit == 0 {
			continue
		}
		if r.Buttons&b.bit != 0 {
			m.press(b.button)
		} else {
			m.release(b.button)
		}
	}
	m.reported = r.Buttons
}

func (m *Mouse) wheel(horizontal bool, clicks int16) {
	if clicks == 0 {
		return
	}
	log.Debugf("Mouse: scroll (horizontal %v) %v", horizontal, clicks)
	if err := m.uinputMouse.WheelHighRes(horizontal, int32(clicks)*highResStepsPerClick); err != nil {
		log.Warnf("Mouse: scroll failed: %v", err)
	}
	if err := m.uinputMouse.Wheel(horizontal, int32(clicks)); err != nil {
		log.Warnf("Mouse: scroll failed: %v", err)
	}
}

// ButtonPress holds the button until triggeredByKey is released.
func (m *Mouse) ButtonPress(triggeredByKey uint16, button config.MouseButton) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buttonsByKeys[triggeredByKey] = button
	m.press(button)
}

func (m *Mouse) OriginalKeyUp(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if button, ok := m.buttonsByKeys[code]; ok {
		if m.isButtonPressed[button] {
			m.release(button)
		}
		delete(m.buttonsByKeys, code)
	}
}

func (m *Mouse) press(button config.MouseButton) {
	var err error
	log.Debugf("Mouse: pressing %v", button)
	switch button {
	case config.ButtonLeft:
		err = m.uinputMouse.LeftPress()
	case config.ButtonMiddle:
		err = m.uinputMouse.MiddlePress()
	case config.ButtonRight:
		err = m.uinputMouse.RightPress()
	default:
		log.Warnf("Mouse: unknown button: %v", button)
	}
	if err != nil {
		log.Warnf("Mouse: button press failed: %v", err)
	}
	m.isButtonPressed[button] = true
}

func (m *Mouse) release(button config.MouseButton) {
	var err error
	log.Debugf("Mouse: releasing %v", button)
	switch button {
	case config.ButtonLeft:
		err = m.uinputMouse.LeftRelease()
	case config.ButtonMiddle:
		err = m.uinputMouse.MiddleRelease()
	case config.ButtonRight:
		err = m.uinputMouse.RightRelease()
	default:
		log.Warnf("Mouse: unknown button: %v", button)
	}
	if err != nil {
		log.Warnf("Mouse: button release failed: %v", err)
	}
	delete(m.isButtonPressed, button)
}

func (m *Mouse) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.uinputMouse.Close()
}
