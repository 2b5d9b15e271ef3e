// Package trackball reads relative motion and buttons from a grabbed evdev pointer
// and hands them out as one pointer.Sample per poll.
package trackball

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/e82eric/pointerlayer/keyboard"
	"github.com/e82eric/pointerlayer/pointer"
	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

type Device struct {
	deviceName string
	device     *evdev.InputDevice
	open       atomic.Bool

	mu      sync.Mutex
	dx      int32
	dy      int32
	buttons pointer.Buttons
}

func NewDevice(device *evdev.InputDevice) *Device {
	return &Device{
		deviceName: device.Fn,
		device:     device,
	}
}

// Grab grabs the device exclusively and starts reading from it.
func (d *Device) Grab() error {
	if err := d.device.Grab(); err != nil {
		return err
	}
	log.Debugf("Trackball: grabbed %s (%s)", d.device.Fn, d.device.Name)
	d.open.Store(true)
	go d.readLoop()
	return nil
}

func (d *Device) readLoop() {
	for d.open.Load() {
		events, err := d.device.Read()
		if err != nil {
			if d.open.Load() {
				log.Warnf("Failed to read trackball %s: %v", d.deviceName, err)
			}
			d.open.Store(false)
			return
		}
		d.mu.Lock()
		for _, event := range events {
			d.handleEvent(event)
		}
		d.mu.Unlock()
	}
}

var buttonCodes = map[uint16]pointer.Buttons{
	evdev.BTN_LEFT:   pointer.ButtonLeft,
	evdev.BTN_RIGHT:  pointer.ButtonRight,
	evdev.BTN_MIDDLE: pointer.ButtonMiddle,
}

func (d *Device) handleEvent(event evdev.InputEvent) {
	switch event.Type {
	case evdev.EV_REL:
		switch event.Code {
		case evdev.REL_X:
			d.dx = saturatingAdd(d.dx, event.Value)
		case evdev.REL_Y:
			d.dy = saturatingAdd(d.dy, event.Value)
		}
	case evdev.EV_KEY:
		button, ok := buttonCodes[event.Code]
		if !ok {
			return
		}
		switch event.Value {
		case 1:
			d.buttons |= button
		case 0:
			d.buttons &^= button
		}
	}
}

// Drain returns the motion since the last call and the buttons held now.
func (d *Device) Drain() pointer.Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := pointer.Sample{
		DX:      clamp(d.dx),
		DY:      clamp(d.dy),
		Buttons: d.buttons,
	}
	d.dx, d.dy = 0, 0
	return s
}

// Close releases the grab, which also ends the read loop.
func (d *Device) Close() {
	if !d.open.Swap(false) {
		return
	}
	if err := d.device.Release(); err != nil {
		log.Warnf("Failed to release trackball %s: %v", d.deviceName, err)
	}
	_ = d.device.File.Close()
}

func (d *Device) DeviceName() string {
	return d.deviceName
}

func (d *Device) IsOpen() bool {
	return d.open.Load()
}

// IsPointer matches devices that report relative X motion.
func IsPointer(dev *evdev.InputDevice) bool {
	return keyboard.HasCapability(dev, evdev.EV_REL, evdev.REL_X)
}

// Merge combines the samples of several devices into one.
func Merge(samples ...pointer.Sample) pointer.Sample {
	var dx, dy int32
	var buttons pointer.Buttons
	for _, s := range samples {
		dx += int32(s.DX)
		dy += int32(s.DY)
		buttons |= s.Buttons
	}
	return pointer.Sample{DX: clamp(dx), DY: clamp(dy), Buttons: buttons}
}

func saturatingAdd(a, b int32) int32 {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 {
		return math.MaxInt32
	}
	if sum < math.MinInt32 {
		return math.MinInt32
	}
	return int32(sum)
}

func clamp(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
