// Package keyboard reads key events from grabbed evdev keyboards.
package keyboard

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/e82eric/pointerlayer/config"
	evdev "github.com/gvalkov/golang-evdev"
	log "github.com/sirupsen/logrus"
)

type Event struct {
	Code    uint16
	IsPress bool
	Time    time.Time
}

type DeviceState int32

const (
	StateNotOpen DeviceState = iota
	StateOpenFailed
	StateOpen
)

type Device struct {
	deviceName    string
	device        *evdev.InputDevice
	state         atomic.Int32
	lastOpenError string
	eventChan     chan<- Event
}

func NewKeyboardDevice(device *evdev.InputDevice, eventChan chan<- Event) *Device {
	return &Device{
		deviceName: device.Fn,
		device:     device,
		eventChan:  eventChan,
	}
}

// GrabDevice grabs the device exclusively and starts forwarding its key events.
func (k *Device) GrabDevice() error {
	if err := k.device.Grab(); err != nil {
		k.lastOpenError = err.Error()
		k.state.Store(int32(StateOpenFailed))
		return err
	}

	log.Debugf("Device name: %s", k.device.Fn)
	log.Debugf("Evdev protocol version: %d", k.device.EvdevVersion)
	log.Debugf("Device info: %s", describe(k.device))

	k.state.Store(int32(StateOpen))
	go k.readLoop()
	return nil
}

// readLoop reads from the device until it disconnects or is closed.
func (k *Device) readLoop() {
	for k.IsOpen() {
		events, err := k.device.Read()
		if err != nil {
			if k.IsOpen() {
				log.Warnf("Failed to read keyboard %s: %v", k.deviceName, err)
			}
			k.state.Store(int32(StateNotOpen))
			return
		}
		for _, event := range events {
			e, ok := convert(event)
			if !ok {
				continue
			}
			k.eventChan <- e
		}
	}
}

// convert turns presses and releases into an Event, autorepeats and other event types are dropped.
func convert(event evdev.InputEvent) (Event, bool) {
	if event.Type != evdev.EV_KEY || (event.Value != 0 && event.Value != 1) {
		return Event{}, false
	}
	alias, exists := config.GetKeyAlias(event.Code)
	if !exists {
		alias = "?"
	}
	if event.Value == 1 {
		log.Debugf("Pressed:  %s (%d)", alias, event.Code)
	} else {
		log.Debugf("Released: %s (%d)", alias, event.Code)
	}
	return Event{
		Code:    event.Code,
		IsPress: event.Value == 1,
		Time:    time.Now(),
	}, true
}

// Close releases the grab, which also ends the read loop.
func (k *Device) Close() {
	if k.state.Swap(int32(StateNotOpen)) != int32(StateOpen) {
		return
	}
	if err := k.device.Release(); err != nil {
		log.Warnf("Failed to release keyboard %s: %v", k.deviceName, err)
	}
	_ = k.device.File.Close()
}

// DeviceName returns the name of the keyboard device.
func (k *Device) DeviceName() string {
	return k.deviceName
}

// IsOpen returns true if the device has been opened successfully.
func (k *Device) IsOpen() bool {
	return DeviceState(k.state.Load()) == StateOpen
}

// LastOpenError returns the last error on opening the device.
func (k *Device) LastOpenError() string {
	return k.lastOpenError
}

// FindDevices lists the input devices for which match returns true.
func FindDevices(match func(*evdev.InputDevice) bool) []*evdev.InputDevice {
	devices, err := evdev.ListInputDevices("/dev/input/event*")
	if err != nil {
		log.Warnf("Failed to list input devices: %v", err)
	}
	var found []*evdev.InputDevice
	for _, dev := range devices {
		if match(dev) {
			found = append(found, dev)
		}
	}
	return found
}

// HasCapability returns true if the device supports the given code of the event type.
func HasCapability(dev *evdev.InputDevice, eventType int, codes ...int) bool {
	for capType, caps := range dev.Capabilities {
		if capType.Type != eventType {
			continue
		}
		for _, c := range caps {
			for _, code := range codes {
				if c.Code == code {
					return true
				}
			}
		}
	}
	return false
}

// IsKeyboard matches devices that have at least an A key or a 1 key.
func IsKeyboard(dev *evdev.InputDevice) bool {
	return HasCapability(dev, evdev.EV_KEY, evdev.KEY_A, evdev.KEY_KP1)
}

func describe(dev *evdev.InputDevice) string {
	return fmt.Sprintf("bus 0x%04x, vendor 0x%04x, product 0x%04x, version 0x%04x",
		dev.Bustype, dev.Vendor, dev.Product, dev.Version)
}
