// Package pointer transforms relative pointer samples depending on the active layer.
package pointer

import (
	"fmt"
	"math"
	"strings"

	"github.com/e82eric/pointerlayer/clock"
	evdev "github.com/gvalkov/golang-evdev"
)

type Buttons uint8

const (
	ButtonLeft Buttons = 1 << iota
	ButtonRight
	ButtonMiddle
)

// Sample is the raw relative motion and button state of one polling tick.
type Sample struct {
	DX, DY  int16
	Buttons Buttons
}

// Report is what is sent to the virtual mouse for one tick.
// H and V are wheel steps, V positive is up and H positive is right.
type Report struct {
	X, Y    int16
	H, V    int16
	Buttons Buttons
}

func (r Report) IsZero() bool {
	return r.X == 0 && r.Y == 0 && r.H == 0 && r.V == 0
}

// Chord is a key combination that is tapped at once, modifiers first.
type Chord []uint16

// Output is the result of transforming one sample.
type Output struct {
	Report Report
	Taps   []Chord
}

// Mode is how a layer treats pointer motion.
type Mode int

const (
	// ModeMotion passes accelerated motion through.
	ModeMotion Mode = iota
	// ModeStill swallows motion.
	ModeStill
	// ModeScroll turns motion into wheel steps.
	ModeScroll
	// ModeVolume turns vertical motion into volume key taps.
	ModeVolume
	// ModeTab turns vertical motion into tab switching chords.
	ModeTab
)

var modeNames = map[Mode]string{
	ModeMotion: "motion",
	ModeStill:  "still",
	ModeScroll: "scroll",
	ModeVolume: "volume",
	ModeTab:    "tab",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the name of a mode as used in the config file.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return ModeMotion, fmt.Errorf("unknown pointer mode '%s'", name)
}

// Config holds the constants of the transformer.
type Config struct {
	// Modes maps layer indices to modes, layers not listed use ModeMotion.
	Modes map[int]Mode

	// SlowThreshold and MidThreshold split the magnitude of a sample into three gain bands.
	SlowThreshold float64
	MidThreshold  float64
	SlowGain      float64
	MidGain       float64
	FastGain      float64

	// one wheel step per divisor units of motion
	ScrollDivisorH float64
	ScrollDivisorV float64
	// ScrollThreshold is the magnitude a scroll sample must exceed to count as activity.
	ScrollThreshold float64

	// GestureThreshold is the vertical motion a sample must exceed to trigger a volume or tab gesture.
	GestureThreshold int16
	ClickDebounce    clock.Millis
	VolumeDebounce   clock.Millis
	TabDebounce      clock.Millis

	MuteChord        Chord
	VolumeUpChord    Chord
	VolumeDownChord  Chord
	NextTabChord     Chord
	PreviousTabChord Chord
}

func DefaultConfig() Config {
	return Config{
		Modes:            map[int]Mode{},
		SlowThreshold:    4,
		MidThreshold:     12,
		SlowGain:         0.4,
		MidGain:          0.8,
		FastGain:         1.2,
		ScrollDivisorH:   8,
		ScrollDivisorV:   4,
		ScrollThreshold:  0,
		GestureThreshold: 3,
		ClickDebounce:    500,
		VolumeDebounce:   100,
		TabDebounce:      300,
		MuteChord:        Chord{evdev.KEY_MUTE},
		VolumeUpChord:    Chord{evdev.KEY_VOLUMEUP},
		VolumeDownChord:  Chord{evdev.KEY_VOLUMEDOWN},
		NextTabChord:     Chord{evdev.KEY_LEFTCTRL, evdev.KEY_TAB},
		PreviousTabChord: Chord{evdev.KEY_LEFTCTRL, evdev.KEY_LEFTSHIFT, evdev.KEY_TAB},
	}
}

// Validate checks the constants that would make the transformer misbehave.
func (c Config) Validate() error {
	if c.ScrollDivisorH == 0 || c.ScrollDivisorV == 0 {
		return fmt.Errorf("scroll divisors must not be zero")
	}
	if c.SlowGain <= 0 || c.MidGain <= 0 || c.FastGain <= 0 {
		return fmt.Errorf("gains must be positive")
	}
	if c.SlowThreshold < 0 || c.MidThreshold < c.SlowThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= slow (%v) <= mid (%v)", c.SlowThreshold, c.MidThreshold)
	}
	if c.GestureThreshold < 0 {
		return fmt.Errorf("gesture threshold must not be negative")
	}
	return nil
}

// ModeFor returns the mode of the given layer.
func (c Config) ModeFor(layer int) Mode {
	if m, ok := c.Modes[layer]; ok {
		return m
	}
	return ModeMotion
}

// Gain returns the acceleration factor for a sample with the given magnitude.
func (c Config) Gain(magnitude float64) float64 {
	switch {
	case magnitude <= c.SlowThreshold:
		return c.SlowGain
	case magnitude <= c.MidThreshold:
		return c.MidGain
	default:
		return c.FastGain
	}
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
