package pointer

import (
	"math"

	"github.com/e82eric/pointerlayer/clock"

	log "github.com/sirupsen/logrus"
)

// Activity is informed about qualifying motion and decides whether clicks are real clicks.
type Activity interface {
	OnPointerMotion(now clock.Millis)
	OnScrollMotion(now clock.Millis)
	IsActive(now clock.Millis) bool
}

// LayerSource provides the highest active layer.
type LayerSource interface {
	CurrentLayer() int
}

// Transformer turns one raw sample per polling tick into a report and synthetic key taps.
type Transformer struct {
	cfg      Config
	activity Activity
	layers   LayerSource

	motion Accumulator
	scroll Accumulator

	// the left button is muted from the press that started while the pointer was idle until its release
	leftHeld  bool
	leftMuted bool

	click  clock.Gate
	volume clock.Gate
	tab    clock.Gate
}

// New creates a transformer, the config is validated first.
func New(cfg Config, activity Activity, layers LayerSource) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := Transformer{
		cfg:      cfg,
		activity: activity,
		layers:   layers,
		click:    clock.NewGate(cfg.ClickDebounce),
		volume:   clock.NewGate(cfg.VolumeDebounce),
		tab:      clock.NewGate(cfg.TabDebounce),
	}
	return &t, nil
}

// Transform handles the sample of one polling tick.
func (t *Transformer) Transform(sample Sample, now clock.Millis) Output {
	mode := t.cfg.ModeFor(t.layers.CurrentLayer())

	out := Output{Report: Report{Buttons: sample.Buttons}}
	t.trackClick(sample, mode, now, &out)
	switch mode {
	case ModeMotion:
		t.move(sample, now, &out)
	case ModeScroll:
		t.scrollBy(sample, now, &out)
	case ModeVolume:
		t.gesture(sample, now, &t.volume, t.cfg.VolumeUpChord, t.cfg.VolumeDownChord, &out)
	case ModeTab:
		t.gesture(sample, now, &t.tab, t.cfg.PreviousTabChord, t.cfg.NextTabChord, &out)
	case ModeStill:
	}

	if !out.Report.IsZero() || len(out.Taps) > 0 {
		log.Debugf("Transformer: %v %+v -> %+v taps %v", mode, sample, out.Report, out.Taps)
	}
	return out
}

// trackClick turns a left click that starts in motion mode while the pointer is not in use into
// a mute tap. The decision is made on the press and holds until the release.
func (t *Transformer) trackClick(sample Sample, mode Mode, now clock.Millis, out *Output) {
	if sample.Buttons&ButtonLeft == 0 {
		t.leftHeld = false
		t.leftMuted = false
		return
	}
	if !t.leftHeld {
		t.leftHeld = true
		t.leftMuted = mode == ModeMotion && !t.activity.IsActive(now)
		if t.leftMuted && t.click.TryFire(now) {
			out.Taps = append(out.Taps, t.cfg.MuteChord)
		}
	}
	if t.leftMuted {
		out.Report.Buttons &^= ButtonLeft
	}
}

// move applies the acceleration bands.
func (t *Transformer) move(sample Sample, now clock.Millis, out *Output) {
	if sample.DX == 0 && sample.DY == 0 {
		return
	}
	dx, dy := float64(sample.DX), float64(sample.DY)
	gain := t.cfg.Gain(math.Hypot(dx, dy))
	out.Report.X, out.Report.Y = t.motion.Add(dx*gain, dy*gain)
	if out.Report.X != 0 || out.Report.Y != 0 {
		t.activity.OnPointerMotion(now)
	}
}

// scrollBy turns motion into wheel steps. The direction is inverted, moving the ball down scrolls up.
func (t *Transformer) scrollBy(sample Sample, now clock.Millis, out *Output) {
	dx, dy := float64(sample.DX), float64(sample.DY)
	out.Report.H, out.Report.V = t.scroll.Add(-dx/t.cfg.ScrollDivisorH, -dy/t.cfg.ScrollDivisorV)
	if (dx != 0 || dy != 0) && math.Hypot(dx, dy) > t.cfg.ScrollThreshold {
		t.activity.OnScrollMotion(now)
	}
}

// gesture taps up or down when the vertical motion exceeds the threshold, at most once per gate interval.
func (t *Transformer) gesture(sample Sample, now clock.Millis, gate *clock.Gate, up Chord, down Chord, out *Output) {
	dy := sample.DY
	if dy <= t.cfg.GestureThreshold && dy >= -t.cfg.GestureThreshold {
		return
	}
	if !gate.TryFire(now) {
		return
	}
	if dy < 0 {
		out.Taps = append(out.Taps, up)
	} else {
		out.Taps = append(out.Taps, down)
	}
}

// ScrollResidue returns the scroll motion that has not been emitted yet.
func (t *Transformer) ScrollResidue() (float64, float64) {
	return t.scroll.Residue()
}
