// Package activity decides from the event stream alone whether the user is
// typing or using the pointer.
//
// The controller is a three-state machine:
//
//	Inactive --motion (reentry gate and quiet window elapsed)--> Pending
//	Pending  --motion at least Dwell after the first one-------> Active
//	Active   --motion or scroll---------------------------------> Active (refreshed)
//	Active   --Linger without motion or scroll-----------------> Inactive
//	Pending  --PendingWindow without motion--------------------> Inactive
//	any      --non-pointer key press----------------------------> Inactive
//
// Timeouts are applied lazily at the start of every call, there is no
// background timer. All methods take the current time so that a sequence of
// events can be replayed without a real clock.
package activity

import (
	"github.com/e82eric/pointerlayer/clock"

	log "github.com/sirupsen/logrus"
)

type State int

const (
	Inactive State = iota
	Pending
	Active
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Pending:
		return "pending"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Config holds the timing constants of the controller. They are independent
// of each other and only tuned empirically.
type Config struct {
	// QuietWindow is how long after a non-pointer key press motion is ignored.
	QuietWindow clock.Millis
	// Dwell is the minimum time between the first and the confirming motion sample.
	Dwell clock.Millis
	// PendingWindow is how long a pending burst survives without further motion.
	PendingWindow clock.Millis
	// Linger is how long the active state survives without motion or scroll.
	Linger clock.Millis
	// Reentry is the minimum time between leaving the active state and starting a new burst.
	Reentry clock.Millis
}

func DefaultConfig() Config {
	return Config{
		QuietWindow:   300,
		Dwell:         30,
		PendingWindow: 150,
		Linger:        1000,
		Reentry:       100,
	}
}

type Controller struct {
	cfg   Config
	state State

	lastQualifying clock.Millis
	pendingSince   clock.Millis

	// quiet fires on every non-pointer key press, reentry whenever the active state is left
	quiet   clock.Gate
	reentry clock.Gate
}

func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:     cfg,
		state:   Inactive,
		quiet:   clock.NewGate(cfg.QuietWindow),
		reentry: clock.NewGate(cfg.Reentry),
	}
}

// State returns the state as of the last call, without applying timeouts.
func (c *Controller) State() State {
	return c.state
}

// OnNonPointerKeyPress forces the inactive state; typing always wins.
func (c *Controller) OnNonPointerKeyPress(now clock.Millis) {
	c.expire(now)
	if c.state == Active {
		c.reentry.Fire(now)
	}
	c.setState(Inactive)
	c.quiet.Fire(now)
}

// OnPointerMotion registers a pointer sample with non-zero motion.
func (c *Controller) OnPointerMotion(now clock.Millis) {
	c.expire(now)
	switch c.state {
	case Inactive:
		if c.reentry.Ready(now) && c.quiet.Ready(now) {
			c.pendingSince = now
			c.lastQualifying = now
			c.setState(Pending)
		}
	case Pending:
		c.lastQualifying = now
		if clock.Elapsed(now, c.pendingSince) >= c.cfg.Dwell {
			c.setState(Active)
		}
	case Active:
		c.lastQualifying = now
	}
}

// OnScrollMotion registers a scroll sample. It keeps a burst alive but never starts one.
func (c *Controller) OnScrollMotion(now clock.Millis) {
	c.expire(now)
	if c.state != Inactive {
		c.lastQualifying = now
	}
}

// IsActive reports whether mouse mode is engaged at now.
func (c *Controller) IsActive(now clock.Millis) bool {
	c.expire(now)
	return c.state == Active
}

// expire applies the timeouts that lapsed since the last call.
func (c *Controller) expire(now clock.Millis) {
	switch c.state {
	case Pending:
		if clock.Elapsed(now, c.lastQualifying) > c.cfg.PendingWindow {
			c.setState(Inactive)
		}
	case Active:
		if clock.Elapsed(now, c.lastQualifying) > c.cfg.Linger {
			c.reentry.Fire(c.lastQualifying + c.cfg.Linger)
			c.setState(Inactive)
		}
	}
}

func (c *Controller) setState(s State) {
	if s != c.state {
		log.Debugf("Activity: %v -> %v", c.state, s)
		c.state = s
	}
}
