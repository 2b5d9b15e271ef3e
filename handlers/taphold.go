package handlers

import (
	"sync"
	"time"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/keyboard"

	log "github.com/sirupsen/logrus"
)

type TapHoldState int

const (
	TapHoldStateIdle TapHoldState = iota
	TapHoldStateWait
	TapHoldStateTap
	TapHoldStateHold
)

// TapHoldHandler decides whether a dual-role key is tapped or held. While undecided, all following
// events are held back. Bindings without an explicit timeout use the tapping term of the key.
type TapHoldHandler struct {
	BaseHandler

	mu sync.Mutex

	quickTapTime time.Duration
	thresholds   HoldThresholds

	// queue[0] is the tap-hold key while waiting; events before position have been looked at
	queue    []*EventBinding
	position int

	isPressed   map[uint16]struct{}
	lastPressed map[uint16]time.Time

	state   TapHoldState
	binding *config.TapHoldBinding
	timer   *time.Timer
	// keys that were already down when the tap-hold key was pressed
	pressedBefore map[uint16]struct{}
}

func NewTapHoldHandler(quickTapTime int64, thresholds HoldThresholds) *TapHoldHandler {
	return &TapHoldHandler{
		quickTapTime:  time.Duration(quickTapTime) * time.Millisecond,
		thresholds:    thresholds,
		state:         TapHoldStateIdle,
		isPressed:     make(map[uint16]struct{}),
		lastPressed:   make(map[uint16]time.Time),
		pressedBefore: make(map[uint16]struct{}),
	}
}

func (t *TapHoldHandler) HandleEvent(event EventBinding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, &event)
	t.processQueue()
}

func (t *TapHoldHandler) processQueue() {
	for t.position < len(t.queue) {
		t.processNext()
	}
}

// timeout resolves to hold, unless the timer has been replaced or stopped in the meantime.
func (t *TapHoldHandler) timeout(timer **time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if *timer == nil || *timer != t.timer {
		return
	}
	log.Debugf("TapHoldHandler: timed out")
	t.state = TapHoldStateHold
	t.resolve()
	t.processQueue()
}

// holdTimeout returns how long the key at the head of the queue may be held before it counts as hold.
func (t *TapHoldHandler) holdTimeout(event keyboard.Event, binding config.TapHoldBinding) time.Duration {
	timeoutMs := binding.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = int64(t.thresholds.HoldThreshold(event.Code))
	}
	// subtract what already passed since the key press
	timeout := time.Duration(timeoutMs)*time.Millisecond - time.Since(event.Time)
	return max(timeout, 0)
}

func (t *TapHoldHandler) processNext() {
	eventBinding := t.queue[t.position]
	event := eventBinding.Event
	head := t.queue[0].Event

	log.Debugf("TapHoldHandler: handling Event: %+v", eventBinding)

	if event.IsPress {
		binding, isTapHold := t.mappedBinding(*eventBinding).(config.TapHoldBinding)
		if isTapHold && t.state != TapHoldStateWait {
			t.startWaiting(event, binding)
		}
	} else if t.state == TapHoldStateWait && t.binding != nil && head.Code == event.Code {
		// released before the timeout
		t.state = TapHoldStateTap
	}

	if t.state == TapHoldStateWait && event.Code != head.Code {
		if event.IsPress && t.binding.TapOnNext {
			t.state = TapHoldStateHold
		}
		if !event.IsPress && t.binding.TapOnNextRelease {
			// a release of a key that went down after the tap-hold key
			if _, ok := t.pressedBefore[event.Code]; !ok {
				t.state = TapHoldStateHold
			}
		}
	}

	switch t.state {
	case TapHoldStateHold, TapHoldStateTap:
		t.resolve()
	case TapHoldStateIdle:
		t.forward(0)
	default:
		_, wasPressed := t.pressedBefore[event.Code]
		if !event.IsPress && wasPressed {
			// the press happened before the tap-hold key, so its release must not wait
			log.Debugf("TapHoldHandler: forwarding release of %v pressed before the tap-hold key", event.Code)
			t.forward(t.position)
		} else {
			t.position++
		}
	}
}

func (t *TapHoldHandler) startWaiting(event keyboard.Event, binding config.TapHoldBinding) {
	log.Debugf("TapHoldHandler: waiting for tap or hold")
	t.state = TapHoldStateWait
	t.binding = &binding

	t.pressedBefore = make(map[uint16]struct{}, len(t.isPressed))
	for k := range t.isPressed {
		t.pressedBefore[k] = struct{}{}
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.holdTimeout(event, binding), func() { t.timeout(&timer) })
	t.timer = timer

	// pressing the key again shortly after a tap repeats the tap
	lastPressed, ok := t.lastPressed[event.Code]
	if ok && event.Time.Before(lastPressed.Add(t.quickTapTime)) {
		log.Debugf("TapHoldHandler: quick tap detected")
		t.state = TapHoldStateTap
	}
}

// resolve attaches the tap or hold binding to the tap-hold key and starts over at the head of the queue.
func (t *TapHoldHandler) resolve() {
	if t.state != TapHoldStateTap && t.state != TapHoldStateHold {
		log.Debugf("TapHoldHandler: resolve called in state %v", t.state)
		return
	}

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	head := t.queue[0]
	if t.state == TapHoldStateHold {
		log.Debugf("TapHoldHandler: activated hold Binding")
		head.Binding = t.binding.HoldBinding
	} else {
		log.Debugf("TapHoldHandler: activated tap Binding")
		head.Binding = t.binding.TapBinding
	}
	t.forward(0)

	t.state = TapHoldStateIdle
	t.binding = nil
	t.position = 0
}

// forward passes the event at position on and removes it from the queue.
func (t *TapHoldHandler) forward(position int) {
	if position >= len(t.queue) {
		log.Errorf("TapHoldHandler: position %d out of range, queue length is %d", position, len(t.queue))
		return
	}
	eventBinding := t.queue[position]
	t.trackPressed(eventBinding.Event)
	t.next.HandleEvent(*eventBinding)

	t.queue = append(t.queue[:position], t.queue[position+1:]...)
}

func (t *TapHoldHandler) trackPressed(event keyboard.Event) {
	if event.IsPress {
		t.isPressed[event.Code] = struct{}{}
		t.lastPressed[event.Code] = event.Time
	} else {
		delete(t.isPressed, event.Code)
		delete(t.pressedBefore, event.Code)
	}
}
