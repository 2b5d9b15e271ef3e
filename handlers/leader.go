package handlers

import (
	"slices"
	"sync"
	"time"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/keyboard"
	log "github.com/sirupsen/logrus"
)

// LeaderHandler collects the keys pressed after a leader key and replaces a
// matching sequence with its macro. Collected key presses are swallowed.
type LeaderHandler struct {
	BaseHandler

	mu        sync.Mutex
	timeout   time.Duration
	sequences []config.LeaderSequence

	active    bool
	leaderKey uint16
	collected []uint16
	timer     *time.Timer
}

func NewLeaderHandler(leader config.Leader) *LeaderHandler {
	return &LeaderHandler{
		timeout:   time.Duration(leader.TimeoutMs) * time.Millisecond,
		sequences: leader.Sequences,
	}
}

func (l *LeaderHandler) HandleEvent(eventBinding EventBinding) {
	l.mu.Lock()
	defer l.mu.Unlock()

	event := eventBinding.Event
	if !l.active {
		if _, ok := l.mappedBinding(eventBinding).(config.LeaderBinding); ok && event.IsPress {
			l.start(event.Code)
		}
		l.next.HandleEvent(eventBinding)
		return
	}

	if !event.IsPress {
		l.next.HandleEvent(eventBinding)
		return
	}

	l.collected = append(l.collected, event.Code)
	eventBinding.Binding = config.NopBinding{}
	l.next.HandleEvent(eventBinding)

	match, longer := l.lookup()
	if !longer {
		l.finish(match)
	}
}

func (l *LeaderHandler) start(code uint16) {
	log.Debugf("LeaderHandler: sequence started")
	l.active = true
	l.leaderKey = code
	l.collected = nil

	var timer *time.Timer
	timer = time.AfterFunc(l.timeout, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if timer != l.timer {
			return
		}
		log.Debugf("LeaderHandler: timed out after %v", l.collected)
		match, _ := l.lookup()
		l.finish(match)
	})
	l.timer = timer
}

// lookup returns the sequence matching the collected keys exactly, and whether a longer sequence
// starts with them.
func (l *LeaderHandler) lookup() (*config.LeaderSequence, bool) {
	var match *config.LeaderSequence
	longer := false
	for i, seq := range l.sequences {
		if len(seq.Keys) < len(l.collected) || !slices.Equal(seq.Keys[:len(l.collected)], l.collected) {
			continue
		}
		if len(seq.Keys) == len(l.collected) {
			match = &l.sequences[i]
		} else {
			longer = true
		}
	}
	return match, longer
}

func (l *LeaderHandler) finish(match *config.LeaderSequence) {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.active = false
	if match == nil {
		log.Debugf("LeaderHandler: no sequence matches %v", l.collected)
		return
	}
	log.Debugf("LeaderHandler: sequence %v matched", match.Keys)
	l.next.HandleEvent(EventBinding{
		Event:   keyboard.Event{Code: l.leaderKey, IsPress: true, Time: time.Now()},
		Binding: match.Macro,
	})
}

// Active reports whether a sequence is being collected.
func (l *LeaderHandler) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
