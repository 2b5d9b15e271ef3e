package handlers

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/keyboard"
)

// recorder is the last element of the chain in tests. It records the events and
// switches layers on toggle-layer bindings like the executor does.
type recorder struct {
	mu     sync.Mutex
	layers []*config.Layer

	currentLayer  string
	toggleKeys    []uint16
	toggleOrigins []string

	eventBindings []EventBinding
}

func newRecorder(conf *config.Config) *recorder {
	return &recorder{
		layers:       conf.Layers,
		currentLayer: conf.Layers[0].Name,
	}
}

func (r *recorder) HandleEvent(eventBinding EventBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventBindings = append(r.eventBindings, eventBinding)
	event := eventBinding.Event

	if event.IsPress {
		if binding, ok := eventBinding.Binding.(config.ToggleLayerBinding); ok {
			r.toggleKeys = append(r.toggleKeys, event.Code)
			r.toggleOrigins = append(r.toggleOrigins, r.currentLayer)
			r.currentLayer = binding.Layer
		}
		return
	}
	for i, key := range r.toggleKeys {
		if key == event.Code {
			r.currentLayer = r.toggleOrigins[i]
			r.toggleKeys = r.toggleKeys[:i]
			r.toggleOrigins = r.toggleOrigins[:i]
			return
		}
	}
}

func (r *recorder) recorded() []EventBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventBinding(nil), r.eventBindings...)
}

func (r *recorder) BaseLayer() *config.Layer {
	return r.layers[0]
}

func (r *recorder) LayerFor(_ uint16) *config.Layer {
	return r.currentLayerConfig()
}

func (r *recorder) currentLayerConfig() *config.Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, layer := range r.layers {
		if layer.Name == r.currentLayer {
			return layer
		}
	}
	panic(fmt.Sprintf("non existing layer: %s", r.currentLayer))
}

func (r *recorder) SetNextHandler(_ EventHandler) {
}

func (r *recorder) SetLayerManager(_ LayerManager) {
}

// thresholds returns fixed tapping terms, 10ms unless overridden.
type thresholds map[uint16]clock.Millis

func (th thresholds) HoldThreshold(code uint16) clock.Millis {
	if term, ok := th[code]; ok {
		return term
	}
	return 10
}

// testHandler runs each test case of the form {input events, expected output} against a fresh handler.
func testHandler(t *testing.T, newHandler func(conf *config.Config) EventHandler, configStr string, tests [][]string) {
	t.Helper()
	conf, err := config.ParseConfig([]byte(configStr))
	if err != nil {
		t.Fatalf("Error parsing config: %v", err)
	}
	for _, test := range tests {
		testCase(t, newHandler(conf), conf, test[0], test[1])
	}
}

func testCase(t *testing.T, handler EventHandler, conf *config.Config, events string, expected string) {
	t.Helper()
	rec := newRecorder(conf)
	handler.SetLayerManager(rec)
	handler.SetNextHandler(rec)

	feedEventsIn(handler, events)

	var expEventBindings []EventBinding
	for _, exp := range strings.Fields(expected) {
		expEventBindings = append(expEventBindings, parseEventBinding(exp))
	}

	actual := rec.recorded()
	if len(expEventBindings) != len(actual) {
		t.Errorf("expected %d event bindings but got %d for test case (%s, %s): %s",
			len(expEventBindings), len(actual), events, expected, formatEventBindings(actual))
		return
	}

	// the time is not compared
	for i, exp := range expEventBindings {
		act := actual[i]
		if act.Event.Code != exp.Event.Code || act.Event.IsPress != exp.Event.IsPress ||
			!reflect.DeepEqual(act.Binding, exp.Binding) {
			t.Errorf("expected (%s,%+v) but got (%s,%+v) at index %d for test case (%s, %s)",
				formatEvent(exp.Event), exp.Binding, formatEvent(act.Event), act.Binding, i, events, expected)
		}
	}
}

func formatEvent(event keyboard.Event) string {
	alias, _ := config.GetKeyAlias(event.Code)
	if event.IsPress {
		return "P" + alias
	}
	return "R" + alias
}

func formatEventBindings(eventBindings []EventBinding) string {
	var s []string
	for _, eb := range eventBindings {
		s = append(s, fmt.Sprintf("%s:%+v", formatEvent(eb.Event), eb.Binding))
	}
	return strings.Join(s, " ")
}

// feedEventsIn feeds events like "Pa 15 Ra" into the handler, numbers are pauses in milliseconds.
func feedEventsIn(handler EventHandler, events string) {
	for _, s := range strings.Fields(events) {
		if s[0] == 'P' || s[0] == 'R' {
			handler.HandleEvent(parseEventBinding(s))
			continue
		}
		ms, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			panic(fmt.Sprintf("failed to parse milliseconds: %s", s))
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}

// parseEventBinding parses an event like "Pa" or "Pa:Kx". The binding is one of K<key+...> (key),
// L<layer> (toggle-layer), G<layer> (layer), M<key> (single step macro), W (caps word) or N (nop).
func parseEventBinding(eventBinding string) EventBinding {
	eventStr, bindingStr, hasBinding := strings.Cut(eventBinding, ":")
	code := mustKeyCode(eventStr[1:])
	event := keyboard.Event{
		Code:    code,
		IsPress: eventStr[0] == 'P',
		Time:    time.Now(),
	}
	var binding config.Binding
	if hasBinding {
		arg := bindingStr[1:]
		switch bindingStr[0] {
		case 'K':
			var combo []uint16
			for _, key := range strings.Split(arg, "+") {
				combo = append(combo, mustKeyCode(key))
			}
			binding = config.KeyBinding{KeyCombo: combo}
		case 'L':
			binding = config.ToggleLayerBinding{Layer: arg}
		case 'G':
			binding = config.LayerBinding{Layer: arg}
		case 'M':
			binding = config.MacroBinding{Steps: [][]uint16{{mustKeyCode(arg)}}}
		case 'W':
			binding = config.CapsWordBinding{}
		case 'N':
			binding = config.NopBinding{}
		default:
			panic(fmt.Sprintf("unexpected binding type %v", bindingStr[0]))
		}
	}
	return EventBinding{Event: event, Binding: binding}
}

func mustKeyCode(alias string) uint16 {
	code, ok := config.GetKeyCode(alias)
	if !ok {
		panic(fmt.Sprintf("unknown key alias %s", alias))
	}
	return code
}
