package actions

import (
	"sync"
	"testing"
	"time"

	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/handlers"
	"github.com/e82eric/pointerlayer/keyboard"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyboard struct {
	pressed  [][]uint16
	tapped   [][]uint16
	released []uint16
}

func (f *fakeKeyboard) PressKeys(_ uint16, codes []uint16) { f.pressed = append(f.pressed, codes) }
func (f *fakeKeyboard) Tap(chord []uint16)                 { f.tapped = append(f.tapped, chord) }
func (f *fakeKeyboard) OriginalKeyUp(code uint16)          { f.released = append(f.released, code) }

type fakeMouse struct {
	buttons []config.MouseButton
}

func (f *fakeMouse) ButtonPress(_ uint16, button config.MouseButton) {
	f.buttons = append(f.buttons, button)
}
func (f *fakeMouse) OriginalKeyUp(_ uint16) {}

type fakeEngine struct {
	mu     sync.Mutex
	keys   []uint16
	layers []int
}

func (f *fakeEngine) KeyPressed(code uint16, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, code)
}

func (f *fakeEngine) pressed() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.keys...)
}

func (f *fakeEngine) LayerChanged(highest int) { f.layers = append(f.layers, highest) }

func (f *fakeEngine) HoldThreshold(_ uint16) clock.Millis { return 200 }

const executorConfig = `
layers:
- name: base
  bindings:
    a: b
    j: button left
    t: toggle-layer nav
    m: macro leftctrl+c ; leftctrl+v
    r: reload-config
- name: pointer
  auto: true
  bindings:
    j: button right
- name: nav
  bindings:
    b: layer base
`

const chainConfig = `
layers:
- name: base
  bindings:
    f: tap-hold f ; leftshift
    j: button left
    t: toggle-layer nav
- name: pointer
  auto: true
- name: nav
`

type fixture struct {
	executor *BindingExecutor
	keyboard *fakeKeyboard
	mouse    *fakeMouse
	engine   *fakeEngine
	reload   chan struct{}
}

func newFixture(t *testing.T) *fixture {
	conf, err := config.ParseConfig([]byte(executorConfig))
	require.NoError(t, err)
	f := &fixture{
		keyboard: &fakeKeyboard{},
		mouse:    &fakeMouse{},
		engine:   &fakeEngine{},
		reload:   make(chan struct{}, 1),
	}
	f.executor = NewBindingExecutor(conf, f.keyboard, f.mouse, f.engine, f.reload)
	return f
}

// handle resolves the binding like the default handler does and executes it.
func (f *fixture) handle(code uint16, isPress bool) {
	var binding config.Binding
	if isPress {
		binding = f.executor.LayerFor(code).Bindings[code]
	}
	f.executor.HandleEvent(handlers.EventBinding{
		Event:   keyboard.Event{Code: code, IsPress: isPress, Time: time.Now()},
		Binding: binding,
	})
}

func TestKeyBinding(t *testing.T) {
	f := newFixture(t)
	f.handle(evdev.KEY_A, true)
	f.handle(evdev.KEY_A, false)

	assert.Equal(t, [][]uint16{{evdev.KEY_B}}, f.keyboard.pressed)
	assert.Equal(t, []uint16{evdev.KEY_A}, f.keyboard.released)
}

func TestButtonBinding(t *testing.T) {
	f := newFixture(t)
	f.handle(evdev.KEY_J, true)
	f.handle(evdev.KEY_J, false)

	assert.Equal(t, []config.MouseButton{config.ButtonLeft}, f.mouse.buttons)
	assert.Empty(t, f.keyboard.pressed)
}

func TestMacro(t *testing.T) {
	f := newFixture(t)
	f.handle(evdev.KEY_M, true)

	assert.Equal(t, [][]uint16{
		{evdev.KEY_LEFTCTRL, evdev.KEY_C},
		{evdev.KEY_LEFTCTRL, evdev.KEY_V},
	}, f.keyboard.tapped)
}

func TestToggleLayer(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []int{0}, f.engine.layers)

	f.handle(evdev.KEY_T, true)
	assert.Equal(t, "nav", f.executor.CurrentLayer().Name)
	f.handle(evdev.KEY_T, false)
	assert.Equal(t, "base", f.executor.CurrentLayer().Name)
	assert.Equal(t, []int{0, 2, 0}, f.engine.layers)
}

func TestLayerBindingClearsToggles(t *testing.T) {
	f := newFixture(t)
	f.handle(evdev.KEY_T, true)
	f.handle(evdev.KEY_B, true)
	f.handle(evdev.KEY_B, false)
	f.handle(evdev.KEY_T, false)
	assert.Equal(t, "base", f.executor.CurrentLayer().Name)
	assert.Equal(t, []int{0, 2, 0}, f.engine.layers)
}

func TestAutoLayer(t *testing.T) {
	f := newFixture(t)

	f.executor.SetAutoLayer(true)
	assert.Equal(t, "pointer", f.executor.CurrentLayer().Name)
	f.executor.SetAutoLayer(true)
	assert.Equal(t, []int{0, 1}, f.engine.layers)

	// a higher layer wins over the auto layer
	f.handle(evdev.KEY_T, true)
	assert.Equal(t, "nav", f.executor.CurrentLayer().Name)
	assert.True(t, f.executor.ActiveLayers().IsOn(1))
	f.handle(evdev.KEY_T, false)
	assert.Equal(t, "pointer", f.executor.CurrentLayer().Name)

	f.executor.SetAutoLayer(false)
	assert.Equal(t, "base", f.executor.CurrentLayer().Name)
	assert.Equal(t, []int{0, 1, 2, 1, 0}, f.engine.layers)
}

func TestAutoLayerIsTransparent(t *testing.T) {
	f := newFixture(t)
	f.executor.SetAutoLayer(true)

	// keys the auto layer does not bind fall through to the base layer
	assert.Equal(t, "base", f.executor.LayerFor(evdev.KEY_A).Name)
	assert.Equal(t, "pointer", f.executor.LayerFor(evdev.KEY_J).Name)

	f.handle(evdev.KEY_A, true)
	f.handle(evdev.KEY_J, true)
	assert.Equal(t, [][]uint16{{evdev.KEY_B}}, f.keyboard.pressed)
	assert.Equal(t, []config.MouseButton{config.ButtonRight}, f.mouse.buttons)

	f.handle(evdev.KEY_T, true)
	assert.Equal(t, "nav", f.executor.CurrentLayer().Name)
}

type chainFixture struct {
	head     handlers.EventHandler
	executor *BindingExecutor
	keyboard *fakeKeyboard
	mouse    *fakeMouse
	engine   *fakeEngine
}

// newChainFixture wires the executor behind the same handlers the daemon uses.
func newChainFixture(t *testing.T, configStr string) *chainFixture {
	conf, err := config.ParseConfig([]byte(configStr))
	require.NoError(t, err)
	f := &chainFixture{
		keyboard: &fakeKeyboard{},
		mouse:    &fakeMouse{},
		engine:   &fakeEngine{},
	}
	f.executor = NewBindingExecutor(conf, f.keyboard, f.mouse, f.engine, make(chan struct{}, 1))
	f.head = handlers.Chain(f.executor,
		handlers.NewActivityHandler(conf, f.engine),
		handlers.NewTapHoldHandler(0, f.engine),
		handlers.NewLeaderHandler(conf.Leader),
		handlers.NewDefaultHandler(),
		handlers.NewCapsWordHandler(conf.CapsWordTimeout),
		f.executor,
	)
	return f
}

func (f *chainFixture) send(code uint16, isPress bool) {
	f.head.HandleEvent(handlers.EventBinding{
		Event: keyboard.Event{Code: code, IsPress: isPress, Time: time.Now()},
	})
}

func TestChainAutoLayerFallsThrough(t *testing.T) {
	f := newChainFixture(t, executorConfig)
	f.executor.SetAutoLayer(true)

	f.send(evdev.KEY_T, true)
	assert.Equal(t, "nav", f.executor.CurrentLayer().Name)
	assert.Empty(t, f.keyboard.pressed)
	f.send(evdev.KEY_T, false)
	assert.Equal(t, "pointer", f.executor.CurrentLayer().Name)

	f.send(evdev.KEY_A, true)
	f.send(evdev.KEY_A, false)
	assert.Equal(t, [][]uint16{{evdev.KEY_B}}, f.keyboard.pressed)
}

func TestChainReportsDualRolePressImmediately(t *testing.T) {
	f := newChainFixture(t, chainConfig)

	f.send(evdev.KEY_F, true)
	// tap or hold is not decided yet, the press already counts as typing
	assert.Empty(t, f.keyboard.pressed)
	assert.Equal(t, []uint16{evdev.KEY_F}, f.engine.pressed())

	f.send(evdev.KEY_F, false)
	assert.Equal(t, [][]uint16{{evdev.KEY_F}}, f.keyboard.pressed)
	assert.Equal(t, []uint16{evdev.KEY_F}, f.engine.pressed())
}

func TestChainButtonIsNotReported(t *testing.T) {
	f := newChainFixture(t, chainConfig)

	f.send(evdev.KEY_J, true)
	f.send(evdev.KEY_J, false)
	assert.Equal(t, []config.MouseButton{config.ButtonLeft}, f.mouse.buttons)
	assert.Empty(t, f.engine.pressed())
}

func TestReloadConfig(t *testing.T) {
	f := newFixture(t)
	f.handle(evdev.KEY_R, true)
	f.handle(evdev.KEY_R, true) // a pending reload is not queued twice

	assert.Len(t, f.reload, 1)
}
