// Package actions executes resolved bindings and keeps track of the active layers.
package actions

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/handlers"
	"github.com/e82eric/pointerlayer/layers"
	log "github.com/sirupsen/logrus"
)

type KeySink interface {
	PressKeys(triggeredByKey uint16, codes []uint16)
	Tap(chord []uint16)
	OriginalKeyUp(code uint16)
}

type ButtonSink interface {
	ButtonPress(triggeredByKey uint16, button config.MouseButton)
	OriginalKeyUp(code uint16)
}

// Engine is informed about the highest active layer.
type Engine interface {
	LayerChanged(highest int)
}

// BindingExecutor is the last handler of the chain. It is also the LayerManager of the chain:
// the current layer is the highest of the selected layer and the auto layer.
type BindingExecutor struct {
	mu sync.Mutex

	config              *config.Config
	keyboard            KeySink
	mouse               ButtonSink
	engine              Engine
	reloadConfigChannel chan<- struct{}

	selected int
	autoOn   bool
	state    layers.State
	// remember all keys that toggled a layer, and from which layer they came from
	toggleLayerKeys     []uint16
	toggleLayerPrevious []int
}

func NewBindingExecutor(conf *config.Config, keyboard KeySink, mouse ButtonSink, engine Engine,
	reloadConfigChannel chan<- struct{}) *BindingExecutor {
	b := BindingExecutor{
		config:              conf,
		keyboard:            keyboard,
		mouse:               mouse,
		engine:              engine,
		reloadConfigChannel: reloadConfigChannel,
	}
	b.state = b.state.On(0)
	engine.LayerChanged(0)
	return &b
}

func (b *BindingExecutor) SetNextHandler(_ handlers.EventHandler) {
}

func (b *BindingExecutor) SetLayerManager(_ handlers.LayerManager) {
}

func (b *BindingExecutor) HandleEvent(eventBinding handlers.EventBinding) {
	b.mu.Lock()
	defer b.mu.Unlock()

	event := eventBinding.Event
	if eventBinding.Binding != nil {
		b.executeBinding(eventBinding.Binding, event.Code)
	}
	if !event.IsPress {
		b.keyReleased(event.Code)
	}
}

func (b *BindingExecutor) executeBinding(binding config.Binding, causeCode uint16) {
	log.Debugf("Executing %T: %+v", binding, binding)

	switch t := binding.(type) {
	case config.MultiBinding:
		for _, binding := range t.Bindings {
			b.executeBinding(binding, causeCode)
		}
	case config.ButtonBinding:
		b.mouse.ButtonPress(causeCode, t.Button)
	case config.KeyBinding:
		// replace any wildcard with the key that was pressed
		keys := make([]uint16, len(t.KeyCombo))
		copy(keys, t.KeyCombo)
		for i, key := range keys {
			if key == config.WildcardKey {
				keys[i] = causeCode
			}
		}
		b.keyboard.PressKeys(causeCode, keys)
	case config.MacroBinding:
		for _, step := range t.Steps {
			b.keyboard.Tap(step)
		}
	case config.LayerBinding:
		index, ok := b.config.LayerIndex(t.Layer)
		if !ok {
			log.Warnf("Unknown layer %v", t.Layer)
			return
		}
		// deactivate any toggled layers
		b.toggleLayerKeys = nil
		b.toggleLayerPrevious = nil
		b.selectLayer(index)
	case config.ToggleLayerBinding:
		index, ok := b.config.LayerIndex(t.Layer)
		if !ok {
			log.Warnf("Unknown layer %v", t.Layer)
			return
		}
		b.toggleLayerKeys = append(b.toggleLayerKeys, causeCode)
		b.toggleLayerPrevious = append(b.toggleLayerPrevious, b.selected)
		b.selectLayer(index)
	case config.ReloadConfigBinding:
		select {
		case b.reloadConfigChannel <- struct{}{}:
		default:
		}
	case config.ExecBinding:
		log.Debugf("Executing: %s", t.Command)
		cmd := exec.Command("sh", "-c", t.Command)
		// pass the pressed key as environment variable
		alias, exists := config.GetKeyAlias(causeCode)
		if !exists {
			alias = "unknown"
		}
		cmd.Env = append(
			os.Environ(),
			fmt.Sprintf("key=%s", alias),
			fmt.Sprintf("key_code=%d", causeCode),
		)
		if err := cmd.Run(); err != nil {
			log.Warnf("Execution of command failed: %v", err)
		}
	}
}

func (b *BindingExecutor) keyReleased(code uint16) {
	// go back to the previous layer when a toggle key is released
	for i, key := range b.toggleLayerKeys {
		if key == code {
			b.selectLayer(b.toggleLayerPrevious[i])
			// all layers that have been toggled after this one are removed as well
			b.toggleLayerKeys = b.toggleLayerKeys[:i]
			b.toggleLayerPrevious = b.toggleLayerPrevious[:i]
			break
		}
	}

	b.keyboard.OriginalKeyUp(code)
	b.mouse.OriginalKeyUp(code)
}

// SetAutoLayer activates or deactivates the auto layer, if the config has one.
func (b *BindingExecutor) SetAutoLayer(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.AutoLayer < 0 || on == b.autoOn {
		return
	}
	log.Debugf("Auto layer %v: %v", b.config.Layers[b.config.AutoLayer].Name, on)
	b.autoOn = on
	b.updateState(b.state.Set(b.config.AutoLayer, on))
}

func (b *BindingExecutor) selectLayer(index int) {
	if index == b.selected {
		return
	}
	state := b.state.Off(b.selected).On(index)
	if b.autoOn {
		state = state.On(b.config.AutoLayer)
	}
	log.Debugf("Selecting layer %v", b.config.Layers[index].Name)
	b.selected = index
	b.updateState(state)
}

// updateState runs the exit and enter commands when the highest layer changes and informs the engine.
func (b *BindingExecutor) updateState(state layers.State) {
	previous := b.state.Highest()
	b.state = state
	highest := state.Highest()
	if highest == previous {
		return
	}
	executeCommandIfNotEmpty(b.config.Layers[previous].ExitCommand)
	log.Debugf("Switching to layer %v", b.config.Layers[highest].Name)
	executeCommandIfNotEmpty(b.config.Layers[highest].EnterCommand)
	b.engine.LayerChanged(highest)
}

func (b *BindingExecutor) CurrentLayer() *config.Layer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.Layers[b.state.Highest()]
}

// LayerFor returns the layer that handles the given key. A transparent layer without a binding
// for the key leaves it to the next active layer below.
func (b *BindingExecutor) LayerFor(code uint16) *config.Layer {
	b.mu.Lock()
	defer b.mu.Unlock()

	var layer *config.Layer
	for i := b.state.Highest(); i >= 0; i-- {
		if !b.state.IsOn(i) {
			continue
		}
		layer = b.config.Layers[i]
		if !layer.Transparent || layer.WildcardBinding != nil {
			return layer
		}
		if _, ok := layer.Bindings[code]; ok {
			return layer
		}
	}
	if layer == nil {
		return b.config.Layers[0]
	}
	return layer
}

func (b *BindingExecutor) BaseLayer() *config.Layer {
	return b.config.Layers[0]
}

// ActiveLayers returns the set of active layers.
func (b *BindingExecutor) ActiveLayers() layers.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func executeCommandIfNotEmpty(command *string) {
	if command == nil || *command == "" {
		return
	}
	log.Debugf("Executing command: %s", *command)
	cmd := exec.Command("sh", "-c", *command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			log.Warnf("Execution of command '%s' failed: %v, stderr: %s", *command, err, stderr.String())
		} else {
			log.Warnf("Execution of command '%s' failed: %v", *command, err)
		}
	}
}
