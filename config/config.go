package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/e82eric/pointerlayer/activity"
	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/core"
	"github.com/e82eric/pointerlayer/layers"
	"github.com/e82eric/pointerlayer/pointer"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type Action string

const (
	ActionTapHold            Action = "tap-hold"
	ActionTapHoldNext        Action = "tap-hold-next"
	ActionTapHoldNextRelease Action = "tap-hold-next-release"
	ActionMulti              Action = "multi"
	ActionLayer              Action = "layer"
	ActionToggleLayer        Action = "toggle-layer"
	ActionReloadConfig       Action = "reload-config"
	ActionButton             Action = "button"
	ActionExec               Action = "exec"
	ActionLeader             Action = "leader"
	ActionMacro              Action = "macro"
	ActionCapsWord           Action = "caps-word"
	ActionNop                Action = "nop"
)

type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonMiddle MouseButton = "middle"
	ButtonRight  MouseButton = "right"
)

const (
	defaultPollInterval  = 10
	defaultLeaderTimeout = 300
	// idle time after which caps word turns itself off
	defaultCapsWordTimeout = 5000
)

// RawConfig defines the structure of the config file.
type RawConfig struct {
	Devices         []string         `yaml:"devices"`
	PointerDevices  []string         `yaml:"pointerDevices"`
	StartCommand    string           `yaml:"startCommand"`
	PollInterval    int64            `yaml:"pollInterval"`
	CapsWordTimeout int64            `yaml:"capsWordTimeout"`
	QuickTapTime    float64          `yaml:"quickTapTime"`
	TappingTerm     int64            `yaml:"tappingTerm"`
	TappingTerms    map[string]int64 `yaml:"tappingTerms"`
	Activity        RawActivity      `yaml:"activity"`
	Pointer         RawPointer       `yaml:"pointer"`
	Leader          RawLeader        `yaml:"leader"`
	Layers          []RawLayer       `yaml:"layers"`
}

type RawActivity struct {
	QuietWindow   int64 `yaml:"quietWindow"`
	Dwell         int64 `yaml:"dwell"`
	PendingWindow int64 `yaml:"pendingWindow"`
	Linger        int64 `yaml:"linger"`
	Reentry       int64 `yaml:"reentry"`
}

type RawPointer struct {
	SlowThreshold    float64  `yaml:"slowThreshold"`
	MidThreshold     float64  `yaml:"midThreshold"`
	SlowGain         float64  `yaml:"slowGain"`
	MidGain          float64  `yaml:"midGain"`
	FastGain         float64  `yaml:"fastGain"`
	ScrollDivisorH   *float64 `yaml:"scrollDivisorH"`
	ScrollDivisorV   *float64 `yaml:"scrollDivisorV"`
	ScrollThreshold  float64  `yaml:"scrollThreshold"`
	GestureThreshold int16    `yaml:"gestureThreshold"`
	ClickDebounce    int64    `yaml:"clickDebounce"`
	VolumeDebounce   int64    `yaml:"volumeDebounce"`
	TabDebounce      int64    `yaml:"tabDebounce"`
	Mute             string   `yaml:"mute"`
	VolumeUp         string   `yaml:"volumeUp"`
	VolumeDown       string   `yaml:"volumeDown"`
	NextTab          string   `yaml:"nextTab"`
	PreviousTab      string   `yaml:"previousTab"`
}

type RawLeader struct {
	Timeout   int64             `yaml:"timeout"`
	Sequences map[string]string `yaml:"sequences"`
}

type RawLayer struct {
	Name         string            `yaml:"name"`
	PassThrough  *bool             `yaml:"passThrough"`
	EnterCommand *string           `yaml:"enterCommand"`
	ExitCommand  *string           `yaml:"exitCommand"`
	Pointer      string            `yaml:"pointer"`
	Auto         bool              `yaml:"auto"`
	Transparent  *bool             `yaml:"transparent"`
	Bindings     map[string]string `yaml:"bindings"`
}

// Config is the parsed form of RawConfig.
type Config struct {
	Devices        []string
	PointerDevices []string
	StartCommand   string
	PollInterval   int64
	QuickTapTime   float64
	// CapsWordTimeout is how long caps word stays on without a key press.
	CapsWordTimeout int64
	Core            core.Config
	Leader          Leader
	Layers          []*Layer
	// AutoLayer is the index of the layer that is activated while the pointer is in use, or -1.
	AutoLayer int
}

type Leader struct {
	TimeoutMs int64
	Sequences []LeaderSequence
}

type LeaderSequence struct {
	Keys  []uint16
	Macro MacroBinding
}

type Layer struct {
	Name         string
	PassThrough  bool // default true
	EnterCommand *string
	ExitCommand  *string
	Pointer      pointer.Mode
	Auto         bool
	// Transparent layers leave keys they do not bind to the next active layer below.
	// The auto layer is transparent by default.
	Transparent     bool
	Bindings        map[uint16]Binding
	WildcardBinding Binding
}

type Binding interface {
	binding()
}

type BaseBinding struct {
}

func (b BaseBinding) binding() {}

type MultiBinding struct {
	BaseBinding
	Bindings []Binding
}

// TapHoldBinding resolves to TapBinding or HoldBinding. A TimeoutMs of 0 means that the
// tapping term of the key is used.
type TapHoldBinding struct {
	BaseBinding
	TapBinding       Binding
	HoldBinding      Binding
	TimeoutMs        int64
	TapOnNext        bool
	TapOnNextRelease bool
}

type LayerBinding struct {
	BaseBinding
	Layer string
}
type NopBinding struct {
	BaseBinding
}
type ToggleLayerBinding struct {
	BaseBinding
	Layer string
}
type ReloadConfigBinding struct {
	BaseBinding
}
type KeyBinding struct {
	BaseBinding
	KeyCombo []uint16
}
type ButtonBinding struct {
	BaseBinding
	Button MouseButton
}
type ExecBinding struct {
	BaseBinding
	Command string
}

// LeaderBinding starts a leader sequence.
type LeaderBinding struct {
	BaseBinding
}

// CapsWordBinding toggles caps word: letters are shifted until a key that is not part of a word.
type CapsWordBinding struct {
	BaseBinding
}

// MacroBinding taps each of the key combinations in order.
type MacroBinding struct {
	BaseBinding
	Steps [][]uint16
}

// defaultLeaderSequences are used when the config does not define any.
var defaultLeaderSequences = map[string]string{
	"l":   "home ; leftshift+end",                                         // select line
	"a":   "leftctrl+home ; leftctrl+leftshift+end",                       // select all
	"w":   "leftctrl+right ; leftctrl+leftshift+left",                     // select word
	"d w": "leftctrl+leftshift+right ; backspace",                         // delete word
	"y w": "leftctrl+right ; leftctrl+leftshift+left ; leftctrl+c ; left", // yank word
	"y y": "home ; leftshift+end ; leftctrl+c ; left",                     // yank line
}

// defaultTappingTerms slow down the inner index keys and speed up the shift keys.
var defaultTappingTerms = map[string]int64{
	"g": 400,
	"h": 400,
	"d": 150,
	"k": 150,
}

// ReadConfig reads and parses the configuration from the given file.
func ReadConfig(fileName string) (*Config, error) {
	configFile, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer configFile.Close()

	configString, err := io.ReadAll(configFile)
	if err != nil {
		return nil, err
	}

	return ParseConfig(configString)
}

// ParseConfig parses the given configuration.
func ParseConfig(configBytes []byte) (*Config, error) {
	var rawConfig RawConfig
	err := yaml.Unmarshal(configBytes, &rawConfig)
	if err != nil {
		return nil, err
	}

	config := Config{AutoLayer: -1}
	config.Devices = rawConfig.Devices
	config.PointerDevices = rawConfig.PointerDevices
	config.StartCommand = rawConfig.StartCommand
	if rawConfig.PollInterval > 0 {
		config.PollInterval = rawConfig.PollInterval
	} else {
		config.PollInterval = defaultPollInterval
	}
	config.QuickTapTime = rawConfig.QuickTapTime
	if rawConfig.CapsWordTimeout > 0 {
		config.CapsWordTimeout = rawConfig.CapsWordTimeout
	} else {
		config.CapsWordTimeout = defaultCapsWordTimeout
	}

	config.Core.TappingTerm = clock.Millis(max(rawConfig.TappingTerm, 0))
	tappingTerms := rawConfig.TappingTerms
	if tappingTerms == nil {
		tappingTerms = defaultTappingTerms
	}
	config.Core.TappingTerms = make(map[uint16]clock.Millis)
	for key, term := range tappingTerms {
		code, err := parseKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse the tapping term key '%v': %v", key, err)
		}
		if term <= 0 {
			return nil, fmt.Errorf("tapping term of '%v' must be positive", key)
		}
		config.Core.TappingTerms[code] = clock.Millis(term)
	}

	config.Core.Activity = parseActivity(rawConfig.Activity)
	config.Core.Pointer, err = parsePointer(rawConfig.Pointer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the pointer settings: %v", err)
	}

	config.Leader, err = parseLeader(rawConfig.Leader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the leader settings: %v", err)
	}

	if len(rawConfig.Layers) == 0 {
		return nil, fmt.Errorf("at least one layer must be defined")
	}
	if len(rawConfig.Layers) > layers.MaxLayers {
		return nil, fmt.Errorf("at most %d layers can be defined", layers.MaxLayers)
	}
	for i, l := range rawConfig.Layers {
		layer, err := parseLayer(l, i)
		if err != nil {
			return nil, fmt.Errorf("failed to parse layer %v : %v", i, err)
		}
		for _, other := range config.Layers {
			if other.Name == layer.Name {
				return nil, fmt.Errorf("duplicate layer name '%v'", layer.Name)
			}
		}
		if layer.Auto {
			if config.AutoLayer >= 0 {
				return nil, fmt.Errorf("only one layer can be the auto layer, found '%v' and '%v'",
					config.Layers[config.AutoLayer].Name, layer.Name)
			}
			if i == 0 {
				return nil, fmt.Errorf("the first layer cannot be the auto layer")
			}
			config.AutoLayer = i
		}
		config.Core.Pointer.Modes[i] = layer.Pointer
		config.Layers = append(config.Layers, layer)
	}

	if err := config.Core.Pointer.Validate(); err != nil {
		return nil, err
	}

	log.Debugf("config: %+v", config)
	return &config, nil
}

func parseActivity(raw RawActivity) activity.Config {
	conf := activity.DefaultConfig()
	if raw.QuietWindow > 0 {
		conf.QuietWindow = clock.Millis(raw.QuietWindow)
	}
	if raw.Dwell > 0 {
		conf.Dwell = clock.Millis(raw.Dwell)
	}
	if raw.PendingWindow > 0 {
		conf.PendingWindow = clock.Millis(raw.PendingWindow)
	}
	if raw.Linger > 0 {
		conf.Linger = clock.Millis(raw.Linger)
	}
	if raw.Reentry > 0 {
		conf.Reentry = clock.Millis(raw.Reentry)
	}
	return conf
}

func parsePointer(raw RawPointer) (pointer.Config, error) {
	conf := pointer.DefaultConfig()
	if raw.SlowThreshold > 0 {
		conf.SlowThreshold = raw.SlowThreshold
	}
	if raw.MidThreshold > 0 {
		conf.MidThreshold = raw.MidThreshold
	}
	if raw.SlowGain > 0 {
		conf.SlowGain = raw.SlowGain
	}
	if raw.MidGain > 0 {
		conf.MidGain = raw.MidGain
	}
	if raw.FastGain > 0 {
		conf.FastGain = raw.FastGain
	}
	// the divisors are pointers so that an explicit zero is rejected instead of replaced
	if raw.ScrollDivisorH != nil {
		conf.ScrollDivisorH = *raw.ScrollDivisorH
	}
	if raw.ScrollDivisorV != nil {
		conf.ScrollDivisorV = *raw.ScrollDivisorV
	}
	if raw.ScrollThreshold > 0 {
		conf.ScrollThreshold = raw.ScrollThreshold
	}
	if raw.GestureThreshold > 0 {
		conf.GestureThreshold = raw.GestureThreshold
	}
	if raw.ClickDebounce > 0 {
		conf.ClickDebounce = clock.Millis(raw.ClickDebounce)
	}
	if raw.VolumeDebounce > 0 {
		conf.VolumeDebounce = clock.Millis(raw.VolumeDebounce)
	}
	if raw.TabDebounce > 0 {
		conf.TabDebounce = clock.Millis(raw.TabDebounce)
	}

	chords := []struct {
		raw    string
		target *pointer.Chord
	}{
		{raw.Mute, &conf.MuteChord},
		{raw.VolumeUp, &conf.VolumeUpChord},
		{raw.VolumeDown, &conf.VolumeDownChord},
		{raw.NextTab, &conf.NextTabChord},
		{raw.PreviousTab, &conf.PreviousTabChord},
	}
	for _, c := range chords {
		if strings.TrimSpace(c.raw) == "" {
			continue
		}
		combo, err := parseKeyCombo(c.raw)
		if err != nil {
			return conf, fmt.Errorf("failed to parse the key combination '%v': %v", c.raw, err)
		}
		*c.target = combo
	}

	return conf, conf.Validate()
}

func parseLeader(raw RawLeader) (Leader, error) {
	leader := Leader{TimeoutMs: defaultLeaderTimeout}
	if raw.Timeout > 0 {
		leader.TimeoutMs = raw.Timeout
	}
	sequences := raw.Sequences
	if sequences == nil {
		sequences = defaultLeaderSequences
	}
	for keys, macro := range sequences {
		var seq LeaderSequence
		for _, key := range strings.Fields(keys) {
			code, err := parseKey(key)
			if err != nil {
				return leader, fmt.Errorf("failed to parse the sequence '%v': %v", keys, err)
			}
			seq.Keys = append(seq.Keys, code)
		}
		if len(seq.Keys) == 0 {
			return leader, fmt.Errorf("empty leader sequence")
		}
		m, err := parseMacro(macro)
		if err != nil {
			return leader, fmt.Errorf("failed to parse the macro of '%v': %v", keys, err)
		}
		seq.Macro = m
		leader.Sequences = append(leader.Sequences, seq)
	}
	return leader, nil
}

// parseLayer parses a single RawLayer to Layer.
func parseLayer(rawLayer RawLayer, index int) (*Layer, error) {
	var layer Layer

	if rawLayer.Name == "" {
		return nil, fmt.Errorf("no name given")
	}

	layer.Name = rawLayer.Name
	layer.EnterCommand = rawLayer.EnterCommand
	layer.ExitCommand = rawLayer.ExitCommand
	layer.Auto = rawLayer.Auto
	if rawLayer.Transparent == nil {
		layer.Transparent = layer.Auto
	} else {
		layer.Transparent = *rawLayer.Transparent
	}
	layer.Bindings = make(map[uint16]Binding)
	if rawLayer.PassThrough == nil {
		layer.PassThrough = true
	} else {
		layer.PassThrough = *rawLayer.PassThrough
	}

	// the first layer and the auto layer move the pointer by default, all others keep it still
	switch {
	case rawLayer.Pointer != "":
		mode, err := pointer.ParseMode(rawLayer.Pointer)
		if err != nil {
			return nil, err
		}
		layer.Pointer = mode
	case index == 0 || layer.Auto:
		layer.Pointer = pointer.ModeMotion
	default:
		layer.Pointer = pointer.ModeStill
	}

	for key, bind := range rawLayer.Bindings {
		codes, err := parseKeyCombo(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse the key '%v': %v", key, err)
		}
		if len(codes) != 1 {
			return nil, fmt.Errorf("only single keys can be bound: '%v'", key)
		}
		binding, err := parseBinding(bind)
		if err != nil {
			return nil, fmt.Errorf("failed to parse the binding '%v': %v", bind, err)
		}
		if codes[0] == WildcardKey {
			layer.WildcardBinding = binding
		} else {
			layer.Bindings[codes[0]] = binding
		}
	}

	return &layer, nil
}

// parseBinding parses a single binding of a layer.
func parseBinding(rawBinding string) (binding Binding, err error) {
	spaceSplit := strings.Fields(rawBinding)
	if len(spaceSplit) == 0 {
		return nil, fmt.Errorf("binding is empty")
	}
	action := spaceSplit[0]
	args := spaceSplit[1:]
	argString := strings.TrimSpace(strings.Replace(rawBinding, action, "", 1))

	switch Action(action) {
	case ActionMulti:
		metaArgs := strings.Split(argString, ";")
		if len(metaArgs) < 2 {
			return nil, fmt.Errorf("action requires at least two meta arguments (separated by ;)")
		}
		multiBinding := MultiBinding{}
		for _, arg := range metaArgs {
			b, err := parseBinding(arg)
			if err != nil {
				return nil, err
			}
			multiBinding.Bindings = append(multiBinding.Bindings, b)
		}
		binding = multiBinding
	case ActionTapHold, ActionTapHoldNext, ActionTapHoldNextRelease:
		tapHoldBinding, err := parseTapHoldBinding(argString)
		if err != nil {
			return nil, err
		}
		tapHoldBinding.TapOnNext = Action(action) == ActionTapHoldNext
		tapHoldBinding.TapOnNextRelease = Action(action) == ActionTapHoldNextRelease
		binding = tapHoldBinding
	case ActionLayer:
		if len(args) != 1 {
			return nil, fmt.Errorf("action requires exactly one argument")
		}
		binding = LayerBinding{Layer: args[0]}
	case ActionToggleLayer:
		if len(args) != 1 {
			return nil, fmt.Errorf("action requires exactly one argument")
		}
		binding = ToggleLayerBinding{Layer: args[0]}
	case ActionReloadConfig:
		if len(args) != 0 {
			return nil, fmt.Errorf("action requires zero arguments")
		}
		binding = ReloadConfigBinding{}
	case ActionButton:
		if len(args) != 1 {
			return nil, fmt.Errorf("action requires exactly one argument")
		}
		button := MouseButton(strings.ToLower(args[0]))
		if button != ButtonLeft && button != ButtonMiddle && button != ButtonRight {
			return nil, fmt.Errorf("unknown button '%v'", args[0])
		}
		binding = ButtonBinding{Button: button}
	case ActionExec:
		if len(args) == 0 {
			return nil, fmt.Errorf("action requires at least one argument")
		}
		binding = ExecBinding{Command: argString}
	case ActionLeader:
		if len(args) != 0 {
			return nil, fmt.Errorf("action does not take any argument")
		}
		binding = LeaderBinding{}
	case ActionMacro:
		macro, err := parseMacro(argString)
		if err != nil {
			return nil, err
		}
		binding = macro
	case ActionCapsWord:
		if len(args) != 0 {
			return nil, fmt.Errorf("action does not take any argument")
		}
		binding = CapsWordBinding{}
	case ActionNop:
		if len(args) != 0 {
			return nil, fmt.Errorf("action does not take any argument")
		}
		binding = NopBinding{}
	default:
		combo, err := parseKeyCombo(rawBinding)
		if err != nil {
			return nil, fmt.Errorf("neither a valid action nor a valid key sequence")
		}
		binding = KeyBinding{KeyCombo: combo}
	}

	return binding, nil
}

// parseTapHoldBinding parses "tap ; hold" or "tap ; hold ; timeout".
func parseTapHoldBinding(argString string) (TapHoldBinding, error) {
	b := TapHoldBinding{}
	metaArgs := strings.Split(argString, ";")
	if len(metaArgs) != 2 && len(metaArgs) != 3 {
		return b, fmt.Errorf("action requires 2 or 3 meta arguments (separated by ;)")
	}
	var err error
	if b.TapBinding, err = parseBinding(metaArgs[0]); err != nil {
		return b, err
	}
	if b.HoldBinding, err = parseBinding(metaArgs[1]); err != nil {
		return b, err
	}
	if len(metaArgs) == 3 {
		timeoutStr := strings.TrimSpace(metaArgs[2])
		timeout, err := strconv.ParseInt(timeoutStr, 10, 64)
		if err != nil || timeout <= 0 {
			return b, fmt.Errorf("third argument must be a positive number: %s", timeoutStr)
		}
		b.TimeoutMs = timeout
	}
	return b, nil
}

// parseMacro parses key combinations separated by ;
func parseMacro(rawMacro string) (MacroBinding, error) {
	m := MacroBinding{}
	for _, step := range strings.Split(rawMacro, ";") {
		if strings.TrimSpace(step) == "" {
			continue
		}
		combo, err := parseKeyCombo(step)
		if err != nil {
			return m, err
		}
		m.Steps = append(m.Steps, combo)
	}
	if len(m.Steps) == 0 {
		return m, fmt.Errorf("macro is empty")
	}
	return m, nil
}

// parseKeyCombo parses a key combination of the form key1+key2+...
func parseKeyCombo(rawCombo string) (combo []uint16, err error) {
	for _, key := range strings.Split(rawCombo, "+") {
		code, err := parseKey(key)
		if err != nil {
			return combo, err
		}
		combo = append(combo, code)
	}
	return combo, nil
}

// parseKey parses a single key, which can be either the code itself or an alias.
func parseKey(key string) (code uint16, err error) {
	key = strings.TrimSpace(key)

	if code, ok := keyAliases[key]; ok {
		return code, nil
	}

	if code, err := strconv.Atoi(key); err == nil && code >= 0 && code < int(WildcardKey) {
		return uint16(code), nil
	}

	return 0, fmt.Errorf("neither an integer nor a key alias: '%s'", key)
}

// LayerIndex returns the index of the layer with the given name.
func (c *Config) LayerIndex(name string) (int, bool) {
	for i, layer := range c.Layers {
		if layer.Name == name {
			return i, true
		}
	}
	return 0, false
}
