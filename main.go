package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/e82eric/pointerlayer/actions"
	"github.com/e82eric/pointerlayer/clock"
	"github.com/e82eric/pointerlayer/config"
	"github.com/e82eric/pointerlayer/core"
	"github.com/e82eric/pointerlayer/handlers"
	"github.com/e82eric/pointerlayer/keyboard"
	"github.com/e82eric/pointerlayer/pointer"
	"github.com/e82eric/pointerlayer/trackball"
	"github.com/e82eric/pointerlayer/virtual"
	evdev "github.com/gvalkov/golang-evdev"
	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

const version = "0.1.0"

const (
	defaultConfigFile   = ".config/pointerlayer/config.yaml"
	virtualDevicePrefix = "pointerlayer"
)

var (
	configFile string
	conf       *config.Config

	keyboardDevices  []*keyboard.Device
	trackballDevices []*trackball.Device
	virtualKeyboard  *virtual.Keyboard
	virtualMouse     *virtual.Mouse

	engine   *core.Engine
	executor *actions.BindingExecutor
	chain    handlers.EventHandler

	reloadConfigChannel = make(chan struct{}, 1)
)

var opts struct {
	Version    bool   `short:"v" long:"version" description:"Show the version"`
	Debug      bool   `short:"d" long:"debug" description:"Show verbose debug information"`
	ConfigFile string `short:"c" long:"config" description:"The config file"`
	NoWatch    bool   `long:"no-watch" description:"Do not reload the config file when it changes"`
}

func main() {
	var err error

	_, err = flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	// init logging
	log.SetOutput(os.Stdout)
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	// if no config file is given, use the default one
	configFile = opts.ConfigFile
	if configFile == "" {
		u, err := user.Current()
		if err != nil {
			exitError(err, "Failed to get the current user")
		}
		configFile = filepath.Join(u.HomeDir, defaultConfigFile)
	}

	log.Debugf("Using config file: %s", configFile)
	conf, err = config.ReadConfig(configFile)
	if err != nil {
		exitError(err, "Failed to read the config file")
	}

	detectedKeyboards := findDevices("keyboard", keyboard.IsKeyboard)
	detectedPointers := findDevices("pointer", trackball.IsPointer)

	// check if another instance is already running
	for _, device := range append(detectedKeyboards, detectedPointers...) {
		if strings.HasPrefix(device.Name, virtualDevicePrefix) {
			exitError(nil, fmt.Sprintf("Found a device with name %s, "+
				"which probably means that another instance is already running", device.Name))
		}
	}

	virtualKeyboard, err = virtual.NewKeyboard()
	if err != nil {
		exitError(err, "Failed to init the virtual keyboard")
	}
	defer virtualKeyboard.Close()

	virtualMouse, err = virtual.NewMouse()
	if err != nil {
		exitError(err, "Failed to init the virtual mouse")
	}
	defer virtualMouse.Close()

	if err := setup(conf); err != nil {
		exitError(err, "Failed to set up the pointer engine")
	}

	keyboardEvents := make(chan keyboard.Event, 64)
	openKeyboards(devicePaths(conf.Devices, detectedKeyboards), keyboardEvents)
	openTrackballs(devicePaths(conf.PointerDevices, detectedPointers))
	if len(keyboardDevices) == 0 {
		exitError(nil, "No keyboard device could be opened")
	}

	if !opts.NoWatch {
		watcher, err := config.Watch(configFile, requestReload)
		if err != nil {
			log.Warnf("Failed to watch the config file: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	if conf.StartCommand != "" {
		log.Debugf("Executing start command: %s", conf.StartCommand)
		cmd := exec.Command("sh", "-c", conf.StartCommand)
		if err := cmd.Run(); err != nil {
			exitError(err, "Execution of start command failed")
		}
	}

	mainLoop(keyboardEvents)
}

// setup builds the engine and the handler chain for the given config. Nothing is replaced if it fails.
func setup(c *config.Config) error {
	e, err := core.NewEngine(c.Core, clock.System{})
	if err != nil {
		return err
	}
	engine = e
	executor = actions.NewBindingExecutor(c, virtualKeyboard, virtualMouse, engine, reloadConfigChannel)
	chain = handlers.Chain(executor,
		handlers.NewActivityHandler(c, engine),
		handlers.NewTapHoldHandler(int64(c.QuickTapTime), engine),
		handlers.NewLeaderHandler(c.Leader),
		handlers.NewDefaultHandler(),
		handlers.NewCapsWordHandler(c.CapsWordTimeout),
		executor,
	)
	return nil
}

func requestReload() {
	select {
	case reloadConfigChannel <- struct{}{}:
	default:
	}
}

func reloadConfig() {
	newConf, err := config.ReadConfig(configFile)
	if err != nil {
		log.Warnf("Failed to reload the config file, keeping the old one: %v", err)
		return
	}
	if err := setup(newConf); err != nil {
		log.Warnf("Failed to apply the new config, keeping the old one: %v", err)
		return
	}
	conf = newConf
	log.Infof("Reloaded the config file")
}

func mainLoop(keyboardEvents <-chan keyboard.Event) {
	ticker := time.NewTicker(time.Duration(conf.PollInterval) * time.Millisecond)
	defer ticker.Stop()
	deviceCheck := time.NewTicker(10 * time.Second)
	defer deviceCheck.Stop()

	for {
		select {
		case event := <-keyboardEvents:
			chain.HandleEvent(handlers.EventBinding{Event: event})
		case <-ticker.C:
			poll()
		case <-reloadConfigChannel:
			interval := conf.PollInterval
			reloadConfig()
			if conf.PollInterval != interval {
				ticker.Reset(time.Duration(conf.PollInterval) * time.Millisecond)
			}
		case <-deviceCheck.C:
			checkDevices()
		}
	}
}

// poll runs one pointer tick: read the trackballs, transform and emit.
func poll() {
	samples := make([]pointer.Sample, 0, len(trackballDevices))
	for _, device := range trackballDevices {
		samples = append(samples, device.Drain())
	}
	out := engine.Tick(trackball.Merge(samples...))

	virtualMouse.Report(out.Report)
	for _, chord := range out.Taps {
		virtualKeyboard.Tap(chord)
	}
	executor.SetAutoLayer(out.AutoLayer)
}

func checkDevices() {
	oneDeviceOpen := false
	for _, device := range keyboardDevices {
		if device.IsOpen() {
			oneDeviceOpen = true
		}
	}
	if !oneDeviceOpen {
		log.Warnf("No keyboard device is open:")
		for i, device := range keyboardDevices {
			log.Warnf("Device %d: %s: %s", i+1, device.DeviceName(), device.LastOpenError())
		}
	}
	for _, device := range trackballDevices {
		if !device.IsOpen() {
			log.Warnf("Pointer device %s is not open", device.DeviceName())
		}
	}
}

func openKeyboards(paths []string, events chan<- keyboard.Event) {
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			log.Warnf("Failed to open keyboard %s: %v", path, err)
			continue
		}
		kd := keyboard.NewKeyboardDevice(dev, events)
		if err := kd.GrabDevice(); err != nil {
			log.Warnf("Failed to grab keyboard %s: %v", path, err)
		}
		keyboardDevices = append(keyboardDevices, kd)
	}
}

func openTrackballs(paths []string) {
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			log.Warnf("Failed to open pointer device %s: %v", path, err)
			continue
		}
		td := trackball.NewDevice(dev)
		if err := td.Grab(); err != nil {
			log.Warnf("Failed to grab pointer device %s: %v", path, err)
			continue
		}
		trackballDevices = append(trackballDevices, td)
	}
}

// devicePaths returns the configured devices, or the detected ones if none are configured.
func devicePaths(configured []string, detected []*evdev.InputDevice) []string {
	if len(configured) > 0 {
		return configured
	}
	var paths []string
	for _, dev := range detected {
		paths = append(paths, dev.Fn)
	}
	return paths
}

func findDevices(kind string, match func(*evdev.InputDevice) bool) []*evdev.InputDevice {
	devices := keyboard.FindDevices(match)
	log.Debugf("Auto detected %s devices:", kind)
	for _, dev := range devices {
		log.Debugf("- %s: %s", dev.Fn, dev.Name)
	}
	return devices
}

func exitError(err error, msg string) {
	if err != nil {
		log.Errorf(msg+": %v", err)
	} else {
		log.Error(msg)
	}
	log.Error("Exiting")
	os.Exit(1)
}
