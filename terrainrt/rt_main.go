package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"runtime"
	"syscall"

	"github.com/gekko3d/subd"
	"github.com/gekko3d/subd/terrainrt/rt/app"
	"github.com/gekko3d/subd/terrainrt/rt/core"
	"github.com/gekko3d/subd/terrainrt/rt/gpu"
	"github.com/gekko3d/subd/terrainrt/rt/kernel"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

type options struct {
	config     string
	heightmap  string
	debug      bool
	logFile    string
	validate   bool
	atlas      uint
	headless   int
	out        string
	width      int
	height     int
	dumpConfig bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "TOML configuration file")
	flag.StringVar(&opts.heightmap, "heightmap", "", "16-bit PNG or TIFF height map")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging and key checks")
	flag.StringVar(&opts.logFile, "log", "", "Also write logs to this rotating file")
	flag.BoolVar(&opts.validate, "validate", false, "Compile the shaders with naga before device creation")
	flag.UintVar(&opts.atlas, "atlas", core.DefaultAtlasLevel, "Leaf atlas subdivision level")
	flag.IntVar(&opts.headless, "headless", 0, "Run N frames on the CPU device instead of opening a window")
	flag.StringVar(&opts.out, "out", "frame.png", "Image written after a headless run")
	flag.IntVar(&opts.width, "width", 1280, "Window or image width")
	flag.IntVar(&opts.height, "height", 720, "Window or image height")
	flag.BoolVar(&opts.dumpConfig, "dump-config", false, "Print the effective configuration and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "subd:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg := core.DefaultAppConfig()
	if opts.config != "" {
		var err error
		if cfg, err = core.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	if opts.dumpConfig {
		return core.WriteConfig(os.Stdout, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	core.Debug = opts.debug

	hf, err := app.LoadHeightmap(opts.heightmap)
	if err != nil {
		return err
	}
	atlas := core.NewLeafAtlas(uint32(opts.atlas))

	logging := subd.LoggingModule{Prefix: "subd", Debug: opts.debug, File: opts.logFile}
	driver := subd.SubdivisionModule{Config: &cfg, Width: uint32(opts.width), Height: uint32(opts.height)}

	if opts.headless > 0 {
		return runHeadless(opts, hf, atlas, logging, driver)
	}
	return runWindow(opts, hf, atlas, logging, driver)
}

func runHeadless(opts options, hf *core.HeightField, atlas *core.LeafAtlas, logging subd.LoggingModule, driver subd.SubdivisionModule) error {
	a, closeLog := newApp(logging, hf)
	defer closeLog()
	dev, err := kernel.NewDevice(hf, kernel.Options{
		Capacity: driver.Config.Capacity,
		Width:    opts.width,
		Height:   opts.height,
		Atlas:    atlas,
		Logger:   a.Logger(),
	})
	if err != nil {
		return err
	}
	defer dev.Release()

	a.Commands().AddResources(&subd.Renderer{Device: dev})
	driver.Install(a, a.Commands())
	n := a.RunFrames(opts.headless)

	s := dev.Snapshot(0)
	a.Logger().Infof("%d frames, %d leaves, %d dropped, last frame %v", n,
		s.Counters[core.CounterSource], s.Counters[core.CounterDropped], a.Profiler().Total())
	a.Logger().Debugf("stage timings: %s", a.Profiler().GetStatsString())

	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dev.Image()); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", opts.out, err)
	}
	return f.Close()
}

func runWindow(opts options, hf *core.HeightField, atlas *core.LeafAtlas, logging subd.LoggingModule, driver subd.SubdivisionModule) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(opts.width, opts.height, "subd", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	a, closeLog := newApp(logging, hf)
	defer closeLog()
	w, err := app.NewWindow(window, hf, gpu.Options{
		Capacity:        driver.Config.Capacity,
		Atlas:           atlas,
		Logger:          a.Logger(),
		ValidateShaders: opts.validate,
	})
	if err != nil {
		return err
	}
	defer w.Release()

	cmd := a.Commands()
	app.WindowModule{Window: w}.Install(a, cmd)
	driver.Install(a, cmd)
	app.InputModule{}.Install(a, cmd)
	a.Run()
	return nil
}

// newApp builds the logging and clock modules shared by both runners. With a
// log file, SIGHUP rotates it.
func newApp(logging subd.LoggingModule, hf *core.HeightField) (*subd.App, func()) {
	a := subd.NewAppBuilder().UseModule(logging, subd.TimeModule{}).Build()
	lo, hi := hf.HeightRange()
	a.Logger().Infof("height map %dx%d, heights %.3f..%.3f", hf.Width, hf.Height, lo, hi)

	lf, ok := subd.Resource[subd.LogFile](a)
	if !ok {
		return a, func() {}
	}
	stop := lf.RotateOnSignal(a.Logger(), syscall.SIGHUP)
	return a, func() {
		stop()
		lf.Close()
	}
}
