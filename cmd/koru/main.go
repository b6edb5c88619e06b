// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/koruframe/core"
	"github.com/devblok/koruframe/gfx/frame"
	"github.com/devblok/koruframe/gfx/vkr"
)

// Vulkan and SDL calls must all come from the main thread.
func init() {
	runtime.LockOSThread()
}

var _ frame.StatsClock = (*core.FrameClock)(nil)

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	shaders      = flag.String("shaders", "", "Directory or kar archive of compiled shaders")
)

func main() {
	flag.Parse()

	cfg, err := core.LoadConfiguration()
	if err != nil {
		logrus.Fatalf("%+v", err)
	}
	if *debug {
		cfg.Renderer.DebugMode = true
	}
	if *shaders != "" {
		cfg.Renderer.Shaders = *shaders
	}

	log, err := core.NewLogger(cfg.Log)
	if err != nil {
		logrus.Fatalf("%+v", err)
	}

	stop, err := startProfiling()
	if err != nil {
		log.Fatalf("%+v", err)
	}

	err = run(cfg, log)
	stop()
	if err != nil {
		log.WithField("configuration_fatal", vkr.IsConfigurationFatal(err)).Fatalf("%+v", err)
	}
}

func startProfiling() (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			return stop, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return stop, err
		}
		stops = append(stops, pprof.StopCPUProfile)
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			return stop, err
		}
		if err := trace.Start(f); err != nil {
			return stop, err
		}
		stops = append(stops, trace.Stop)
	}

	if *memProfile != "" {
		stops = append(stops, func() {
			f, err := os.Create(*memProfile)
			if err != nil {
				logrus.WithError(err).Error("memory profile")
				return
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				logrus.WithError(err).Error("memory profile")
			}
		})
	}
	return stop, nil
}

func run(cfg core.Configuration, log *logrus.Logger) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "sdl.Init()")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := newWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer window.Destroy()

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), vkr.InstanceConfiguration{
		DebugMode:  cfg.Renderer.DebugMode,
		Extensions: window.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	surface, err := window.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return errors.Wrap(err, "sdl.VulkanCreateSurface()")
	}
	instance.SetSurface(surface)

	device, err := vkr.NewDevice(instance, vkr.DeviceConfiguration{
		DeviceIndex: cfg.Renderer.DeviceIndex,
		Extensions:  cfg.Renderer.DeviceExtensions,
	}, log)
	if err != nil {
		return err
	}
	defer device.Destroy()

	dctx, err := device.Context()
	if err != nil {
		return err
	}

	loader, closeLoader, err := shaderLoader(cfg.Renderer.Shaders)
	if err != nil {
		return err
	}
	defer closeLoader()

	w := newWorld(device, loader, log)
	defer w.Release()

	width, height := window.VulkanGetDrawableSize()
	driver, err := frame.NewDriver(dctx, frame.DriverConfiguration{
		Width:          uint32(width),
		Height:         uint32(height),
		VSync:          cfg.Renderer.VSync,
		ImageCount:     cfg.Renderer.ImageCount,
		AcquireTimeout: cfg.Time.AcquireTimeout,
		FenceTimeout:   cfg.Time.FenceTimeout,
		StatsInterval:  cfg.Time.StatsInterval,
		Clock:          core.NewFrameClock(),
		OnTransition: func(from, to frame.State) {
			log.WithFields(logrus.Fields{"from": from, "to": to}).Trace("frame state")
		},
	})
	if err != nil {
		return err
	}
	defer driver.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.WithFields(logrus.Fields{
		"format":       driver.Surface().Format().Format,
		"present_mode": driver.Surface().PresentMode(),
		"images":       driver.Surface().ImageCount(),
	}).Info("rendering")

	return driver.Run(ctx, w, windowEvents{window: window})
}
