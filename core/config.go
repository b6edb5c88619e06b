// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/pkg/errors"
)

// Environment variables read by LoadConfiguration.
const (
	EnvTitle            = "KORU_TITLE"
	EnvWidth            = "KORU_WIDTH"
	EnvHeight           = "KORU_HEIGHT"
	EnvVSync            = "KORU_VSYNC"
	EnvImageCount       = "KORU_IMAGE_COUNT"
	EnvDevice           = "KORU_DEVICE"
	EnvDeviceExtensions = "KORU_DEVICE_EXTENSIONS"
	EnvDebug            = "KORU_DEBUG"
	EnvShaders          = "KORU_SHADERS"
	EnvAcquireTimeout   = "KORU_ACQUIRE_TIMEOUT"
	EnvFenceTimeout     = "KORU_FENCE_TIMEOUT"
	EnvStatsInterval    = "KORU_STATS_INTERVAL"
	EnvLogLevel         = "KORU_LOG_LEVEL"
	EnvLogFormat        = "KORU_LOG_FORMAT"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Window   WindowConfiguration
	Renderer RendererConfiguration
	Time     TimeConfiguration
	Log      LogConfiguration
}

// WindowConfiguration describes the window that is opened.
type WindowConfiguration struct {
	Title  string
	Width  uint32
	Height uint32
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	VSync bool

	// ImageCount is the desired number of presentable images.
	// 0 lets the surface pick one above its minimum.
	ImageCount uint32

	DeviceIndex      int
	DeviceExtensions []string
	DebugMode        bool

	// Shaders is a directory of compiled shaders or a kar archive.
	// Empty uses the shaders compiled into the binary.
	Shaders string
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// AcquireTimeout bounds the wait for a presentable image.
	// 0 waits forever.
	AcquireTimeout time.Duration

	// FenceTimeout bounds the wait for a frame slot. 0 waits forever.
	FenceTimeout time.Duration

	// StatsInterval is the number of iterations between frame
	// statistics log entries. 0 disables them.
	StatsInterval uint64
}

// LogConfiguration selects the log level and output format.
type LogConfiguration struct {
	Level  string
	Format string
}

// DefaultConfiguration returns the settings used when nothing is overridden.
func DefaultConfiguration() Configuration {
	return Configuration{
		Window: WindowConfiguration{
			Title:  "Koru3D",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfiguration{
			VSync: true,
		},
		Time: TimeConfiguration{
			FenceTimeout:  time.Second,
			StatsInterval: 60,
		},
		Log: LogConfiguration{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfiguration overlays KORU_* environment variables, including
// those from a .env file, onto the defaults.
func LoadConfiguration() (Configuration, error) {
	cfg := DefaultConfiguration()
	p := envParser{}

	cfg.Window.Title = envy.Get(EnvTitle, cfg.Window.Title)
	cfg.Window.Width = p.uint32(EnvWidth, cfg.Window.Width)
	cfg.Window.Height = p.uint32(EnvHeight, cfg.Window.Height)

	cfg.Renderer.VSync = p.bool(EnvVSync, cfg.Renderer.VSync)
	cfg.Renderer.ImageCount = p.uint32(EnvImageCount, cfg.Renderer.ImageCount)
	cfg.Renderer.DeviceIndex = p.int(EnvDevice, cfg.Renderer.DeviceIndex)
	cfg.Renderer.DebugMode = p.bool(EnvDebug, cfg.Renderer.DebugMode)
	cfg.Renderer.Shaders = envy.Get(EnvShaders, cfg.Renderer.Shaders)
	if list := envy.Get(EnvDeviceExtensions, ""); list != "" {
		for _, ext := range strings.Split(list, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				cfg.Renderer.DeviceExtensions = append(cfg.Renderer.DeviceExtensions, ext)
			}
		}
	}

	cfg.Time.AcquireTimeout = p.duration(EnvAcquireTimeout, cfg.Time.AcquireTimeout)
	cfg.Time.FenceTimeout = p.duration(EnvFenceTimeout, cfg.Time.FenceTimeout)
	cfg.Time.StatsInterval = p.uint64(EnvStatsInterval, cfg.Time.StatsInterval)

	cfg.Log.Level = envy.Get(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Format = envy.Get(EnvLogFormat, cfg.Log.Format)

	if p.err != nil {
		return DefaultConfiguration(), p.err
	}
	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		return DefaultConfiguration(), errors.Errorf("invalid window size %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	return cfg, nil
}

// envParser keeps the first parse failure so LoadConfiguration can read
// every variable and report once.
type envParser struct {
	err error
}

func (p *envParser) lookup(key string) (string, bool) {
	value := strings.TrimSpace(envy.Get(key, ""))
	return value, value != "" && p.err == nil
}

func (p *envParser) fail(key, value string, err error) {
	p.err = errors.Wrapf(err, "%s=%q", key, value)
}

func (p *envParser) uint32(key string, def uint32) uint32 {
	value, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return uint32(n)
}

func (p *envParser) uint64(key string, def uint64) uint64 {
	value, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return n
}

func (p *envParser) int(key string, def int) int {
	value, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return n
}

func (p *envParser) bool(key string, def bool) bool {
	value, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return b
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	value, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return def
	}
	return d
}
