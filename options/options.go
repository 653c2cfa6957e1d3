// Package options holds the viewer configuration and loads it from YAML or
// TOML files. Out-of-range values are clamped on load, never rejected.
package options

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/richinsley/gosketch/cache"
	"github.com/richinsley/gosketch/effects"
	"github.com/richinsley/gosketch/paper"
	"github.com/richinsley/gosketch/scene"
	"gopkg.in/yaml.v2"
)

// Options is the complete viewer configuration.
type Options struct {
	Width  int `json:"width" yaml:"width" toml:"width"`
	Height int `json:"height" yaml:"height" toml:"height"`

	Paper      PaperOptions      `json:"paper" yaml:"paper" toml:"paper"`
	Watercolor WatercolorOptions `json:"watercolor" yaml:"watercolor" toml:"watercolor"`
	Pencil     PencilOptions     `json:"pencil" yaml:"pencil" toml:"pencil"`
	Scene      SceneOptions      `json:"scene" yaml:"scene" toml:"scene"`
	Cache      cache.Config      `json:"cache" yaml:"cache" toml:"cache"`
	Panel      PanelOptions      `json:"panel" yaml:"panel" toml:"panel"`
	Record     RecordOptions     `json:"record" yaml:"record" toml:"record"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

type PaperOptions struct {
	Size int   `json:"size" yaml:"size" toml:"size"`
	Seed int64 `json:"seed" yaml:"seed" toml:"seed"` // 0 means a new grain every session
}

// WatercolorOptions is the watercolor pass state at startup.
type WatercolorOptions struct {
	Enabled                  bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	effects.WatercolorParams `yaml:",inline"`
}

// PencilOptions is the pencil-lines pass state at startup.
type PencilOptions struct {
	Enabled              bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	effects.PencilParams `yaml:",inline"`
}

type SceneOptions struct {
	Background effects.Color `json:"background" yaml:"background" toml:"background"`
	// Model is a URL or path loaded after startup. Empty renders the bare scene.
	Model string `json:"model" yaml:"model" toml:"model"`
}

type PanelOptions struct {
	Listen string `json:"listen" yaml:"listen" toml:"listen"`
}

// RecordOptions configures the ffmpeg recorder.
type RecordOptions struct {
	Output     string  `json:"output" yaml:"output" toml:"output"`
	FFmpegPath string  `json:"ffmpeg_path" yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	Codec      string  `json:"codec" yaml:"codec" toml:"codec"`
	FPS        int     `json:"fps" yaml:"fps" toml:"fps"`
	Frames     int     `json:"frames" yaml:"frames" toml:"frames"`
	Sweep      bool    `json:"sweep" yaml:"sweep" toml:"sweep"` // animate pigment over its range
	BitRate    string  `json:"bitrate" yaml:"bitrate" toml:"bitrate"`
	Quality    float64 `json:"quality" yaml:"quality" toml:"quality"`
}

// Default returns the shipped configuration: watercolor on, pencil lines off.
func Default() *Options {
	return &Options{
		Width:  1280,
		Height: 720,
		Paper:  PaperOptions{Size: paper.DefaultSize},
		Watercolor: WatercolorOptions{
			Enabled:          true,
			WatercolorParams: effects.DefaultWatercolorParams(),
		},
		Pencil: PencilOptions{
			Enabled:      false,
			PencilParams: effects.DefaultPencilParams(),
		},
		Scene: SceneOptions{Background: scene.DefaultBackground},
		Cache: cache.Config{Kind: cache.KindFile, TTL: 7 * 24 * time.Hour},
		Panel: PanelOptions{Listen: "127.0.0.1:8080"},
		Record: RecordOptions{
			Output: "output.mp4",
			Codec:  "h264",
			FPS:    60,
			Frames: 120,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml or .toml.
func Load(path string) (*Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, opts)
	case ".toml":
		err = toml.Unmarshal(data, opts)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	opts.Clamp()
	return opts, nil
}

// Save writes the options as YAML.
func (o *Options) Save(path string) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("error serializing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Clamp limits every tunable to its declared range and replaces invalid
// sizes with defaults.
func (o *Options) Clamp() {
	d := Default()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Paper.Size <= 0 {
		o.Paper.Size = d.Paper.Size
	}
	if o.Record.FPS <= 0 {
		o.Record.FPS = d.Record.FPS
	}
	if o.Record.Frames < 0 {
		o.Record.Frames = 0
	}
	o.Watercolor.WatercolorParams = o.Watercolor.WatercolorParams.Clamp()
	o.Pencil.PencilParams = o.Pencil.PencilParams.Clamp()
}
