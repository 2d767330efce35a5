package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSampleRate    = 48000
	defaultChannels      = 1
	defaultFrameDurMs    = 20
	defaultCodec         = "opus"
	defaultBitrate       = 32000
	defaultDenoiseEngine = "speexdsp"

	defaultInitialDelayMs    = 60
	defaultMinDelayMs        = 20
	defaultMaxDelayMs        = 500
	defaultPLCMaxConsecutive = 3
)

// Mode selects which half(es) of the duplex pipeline an Orchestrator runs.
type Mode int

const (
	ModeCapture Mode = iota
	ModePlayback
	ModeDuplex
)

func (m Mode) String() string {
	switch m {
	case ModeCapture:
		return "capture"
	case ModePlayback:
		return "playback"
	case ModeDuplex:
		return "duplex"
	default:
		return "unknown"
	}
}

// Config is the pipeline-wide configuration, recognized options as in spec §6.
type Config struct {
	Mode          Mode
	SampleRate    int
	Channels      int
	FrameDuration time.Duration

	EnableAEC      bool
	EnableDenoise  bool
	EnableAGC      bool
	DenoiseEngine  string // "speexdsp" | "rnnoise"

	Codec        string // "opus" | "pcmu" | "pcma" | "g722"
	Bitrate      int
	EnableFEC    bool
	EnableDTX    bool
	EnableVBR    bool
	OpusComplexity  int
	OpusApplication string // "voip" | "audio" | "lowdelay"
	G711UseALaw     bool
	G722BitrateMode int // 0=64k 1=56k 2=48k

	EnableSRTP bool

	Jitter JitterConfig
}

// JitterConfig configures C7 per spec §4.7 / §6.
type JitterConfig struct {
	InitialDelayMs    int
	MinDelayMs        int
	MaxDelayMs        int
	PLCMaxConsecutive int
}

type yamlConfig struct {
	Audio struct {
		SampleRate int    `yaml:"sample_rate"`
		Channels   int    `yaml:"channels"`
		FrameMs    int    `yaml:"frame_duration_ms"`
		Mode       string `yaml:"mode"`
	} `yaml:"audio"`
	DSP struct {
		EnableAEC     bool   `yaml:"enable_aec"`
		EnableDenoise bool   `yaml:"enable_denoise"`
		EnableAGC     bool   `yaml:"enable_agc"`
		DenoiseEngine string `yaml:"denoise_engine"`
	} `yaml:"dsp"`
	Codec struct {
		Name            string `yaml:"name"`
		Bitrate         int    `yaml:"bitrate"`
		EnableFEC       bool   `yaml:"enable_fec"`
		EnableDTX       bool   `yaml:"enable_dtx"`
		EnableVBR       bool   `yaml:"enable_vbr"`
		Complexity      int    `yaml:"complexity"`
		Application     string `yaml:"application"`
		G711UseALaw     bool   `yaml:"g711_use_alaw"`
		G722BitrateMode int    `yaml:"g722_bitrate_mode"`
	} `yaml:"codec"`
	Transport struct {
		EnableSRTP bool `yaml:"enable_srtp"`
	} `yaml:"transport"`
	Jitter struct {
		InitialDelayMs    int `yaml:"initial_delay_ms"`
		MinDelayMs        int `yaml:"min_delay_ms"`
		MaxDelayMs        int `yaml:"max_delay_ms"`
		PLCMaxConsecutive int `yaml:"plc_max_consecutive"`
	} `yaml:"jitter"`
}

// DefaultConfig returns the documented defaults for every recognized option.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeDuplex,
		SampleRate:      defaultSampleRate,
		Channels:        defaultChannels,
		FrameDuration:   defaultFrameDurMs * time.Millisecond,
		DenoiseEngine:   defaultDenoiseEngine,
		Codec:           defaultCodec,
		Bitrate:         defaultBitrate,
		OpusApplication: "voip",
		OpusComplexity:  5,
		Jitter: JitterConfig{
			InitialDelayMs:    defaultInitialDelayMs,
			MinDelayMs:        defaultMinDelayMs,
			MaxDelayMs:        defaultMaxDelayMs,
			PLCMaxConsecutive: defaultPLCMaxConsecutive,
		},
	}
}

// LoadConfig reads a YAML configuration file and overlays it onto DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.Audio.SampleRate > 0 {
		cfg.SampleRate = yc.Audio.SampleRate
	}
	switch cfg.SampleRate {
	case 8000, 16000, 24000, 48000:
	default:
		return Config{}, fmt.Errorf("audio.sample_rate must be one of 8000/16000/24000/48000, got %d", cfg.SampleRate)
	}

	if yc.Audio.Channels > 0 {
		cfg.Channels = yc.Audio.Channels
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return Config{}, fmt.Errorf("audio.channels must be 1 or 2, got %d", cfg.Channels)
	}

	if yc.Audio.FrameMs > 0 {
		cfg.FrameDuration = time.Duration(yc.Audio.FrameMs) * time.Millisecond
	}
	switch yc.Audio.FrameMs {
	case 0, 10, 20, 40, 60:
	default:
		return Config{}, fmt.Errorf("audio.frame_duration_ms must be one of 10/20/40/60, got %d", yc.Audio.FrameMs)
	}

	switch strings.ToLower(yc.Audio.Mode) {
	case "":
	case "capture":
		cfg.Mode = ModeCapture
	case "playback":
		cfg.Mode = ModePlayback
	case "duplex":
		cfg.Mode = ModeDuplex
	default:
		return Config{}, fmt.Errorf("audio.mode must be capture/playback/duplex, got %q", yc.Audio.Mode)
	}

	cfg.EnableAEC = yc.DSP.EnableAEC
	cfg.EnableDenoise = yc.DSP.EnableDenoise
	cfg.EnableAGC = yc.DSP.EnableAGC
	if yc.DSP.DenoiseEngine != "" {
		cfg.DenoiseEngine = strings.ToLower(yc.DSP.DenoiseEngine)
	}
	if cfg.DenoiseEngine != "speexdsp" && cfg.DenoiseEngine != "rnnoise" {
		return Config{}, fmt.Errorf("dsp.denoise_engine must be speexdsp or rnnoise, got %q", cfg.DenoiseEngine)
	}

	if yc.Codec.Name != "" {
		cfg.Codec = strings.ToLower(yc.Codec.Name)
	}
	switch cfg.Codec {
	case "opus", "pcmu", "pcma", "g722":
	default:
		return Config{}, fmt.Errorf("codec.name must be opus/pcmu/pcma/g722, got %q", cfg.Codec)
	}
	if yc.Codec.Bitrate > 0 {
		cfg.Bitrate = yc.Codec.Bitrate
	}
	cfg.EnableFEC = yc.Codec.EnableFEC
	cfg.EnableDTX = yc.Codec.EnableDTX
	cfg.EnableVBR = yc.Codec.EnableVBR
	if yc.Codec.Complexity > 0 {
		cfg.OpusComplexity = yc.Codec.Complexity
	}
	if cfg.OpusComplexity < 0 || cfg.OpusComplexity > 10 {
		return Config{}, fmt.Errorf("codec.complexity must be 0..10, got %d", cfg.OpusComplexity)
	}
	if yc.Codec.Application != "" {
		cfg.OpusApplication = strings.ToLower(yc.Codec.Application)
	}
	switch cfg.OpusApplication {
	case "voip", "audio", "lowdelay":
	default:
		return Config{}, fmt.Errorf("codec.application must be voip/audio/lowdelay, got %q", cfg.OpusApplication)
	}
	cfg.G711UseALaw = yc.Codec.G711UseALaw
	cfg.G722BitrateMode = yc.Codec.G722BitrateMode
	if cfg.G722BitrateMode < 0 || cfg.G722BitrateMode > 2 {
		return Config{}, fmt.Errorf("codec.g722_bitrate_mode must be 0/1/2, got %d", cfg.G722BitrateMode)
	}

	cfg.EnableSRTP = yc.Transport.EnableSRTP

	if yc.Jitter.InitialDelayMs > 0 {
		cfg.Jitter.InitialDelayMs = yc.Jitter.InitialDelayMs
	}
	if yc.Jitter.MinDelayMs > 0 {
		cfg.Jitter.MinDelayMs = yc.Jitter.MinDelayMs
	}
	if yc.Jitter.MaxDelayMs > 0 {
		cfg.Jitter.MaxDelayMs = yc.Jitter.MaxDelayMs
	}
	if yc.Jitter.PLCMaxConsecutive > 0 {
		cfg.Jitter.PLCMaxConsecutive = yc.Jitter.PLCMaxConsecutive
	}
	if cfg.Jitter.MinDelayMs >= cfg.Jitter.MaxDelayMs {
		return Config{}, errors.New("jitter.min_delay_ms must be less than jitter.max_delay_ms")
	}

	return cfg, nil
}

// FrameSize returns the number of samples per channel in one pipeline frame.
func (c Config) FrameSize() int {
	return int(int64(c.SampleRate) * c.FrameDuration.Milliseconds() / 1000)
}
