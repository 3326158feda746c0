// Package config loads voicebutton settings from a YAML file, with API keys
// taken from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voicebutton/recorder"
	"voicebutton/session"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

type Config struct {
	Session     Session     `yaml:"session"`
	Audio       Audio       `yaml:"audio"`
	Transcriber Transcriber `yaml:"transcriber"`
	Hotkey      Hotkey      `yaml:"hotkey"`
	Log         Log         `yaml:"log"`

	// APIKey is resolved from the environment by Load, never read from the file.
	APIKey string `yaml:"-"`
}

type Session struct {
	MaxDurationSeconds  int           `yaml:"max_duration_seconds"`
	HapticsEnabled      bool          `yaml:"haptics_enabled"`
	WaveformEnabled     bool          `yaml:"waveform_enabled"`
	TimerDisplayEnabled bool          `yaml:"timer_display_enabled"`
	SuccessResetDelay   time.Duration `yaml:"success_reset_delay"`
	TickCueEverySeconds int           `yaml:"tick_cue_every_seconds"`
	Notifications       bool          `yaml:"notifications"`
}

type Audio struct {
	Device           string        `yaml:"device"`
	SampleRate       int           `yaml:"sample_rate"`
	EchoCancellation bool          `yaml:"echo_cancellation"`
	NoiseSuppression bool          `yaml:"noise_suppression"`
	MinDuration      time.Duration `yaml:"min_duration"`
}

type Transcriber struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Endpoint    string `yaml:"endpoint"`
	Language    string `yaml:"language"`
	Instruction string `yaml:"instruction"`
}

type Hotkey struct {
	Enabled bool          `yaml:"enabled"`
	Hold    time.Duration `yaml:"hold"`
}

type Log struct {
	Path string `yaml:"path"`
}

func Default() Config {
	sc := session.DefaultConfig()
	rc := recorder.DefaultConfig()
	return Config{
		Session: Session{
			MaxDurationSeconds:  sc.MaxDurationSeconds,
			HapticsEnabled:      sc.HapticsEnabled,
			WaveformEnabled:     sc.WaveformEnabled,
			TimerDisplayEnabled: sc.TimerDisplayEnabled,
			SuccessResetDelay:   sc.SuccessResetDelay,
			TickCueEverySeconds: sc.TickCueEverySeconds,
		},
		Audio: Audio{
			SampleRate:       rc.SampleRate,
			EchoCancellation: rc.EchoCancellation,
			NoiseSuppression: rc.NoiseSuppression,
			MinDuration:      rc.MinDuration,
		},
		Transcriber: Transcriber{Provider: "gemini"},
		Hotkey:      Hotkey{Enabled: true, Hold: 400 * time.Millisecond},
	}
}

// EnvKey names the environment variable holding provider's API key.
func EnvKey(provider string) string {
	switch strings.ToLower(provider) {
	case "fake":
		return ""
	default:
		return strings.ToUpper(provider) + "_API_KEY"
	}
}

// LoadEnv loads .env style files into the environment. Missing files are
// skipped and variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return voice.NewError(voice.InvalidConfig, fmt.Sprintf("Could not read %s", f), err)
		}
	}
	return nil
}

// Load reads path over the defaults and resolves the API key. An empty path
// means defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, voice.NewError(voice.InvalidConfig, fmt.Sprintf("Could not read config %s", path), err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, voice.NewError(voice.InvalidConfig, fmt.Sprintf("Could not parse config %s", path), err)
		}
	}
	cfg.ResolveKey()
	return &cfg, nil
}

// ResolveKey reloads APIKey for the current provider.
func (c *Config) ResolveKey() {
	c.APIKey = ""
	if k := EnvKey(c.Transcriber.Provider); k != "" {
		c.APIKey = strings.TrimSpace(os.Getenv(k))
	}
}

// Validate reports the first problem that would make a capture pointless.
func (c *Config) Validate() error {
	p := strings.ToLower(c.Transcriber.Provider)
	if !slices.Contains(transcriber.Providers, p) {
		return voice.Errorf(voice.InvalidConfig, "Unknown transcription provider %q (want one of %s)",
			c.Transcriber.Provider, strings.Join(transcriber.Providers, ", "))
	}
	switch {
	case c.Session.MaxDurationSeconds <= 0:
		return voice.Errorf(voice.InvalidConfig, "session.max_duration_seconds must be positive, got %d", c.Session.MaxDurationSeconds)
	case c.Session.SuccessResetDelay < 0:
		return voice.Errorf(voice.InvalidConfig, "session.success_reset_delay must not be negative")
	case c.Session.TickCueEverySeconds < 0:
		return voice.Errorf(voice.InvalidConfig, "session.tick_cue_every_seconds must not be negative")
	case c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000:
		return voice.Errorf(voice.InvalidConfig, "audio.sample_rate must be between 8000 and 48000, got %d", c.Audio.SampleRate)
	case c.Audio.MinDuration < 0:
		return voice.Errorf(voice.InvalidConfig, "audio.min_duration must not be negative")
	case c.Hotkey.Enabled && c.Hotkey.Hold <= 0:
		return voice.Errorf(voice.InvalidConfig, "hotkey.hold must be positive")
	}
	if k := EnvKey(p); k != "" && c.APIKey == "" {
		return voice.Errorf(voice.MissingCredential, "%s is not set (put it in the environment or a .env file)", k)
	}
	return nil
}

func (c *Config) SessionConfig() session.Config {
	return session.Config{
		MaxDurationSeconds:  c.Session.MaxDurationSeconds,
		HapticsEnabled:      c.Session.HapticsEnabled,
		WaveformEnabled:     c.Session.WaveformEnabled,
		TimerDisplayEnabled: c.Session.TimerDisplayEnabled,
		SuccessResetDelay:   c.Session.SuccessResetDelay,
		TickCueEverySeconds: c.Session.TickCueEverySeconds,
	}
}

func (c *Config) RecorderConfig() recorder.Config {
	rc := recorder.DefaultConfig()
	rc.SampleRate = c.Audio.SampleRate
	rc.EchoCancellation = c.Audio.EchoCancellation
	rc.NoiseSuppression = c.Audio.NoiseSuppression
	rc.MinDuration = c.Audio.MinDuration
	rc.MaxDuration = time.Duration(c.Session.MaxDurationSeconds) * time.Second
	return rc
}

func (c *Config) Credentials() transcriber.Credentials {
	return transcriber.Credentials{
		APIKey:      c.APIKey,
		Model:       c.Transcriber.Model,
		Endpoint:    c.Transcriber.Endpoint,
		Language:    c.Transcriber.Language,
		Instruction: c.Transcriber.Instruction,
	}
}
