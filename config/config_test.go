package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"voicebutton/voice"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.Session
	if s.MaxDurationSeconds != 300 || !s.HapticsEnabled || !s.WaveformEnabled || !s.TimerDisplayEnabled {
		t.Errorf("session defaults = %+v", s)
	}
	if s.Notifications {
		t.Error("notifications should default to off")
	}
	if s.SuccessResetDelay != 2*time.Second {
		t.Errorf("success_reset_delay = %v, want 2s", s.SuccessResetDelay)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.APIKey != "k" {
		t.Errorf("APIKey = %q, want k", cfg.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	p := writeFile(t, "config.yaml", `
session:
  max_duration_seconds: 60
  haptics_enabled: false
  success_reset_delay: 500ms
audio:
  device: USB Mic
transcriber:
  provider: deepgram
  language: de
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.MaxDurationSeconds != 60 || cfg.Session.HapticsEnabled {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Session.SuccessResetDelay != 500*time.Millisecond {
		t.Errorf("success_reset_delay = %v", cfg.Session.SuccessResetDelay)
	}
	// Untouched keys keep their defaults.
	if !cfg.Session.WaveformEnabled || cfg.Audio.SampleRate != 16000 {
		t.Errorf("defaults lost: %+v %+v", cfg.Session, cfg.Audio)
	}
	if cfg.Audio.Device != "USB Mic" {
		t.Errorf("device = %q", cfg.Audio.Device)
	}
	if cfg.APIKey != "dg" {
		t.Errorf("APIKey = %q, want dg", cfg.APIKey)
	}

	creds := cfg.Credentials()
	if creds.APIKey != "dg" || creds.Language != "de" {
		t.Errorf("credentials = %+v", creds)
	}
	if rc := cfg.RecorderConfig(); rc.MaxDuration != time.Minute {
		t.Errorf("recorder max = %v, want 1m", rc.MaxDuration)
	}
	if sc := cfg.SessionConfig(); sc.MaxDurationSeconds != 60 || sc.HapticsEnabled {
		t.Errorf("session config = %+v", sc)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.yaml")},
		{"malformed", writeFile(t, "bad.yaml", "session: [1, 2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if voice.CodeOf(err) != voice.InvalidConfig {
				t.Errorf("err = %v, want InvalidConfig", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   voice.Code
	}{
		{"ok", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Transcriber.Provider = "nope" }, voice.InvalidConfig},
		{"zero max duration", func(c *Config) { c.Session.MaxDurationSeconds = 0 }, voice.InvalidConfig},
		{"negative reset delay", func(c *Config) { c.Session.SuccessResetDelay = -time.Second }, voice.InvalidConfig},
		{"negative tick cue", func(c *Config) { c.Session.TickCueEverySeconds = -1 }, voice.InvalidConfig},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, voice.InvalidConfig},
		{"hotkey hold", func(c *Config) { c.Hotkey.Hold = 0 }, voice.InvalidConfig},
		{"hotkey hold ignored when disabled", func(c *Config) { c.Hotkey = Hotkey{} }, ""},
		{"missing key", func(c *Config) { c.APIKey = "" }, voice.MissingCredential},
		{"fake needs no key", func(c *Config) { c.Transcriber.Provider = "fake"; c.APIKey = "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.APIKey = "k"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if got := voice.CodeOf(err); got != tt.want {
				t.Errorf("code = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	p := writeFile(t, ".env", "GROQ_API_KEY=from-file\nOPENAI_API_KEY=file\n")
	t.Setenv("GROQ_API_KEY", "")
	os.Unsetenv("GROQ_API_KEY")
	t.Setenv("OPENAI_API_KEY", "from-env")

	if err := LoadEnv(p, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("GROQ_API_KEY"); got != "from-file" {
		t.Errorf("GROQ_API_KEY = %q, want from-file", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("OPENAI_API_KEY = %q, environment should win", got)
	}
}

func TestEnvKey(t *testing.T) {
	for provider, want := range map[string]string{
		"gemini":   "GEMINI_API_KEY",
		"OpenAI":   "OPENAI_API_KEY",
		"groq":     "GROQ_API_KEY",
		"deepgram": "DEEPGRAM_API_KEY",
		"fake":     "",
	} {
		if got := EnvKey(provider); got != want {
			t.Errorf("EnvKey(%q) = %q, want %q", provider, got, want)
		}
	}
}
