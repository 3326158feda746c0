// Package doctor runs the -doctor diagnostics: each check prints PASS or
// FAIL and the run stops at the first failure that later checks depend on.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"voicebutton/audio"
	"voicebutton/clipboard"
	"voicebutton/config"
	"voicebutton/hotkey"
	"voicebutton/session"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

type Check struct {
	Name string
	// Required stops the run when it fails.
	Required bool
	Run      func(ctx context.Context, w io.Writer) error
}

// Run executes checks in order and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "voicebutton doctor - system diagnostics")
	fmt.Fprintln(w, "=======================================")

	allPass := true
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		if err := c.Run(ctx, w); err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", describe(err))
			allPass = false
			if c.Required {
				break
			}
			continue
		}
		fmt.Fprintln(w, "  PASS")
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func describe(err error) string {
	var ve *voice.VoiceError
	if errors.As(err, &ve) && ve.Message != "" {
		return fmt.Sprintf("%s (%s)", ve.Message, ve.Code)
	}
	return err.Error()
}

func ConfigCheck(cfg *config.Config) Check {
	return Check{Name: "Configuration", Required: true, Run: func(_ context.Context, w io.Writer) error {
		fmt.Fprintf(w, "  provider: %s\n", cfg.Transcriber.Provider)
		return cfg.Validate()
	}}
}

func LogDirCheck(dir string) Check {
	return Check{Name: "Log directory", Run: func(_ context.Context, w io.Writer) error {
		fmt.Fprintf(w, "  %s\n", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".doctor-*")
		if err != nil {
			return err
		}
		f.Close()
		return os.Remove(filepath.Join(dir, filepath.Base(f.Name())))
	}}
}

func DevicesCheck(actx audio.Context) Check {
	return Check{Name: "Capture devices", Required: true, Run: func(_ context.Context, w io.Writer) error {
		devices, err := actx.Devices()
		if err != nil {
			return voice.NewError(voice.DeviceUnavailable, "cannot list devices", err)
		}
		if len(devices) == 0 {
			return voice.NewError(voice.DeviceUnavailable, "no capture devices found", nil)
		}
		for _, d := range devices {
			tag := ""
			if audio.IsBluetooth(d.Name) {
				tag = " (Bluetooth: lower audio quality)"
			}
			fmt.Fprintf(w, "  %s%s\n", d.Name, tag)
		}
		return nil
	}}
}

// HotkeyCheck waits for the user to press the hotkey.
func HotkeyCheck(hk hotkey.Hotkey, timeout time.Duration) Check {
	return Check{Name: "Hotkey detection", Run: func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "  Press %s...\n", hotkey.Combo)
		if err := hk.Register(); err != nil {
			return err
		}
		defer hk.Unregister()

		select {
		case <-hk.Keydown():
		case <-time.After(timeout):
			return errors.New("timeout waiting for hotkey")
		case <-ctx.Done():
			return ctx.Err()
		}
		// Wait for keyup so it does not leak into the next step.
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		return nil
	}}
}

func ClipboardCheck() Check {
	return Check{Name: "Clipboard", Run: func(_ context.Context, w io.Writer) error {
		if !clipboard.Available() {
			return errors.New("no clipboard backend (install xclip, xsel or wl-clipboard)")
		}
		return nil
	}}
}

type pipelineEvent struct {
	state   voice.State
	outcome *voice.Outcome
	err     *voice.VoiceError
}

// PipelineCheck records for d through a session.Machine and transcribes the
// take with tr, exercising the same path as a real button press.
func PipelineCheck(rec session.Recorder, tr transcriber.Transcriber, cfg session.Config, d time.Duration) Check {
	return Check{Name: "Microphone and transcription", Run: func(ctx context.Context, w io.Writer) error {
		cfg.HapticsEnabled = false
		cfg.WaveformEnabled = false
		m := session.New(cfg, session.Deps{Recorder: rec, Transcriber: tr})
		defer m.Close()

		events := make(chan pipelineEvent, 16)
		emit := func(e pipelineEvent) {
			select {
			case events <- e:
			default:
			}
		}
		unsubscribe := m.Subscribe(session.ObserverFuncs{
			OnStateChange: func(s voice.State) { emit(pipelineEvent{state: s}) },
			OnComplete:    func(o voice.Outcome) { emit(pipelineEvent{outcome: &o}) },
			OnError:       func(e *voice.VoiceError) { emit(pipelineEvent{err: e}) },
		})
		defer unsubscribe()

		fmt.Fprintf(w, "  Speak for %s...\n", d)
		m.Start()
		for {
			select {
			case e := <-events:
				switch {
				case e.outcome != nil:
					fmt.Fprintf(w, "  Transcribed text (%s, %.0f%%): %s\n", tr.Name(), e.outcome.Confidence*100, e.outcome.Text)
					return nil
				case e.err != nil:
					return e.err
				case e.state == voice.Recording:
					go func() {
						select {
						case <-time.After(d):
							m.Stop()
						case <-ctx.Done():
						}
					}()
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}}
}
