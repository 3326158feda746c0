package doctor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"voicebutton/audio"
	"voicebutton/config"
	"voicebutton/hotkey"
	"voicebutton/recorder"
	"voicebutton/session"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

func check(name string, required bool, err error) Check {
	return Check{Name: name, Required: required, Run: func(context.Context, io.Writer) error { return err }}
}

func TestRunAllPass(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{check("a", true, nil), check("b", false, nil)})
	if code != 0 {
		t.Fatalf("code = %d, want 0\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "[2/2] b") || !strings.Contains(out.String(), "All checks passed!") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestRunStopsAtRequiredFailure(t *testing.T) {
	var out bytes.Buffer
	code := Run(context.Background(), &out, []Check{
		check("optional", false, errors.New("meh")),
		check("required", true, voice.Errorf(voice.MissingCredential, "GROQ_API_KEY is not set")),
		check("never", false, nil),
	})
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	s := out.String()
	if !strings.Contains(s, "FAIL: meh") {
		t.Errorf("optional failure not reported:\n%s", s)
	}
	if !strings.Contains(s, "FAIL: GROQ_API_KEY is not set (missing_credential)") {
		t.Errorf("typed failure not described:\n%s", s)
	}
	if strings.Contains(s, "never") {
		t.Errorf("ran past a required failure:\n%s", s)
	}
}

func TestConfigCheck(t *testing.T) {
	cfg := config.Default()
	cfg.Transcriber.Provider = "fake"
	if err := ConfigCheck(&cfg).Run(context.Background(), io.Discard); err != nil {
		t.Errorf("fake provider: %v", err)
	}
	cfg.Transcriber.Provider = "groq"
	cfg.APIKey = ""
	err := ConfigCheck(&cfg).Run(context.Background(), io.Discard)
	if voice.CodeOf(err) != voice.MissingCredential {
		t.Errorf("err = %v, want MissingCredential", err)
	}
}

func TestLogDirCheck(t *testing.T) {
	if err := LogDirCheck(t.TempDir()).Run(context.Background(), io.Discard); err != nil {
		t.Error(err)
	}
}

func TestDevicesCheck(t *testing.T) {
	var out bytes.Buffer
	if err := DevicesCheck(audio.NewFakeContext(nil, 16000, false)).Run(context.Background(), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "fake") {
		t.Errorf("device not listed: %q", out.String())
	}
}

func TestHotkeyCheck(t *testing.T) {
	fk := hotkey.NewFake()
	fk.SimTap()
	if err := HotkeyCheck(fk, time.Second).Run(context.Background(), io.Discard); err != nil {
		t.Fatal(err)
	}

	err := HotkeyCheck(hotkey.NewFake(), 10*time.Millisecond).Run(context.Background(), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("err = %v, want timeout", err)
	}
}

func pipeline(t *testing.T, tr transcriber.Transcriber) (string, error) {
	t.Helper()
	pcm := make([]byte, 16000*2)
	rec := recorder.New(audio.NewFakeContext(pcm, 16000, false), nil, recorder.DefaultConfig())
	var out bytes.Buffer
	err := PipelineCheck(rec, tr, session.DefaultConfig(), 200*time.Millisecond).Run(context.Background(), &out)
	return out.String(), err
}

func TestPipelineCheck(t *testing.T) {
	fake := transcriber.NewFake("testing one two", nil)
	fake.SetResult("testing one two", 0.9, nil)
	out, err := pipeline(t, fake)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "testing one two") || !strings.Contains(out, "90%") {
		t.Errorf("output = %q", out)
	}
	if n := len(fake.Calls()); n != 1 {
		t.Errorf("transcribe calls = %d, want 1", n)
	}
}

func TestPipelineCheckFailure(t *testing.T) {
	_, err := pipeline(t, transcriber.NewFake("", errors.New("boom")))
	if voice.CodeOf(err) != voice.TranscriptionServiceError {
		t.Errorf("err = %v, want TranscriptionServiceError", err)
	}
}
