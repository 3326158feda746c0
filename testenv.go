package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voicebutton/analyzer"
	"voicebutton/audio"
	"voicebutton/beep"
	"voicebutton/config"
	"voicebutton/feedback"
	"voicebutton/log"
	"voicebutton/recorder"
	"voicebutton/session"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

const (
	fakeTranscript = "the quick brown fox"
	waitTimeout    = 30 * time.Second
)

// syncWriter serializes lines from the command loop and the observer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format+"\n", args...)
}

// runTestMode drives a session headlessly from commands read on in, replaying
// wavPath as the microphone. It returns the process exit code.
//
// Commands: START, STOP, TOGGLE, RESET, WAIT [state], WAIT_AUDIO_DONE,
// SLEEP <ms>, QUIT.
func runTestMode(cfg *config.Config, wavPath string, in io.Reader, out io.Writer) int {
	beep.Disable()
	w := &syncWriter{w: out}

	fakeCtx, err := audio.LoadFakeContext(wavPath, cfg.Audio.SampleRate, true)
	if err != nil {
		w.printf("error loading WAV: %v", err)
		return 1
	}

	tr, err := transcriber.New(cfg.Transcriber.Provider, cfg.Credentials())
	if err != nil {
		w.printf("error: %v", err)
		return 1
	}
	if f, ok := tr.(*transcriber.Fake); ok {
		f.SetResult(fakeTranscript, 0.95, nil)
	}

	rec := recorder.New(fakeCtx, nil, cfg.RecorderConfig())
	m := session.New(cfg.SessionConfig(), session.Deps{
		Recorder:    rec,
		Transcriber: tr,
		Analyzer:    analyzer.New(analyzer.DefaultConfig()),
		Feedback: feedback.Funcs{
			OnCue: func(c feedback.Cue) { w.printf("cue %s", c) },
		},
	})
	defer m.Close()

	log.SessionStart(tr.Name(), rec.DeviceName(), cfg.Session.MaxDurationSeconds)
	var completed, settled atomic.Int64
	defer func() { log.SessionEnd(int(completed.Load())) }()

	unsubscribe := m.Subscribe(session.ObserverFuncs{
		OnStateChange: func(s voice.State) { w.printf("state %s", s) },
		OnComplete: func(o voice.Outcome) {
			w.printf("transcript %.2f %s", o.Confidence, o.Text)
			completed.Add(1)
			settled.Add(1)
		},
		OnError: func(e *voice.VoiceError) {
			w.printf("error %s: %s", e.Code, e.Message)
			settled.Add(1)
		},
	})
	defer unsubscribe()

	var waited int64
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" || strings.HasPrefix(cmd, "#") {
			continue
		}
		verb, arg, _ := strings.Cut(cmd, " ")
		switch strings.ToUpper(verb) {
		case "START":
			m.Start()
		case "STOP":
			m.Stop()
		case "TOGGLE":
			m.Toggle()
		case "RESET":
			m.Reset()
		case "WAIT":
			var ok bool
			if arg == "" {
				waited++
				ok = waitFor(func() bool { return settled.Load() >= waited })
			} else {
				ok = waitFor(func() bool { return strings.EqualFold(m.State().String(), arg) })
			}
			if !ok {
				w.printf("timeout waiting for %s", cmd)
				return 1
			}
		case "WAIT_AUDIO_DONE":
			caps := fakeCtx.Captures()
			if len(caps) == 0 {
				w.printf("no capture to wait for")
				continue
			}
			select {
			case <-caps[len(caps)-1].AudioDone():
			case <-time.After(waitTimeout):
				w.printf("timeout waiting for audio")
				return 1
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			return 0
		default:
			w.printf("unknown command %q", cmd)
		}
	}
	return 0
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}
