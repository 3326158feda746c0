package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voicebutton/analyzer"
	"voicebutton/audio"
	"voicebutton/beep"
	"voicebutton/clipboard"
	"voicebutton/config"
	"voicebutton/doctor"
	"voicebutton/feedback"
	"voicebutton/hotkey"
	"voicebutton/log"
	"voicebutton/recorder"
	"voicebutton/session"
	"voicebutton/shutdown"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

var version = "dev"

func fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error(msg)
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	log.Close()
	os.Exit(1)
}

// describe renders err for the terminal, preferring the user-facing message.
func describe(err error) string {
	ve := voice.AsError(err, voice.InvalidConfig)
	if ve.Message != "" {
		return ve.Message
	}
	return ve.Error()
}

func run() {
	configFlag := flag.String("config", "", "YAML config file")
	envFlag := flag.String("env", ".env", "dotenv file with API keys")
	providerFlag := flag.String("provider", "", "Transcription provider: gemini, openai, groq, deepgram or fake")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = provider default")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, replays the WAV file given as argument)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	hotkeyFlag := flag.Bool("hotkey", true, "Register the global "+hotkey.Combo+" hotkey")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voicebutton %s\n", version)
		os.Exit(0)
	}

	if err := config.LoadEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", describe(err))
	}
	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *providerFlag != "" {
		cfg.Transcriber.Provider = *providerFlag
		cfg.ResolveKey()
	}
	if *langFlag != "" {
		cfg.Transcriber.Language = *langFlag
	}
	if *deviceFlag != "" {
		cfg.Audio.Device = *deviceFlag
	}
	if !*hotkeyFlag {
		cfg.Hotkey.Enabled = false
	}

	logFlag := *logPathFlag
	if logFlag == "" {
		logFlag = cfg.Log.Path
	}
	logPath, err := log.ResolveDir(logFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *doctorFlag {
		code := runDoctor(cfg)
		log.Close()
		os.Exit(code)
	}

	// Fail before touching the microphone.
	if err := cfg.Validate(); err != nil {
		fatalf("%s", describe(err))
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: voicebutton -test <wav-file>")
			os.Exit(1)
		}
		code := runTestMode(cfg, args[0], os.Stdin, os.Stdout)
		log.Close()
		os.Exit(code)
	}

	actx, err := audio.NewContext()
	if err != nil {
		fatalf("initializing audio: %v", err)
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	switch {
	case cfg.Audio.Device != "":
		device, err = audio.FindDevice(actx, cfg.Audio.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Printf("Warning: %v, using the system default\n", err)
		}
	case *setupFlag:
		device, err = audio.SelectDevice(actx, os.Stdin, os.Stdout)
		if errors.Is(err, audio.ErrSelectionAborted) {
			os.Exit(0)
		}
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		}
	}

	tr, err := transcriber.New(cfg.Transcriber.Provider, cfg.Credentials())
	if err != nil {
		fatalf("%s", describe(err))
	}
	if w, ok := tr.(transcriber.Warmer); ok {
		go w.Warm()
	}

	go beep.Init()
	sinks := feedback.Multi{feedback.Beeper{}}
	if cfg.Session.Notifications {
		sinks = append(sinks, feedback.NewNotifier("voicebutton", feedback.LevelWarn))
	}

	rec := recorder.New(actx, device, cfg.RecorderConfig())
	an := analyzer.New(analyzer.DefaultConfig())
	m := session.New(cfg.SessionConfig(), session.Deps{
		Recorder:    rec,
		Transcriber: tr,
		Analyzer:    an,
		Feedback:    sinks,
	})

	var completed atomic.Int64
	m.Subscribe(session.ObserverFuncs{
		OnComplete: func(voice.Outcome) { completed.Add(1) },
	})

	log.SessionStart(tr.Name(), rec.DeviceName(), cfg.Session.MaxDurationSeconds)
	defer func() { log.SessionEnd(int(completed.Load())) }()
	defer m.Close()

	hotkeyHelp := ""
	if cfg.Hotkey.Enabled {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey register error: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %v (use the TUI keys instead)\n", err)
		} else {
			b := hotkey.Bind(hk, m, cfg.Hotkey.Hold, nil)
			defer hk.Unregister()
			defer b.Close()
			hotkeyHelp = hotkey.Combo + " tap to toggle, hold to talk"
		}
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if !*tuiFlag {
		runHeadless(ctx, m)
		return
	}

	provider := tr.Name()
	if cfg.Transcriber.Language != "" {
		provider += " (" + cfg.Transcriber.Language + ")"
	}
	model := newTUIModel(m, an, cfg.SessionConfig(), tuiOptions{
		Provider:   "[WAV | " + provider + "]",
		Device:     rec.DeviceName(),
		Bluetooth:  audio.IsBluetooth(rec.DeviceName()),
		HotkeyHelp: hotkeyHelp,
		Copy:       clipboard.Copy,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := m.Subscribe(tuiObserver{send: p.Send})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		log.Errorf("TUI error: %v", err)
	}
}

func runDoctor(cfg *config.Config) int {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	checks := []doctor.Check{
		doctor.ConfigCheck(cfg),
		doctor.LogDirCheck(log.Dir()),
		doctor.DevicesCheck(actx),
	}
	if cfg.Hotkey.Enabled {
		checks = append(checks, doctor.HotkeyCheck(hotkey.New(), 10*time.Second))
	}
	pipeline := doctor.Check{Name: "Microphone and transcription", Run: func(ctx context.Context, w io.Writer) error {
		tr, err := transcriber.New(cfg.Transcriber.Provider, cfg.Credentials())
		if err != nil {
			return err
		}
		device, _ := audio.FindDevice(actx, cfg.Audio.Device)
		rec := recorder.New(actx, device, cfg.RecorderConfig())
		return doctor.PipelineCheck(rec, tr, cfg.SessionConfig(), 3*time.Second).Run(ctx, w)
	}}
	checks = append(checks, pipeline, doctor.ClipboardCheck())
	return doctor.Run(ctx, os.Stdout, checks)
}

// runHeadless prints transitions until a termination signal; the hotkey is
// the only input.
func runHeadless(ctx context.Context, m *session.Machine) {
	unsubscribe := m.Subscribe(session.ObserverFuncs{
		OnStateChange: func(s voice.State) { fmt.Println("state:", s) },
		OnComplete:    func(o voice.Outcome) { fmt.Println(o.Text) },
		OnError:       func(e *voice.VoiceError) { fmt.Fprintln(os.Stderr, "error:", e.Message) },
	})
	defer unsubscribe()
	fmt.Printf("voicebutton %s: press %s to record, Ctrl+C to quit\n", version, hotkey.Combo)
	<-ctx.Done()
}
