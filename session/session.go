// Package session runs the recording/transcription state machine.
//
// A Machine owns one voice.Session. Intents (Start, Stop, Toggle, Reset) and
// the results of slow work (opening the microphone, finalizing the take,
// calling the backend) are applied one at a time on the machine's own
// goroutine, so the state only ever moves along
//
//	Idle -> Requesting -> Recording -> Processing -> Success | Error
//
// with Success returning to Idle after a delay and Error waiting for Reset or
// a new Start.
package session

import (
	"context"
	"time"

	"voicebutton/audio"
	"voicebutton/voice"
)

// Recorder is the microphone side of an attempt.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*voice.Capture, error)
	// Stream is the live audio while recording, nil otherwise.
	Stream() *audio.Stream
}

// Analyzer is an optional display tap on the live stream.
type Analyzer interface {
	Connect(stream *audio.Stream) error
	Disconnect()
}

type Config struct {
	MaxDurationSeconds  int
	HapticsEnabled      bool
	WaveformEnabled     bool
	TimerDisplayEnabled bool

	// SuccessResetDelay is how long Success is shown before returning to Idle.
	SuccessResetDelay time.Duration
	// TickCueEverySeconds plays a tick cue while recording; 0 disables it.
	TickCueEverySeconds int
}

func DefaultConfig() Config {
	return Config{
		MaxDurationSeconds:  300,
		HapticsEnabled:      true,
		WaveformEnabled:     true,
		TimerDisplayEnabled: true,
		SuccessResetDelay:   2 * time.Second,
		TickCueEverySeconds: 10,
	}
}

// Observer receives events in the order they happened, from a single
// goroutine. Observers may call back into the Machine.
type Observer interface {
	StateChanged(state voice.State)
	Ticked(elapsedSeconds int)
	Completed(out voice.Outcome)
	Failed(err *voice.VoiceError)
}

// ObserverFuncs adapts functions to an Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStateChange func(voice.State)
	OnTick        func(int)
	OnComplete    func(voice.Outcome)
	OnError       func(*voice.VoiceError)
}

func (f ObserverFuncs) StateChanged(s voice.State) {
	if f.OnStateChange != nil {
		f.OnStateChange(s)
	}
}

func (f ObserverFuncs) Ticked(elapsed int) {
	if f.OnTick != nil {
		f.OnTick(elapsed)
	}
}

func (f ObserverFuncs) Completed(out voice.Outcome) {
	if f.OnComplete != nil {
		f.OnComplete(out)
	}
}

func (f ObserverFuncs) Failed(err *voice.VoiceError) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
