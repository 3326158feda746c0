package transcriber

import (
	"context"
	"sync"
	"time"

	"voicebutton/voice"
)

// Fake returns a scripted outcome. Delay and Block let tests hold a call in
// flight.
type Fake struct {
	mu         sync.Mutex
	text       string
	confidence float64
	err        error
	delay      time.Duration
	block      chan struct{}
	calls      []*voice.Capture
}

func NewFake(text string, err error) *Fake {
	return &Fake{text: text, confidence: defaultConfidence, err: err}
}

func (f *Fake) Name() string { return "fake" }

// Configure accepts any credentials.
func (f *Fake) Configure(Credentials) error { return nil }

// SetResult changes what later calls return.
func (f *Fake) SetResult(text string, confidence float64, err error) {
	f.mu.Lock()
	f.text, f.confidence, f.err = text, confidence, err
	f.mu.Unlock()
}

func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}

// Block makes Transcribe wait until the returned function is called.
func (f *Fake) Block() (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns every capture handed to Transcribe.
func (f *Fake) Calls() []*voice.Capture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*voice.Capture(nil), f.calls...)
}

func (f *Fake) Transcribe(_ context.Context, capture *voice.Capture) (voice.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, capture)
	text, conf, err, delay, block := f.text, f.confidence, f.err, f.delay, f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return voice.Outcome{}, voice.AsError(err, voice.TranscriptionServiceError)
	}
	if err := checkCapture(capture); err != nil {
		return voice.Outcome{}, err
	}
	if text == "" {
		return voice.Outcome{}, voice.NewError(voice.TranscriptionFailed, "", nil).WithDetail("provider", "fake")
	}
	return voice.Outcome{
		Text:       text,
		Confidence: conf,
		Metadata:   map[string]string{"provider": "fake"},
	}, nil
}
