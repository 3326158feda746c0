package hotkey

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"voicebutton/log"
	"voicebutton/voice"
)

type Mode string

// openPoll is how often a release waits on a microphone that is still opening.
const openPoll = 20 * time.Millisecond

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// Controller is the part of session.Machine a binding drives.
type Controller interface {
	Start()
	Stop()
	Reset()
	State() voice.State
}

// Binding maps one key onto tap-to-toggle and hold-to-talk. A press always
// starts right away; holding it past the threshold makes the release stop the
// take, while a quick tap leaves it running until the next press.
type Binding struct {
	hk    Hotkey
	ctl   Controller
	hold  time.Duration
	clock clockwork.Clock

	mu   sync.Mutex
	mode Mode

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// Bind starts routing hk to ctl. A nil clock means the real one.
func Bind(hk Hotkey, ctl Controller, hold time.Duration, clock clockwork.Clock) *Binding {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := &Binding{
		hk:    hk,
		ctl:   ctl,
		hold:  hold,
		clock: clock,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Mode reports how the last press that started a take was classified.
func (b *Binding) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *Binding) setMode(m Mode) {
	b.mu.Lock()
	b.mode = m
	b.mu.Unlock()
}

func (b *Binding) Close() {
	b.once.Do(func() { close(b.quit) })
	<-b.done
}

func (b *Binding) run() {
	defer close(b.done)
	for {
		select {
		case <-b.hk.Keydown():
		case <-b.quit:
			return
		}

		switch st := b.ctl.State(); st {
		case voice.Recording, voice.Requesting:
			// Stops on release, whether tapped or held.
			if !b.waitUp() || !b.stopWhenOpen() {
				return
			}
			continue
		case voice.Processing:
			log.Info("hotkey ignored while processing")
			if !b.waitUp() {
				return
			}
			continue
		case voice.Success:
			b.ctl.Reset()
		}

		b.ctl.Start()
		timer := b.clock.NewTimer(b.hold)
		select {
		case <-timer.Chan():
			b.setMode(ModePTT)
			if !b.waitUp() || !b.stopWhenOpen() {
				return
			}
		case <-b.hk.Keyup():
			timer.Stop()
			b.setMode(ModeToggle)
		case <-b.quit:
			timer.Stop()
			return
		}
	}
}

// stopWhenOpen stops the take, first waiting out Requesting since the machine
// ignores Stop until the microphone is open. A start that fails needs no
// stop. It reports false if the binding closed while waiting.
func (b *Binding) stopWhenOpen() bool {
	for b.ctl.State() == voice.Requesting {
		select {
		case <-b.clock.After(openPoll):
		case <-b.quit:
			return false
		}
	}
	if b.ctl.State() == voice.Recording {
		b.ctl.Stop()
	}
	return true
}

func (b *Binding) waitUp() bool {
	select {
	case <-b.hk.Keyup():
		return true
	case <-b.quit:
		return false
	}
}
