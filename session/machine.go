package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"voicebutton/feedback"
	"voicebutton/log"
	"voicebutton/transcriber"
	"voicebutton/voice"
)

type Deps struct {
	Recorder    Recorder
	Transcriber transcriber.Transcriber

	// Optional.
	Analyzer Analyzer
	Feedback feedback.Sink
	Clock    clockwork.Clock
}

type intentKind int

const (
	intentStart intentKind = iota
	intentStop
	intentToggle
	intentReset
)

func (k intentKind) String() string {
	return [...]string{"start", "stop", "toggle", "reset"}[k]
}

type intent struct {
	kind intentKind
	ack  chan struct{}
}

type resultKind int

const (
	resStarted resultKind = iota
	resTranscribed
	resFailed
)

// result carries the outcome of async work back to the loop. attempt ties it
// to the Session that started the work.
type result struct {
	attempt string
	kind    resultKind
	outcome voice.Outcome
	err     error
	code    voice.Code
}

type Machine struct {
	cfg   Config
	rec   Recorder
	tr    transcriber.Transcriber
	an    Analyzer
	fb    feedback.Sink
	clock clockwork.Clock

	intents chan intent
	results chan result
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	disp    *dispatcher

	// owned by the loop
	sess      voice.Session
	lastState voice.State
	tick      clockwork.Timer
	idle      clockwork.Timer

	snapMu sync.RWMutex
	snap   voice.Session
}

// New starts a machine in Idle. Recorder and Transcriber are required.
func New(cfg Config, deps Deps) *Machine {
	if deps.Recorder == nil || deps.Transcriber == nil {
		panic("session: Recorder and Transcriber are required")
	}
	if deps.Feedback == nil {
		deps.Feedback = feedback.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if cfg.SuccessResetDelay <= 0 {
		cfg.SuccessResetDelay = DefaultConfig().SuccessResetDelay
	}

	m := &Machine{
		cfg:     cfg,
		rec:     deps.Recorder,
		tr:      deps.Transcriber,
		an:      deps.Analyzer,
		fb:      deps.Feedback,
		clock:   deps.Clock,
		intents: make(chan intent),
		results: make(chan result),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		disp:    newDispatcher(),
	}
	go m.loop()
	return m
}

func (m *Machine) Config() Config { return m.cfg }

// Subscribe registers o and returns a function that removes it.
func (m *Machine) Subscribe(o Observer) (unsubscribe func()) {
	return m.disp.subscribe(o)
}

// Session returns a copy of the current session.
func (m *Machine) Session() voice.Session {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

func (m *Machine) State() voice.State {
	return m.Session().State
}

// Start begins a new attempt from Idle or Error; ignored otherwise. It returns
// once the machine has moved to Requesting, not once the microphone is open.
func (m *Machine) Start() { m.send(intentStart) }

// Stop ends recording and hands the take to the transcriber. Ignored unless
// Recording.
func (m *Machine) Stop() { m.send(intentStop) }

// Toggle stops while Recording and starts from Idle or Error.
func (m *Machine) Toggle() { m.send(intentToggle) }

// Reset returns Success or Error to Idle.
func (m *Machine) Reset() { m.send(intentReset) }

func (m *Machine) send(k intentKind) {
	ack := make(chan struct{})
	select {
	case m.intents <- intent{kind: k, ack: ack}:
	case <-m.done:
		return
	}
	select {
	case <-ack:
	case <-m.done:
	}
}

// Close stops the machine and releases the microphone if it is held. It must
// not be called from an Observer.
func (m *Machine) Close() {
	m.once.Do(func() {
		close(m.quit)
		<-m.done
		m.disp.close()
	})
	<-m.done
}

func (m *Machine) loop() {
	defer close(m.done)
	for {
		var tickC, idleC <-chan time.Time
		if m.tick != nil {
			tickC = m.tick.Chan()
		}
		if m.idle != nil {
			idleC = m.idle.Chan()
		}

		select {
		case in := <-m.intents:
			m.handle(in.kind)
			close(in.ack)
		case r := <-m.results:
			m.apply(r)
		case <-tickC:
			m.tick = nil
			m.onTick()
		case <-idleC:
			m.idle = nil
			m.onIdle()
		case <-m.quit:
			m.shutdown()
			return
		}
	}
}

func (m *Machine) handle(k intentKind) {
	state := m.sess.State
	switch {
	case k == intentStart, k == intentToggle && state.CanStart():
		if !state.CanStart() {
			log.Infof("start ignored in %s", state)
			return
		}
		m.start()
	case k == intentStop, k == intentToggle && state == voice.Recording:
		if state != voice.Recording {
			log.Infof("stop ignored in %s", state)
			return
		}
		m.stop("manual")
	case k == intentReset:
		if state != voice.Success && state != voice.Error {
			return
		}
		m.stopIdle()
		m.sess = voice.Session{State: voice.Idle}
		m.publish()
	default:
		log.Infof("%s ignored in %s", k, state)
	}
}

func (m *Machine) start() {
	m.stopIdle()
	m.stopTick()
	attempt := uuid.NewString()
	m.sess = voice.Session{State: voice.Requesting, Attempt: attempt}
	m.publish()
	m.cue(feedback.CueRecordStart)

	go func() {
		err := m.rec.Start(context.Background())
		r := result{attempt: attempt, kind: resStarted}
		if err != nil {
			r.kind, r.err, r.code = resFailed, err, voice.CaptureFailed
		}
		if !m.post(r) && err == nil {
			m.rec.Stop(context.Background())
		}
	}()
}

func (m *Machine) stop(reason string) {
	m.stopTick()
	if m.an != nil {
		m.an.Disconnect()
	}
	m.sess.State = voice.Processing
	m.publish()
	m.cue(feedback.CueRecordStop)
	log.Infof("stop (%s) at %ds", reason, m.sess.ElapsedSeconds)

	attempt := m.sess.Attempt
	go func() {
		capture, err := m.rec.Stop(context.Background())
		if err != nil {
			m.post(result{attempt: attempt, kind: resFailed, err: err, code: voice.CaptureFailed})
			return
		}
		out, err := m.tr.Transcribe(context.Background(), capture)
		if err != nil {
			m.post(result{attempt: attempt, kind: resFailed, err: err, code: voice.TranscriptionServiceError})
			return
		}
		log.Transcription(m.tr.Name(), capture.DurationSeconds, out.Confidence, metricsOf(out))
		m.post(result{attempt: attempt, kind: resTranscribed, outcome: out})
	}()
}

// post hands r to the loop. It reports false if the machine closed first.
func (m *Machine) post(r result) bool {
	select {
	case m.results <- r:
		return true
	case <-m.quit:
		return false
	}
}

func (m *Machine) apply(r result) {
	if r.attempt != m.sess.Attempt {
		log.Warnf("dropping stale result for attempt %s", r.attempt)
		if r.kind == resStarted {
			go m.rec.Stop(context.Background())
		}
		return
	}

	switch {
	case r.kind == resStarted && m.sess.State == voice.Requesting:
		m.sess.State = voice.Recording
		m.sess.ElapsedSeconds = 0
		m.armTick()
		if m.cfg.WaveformEnabled && m.an != nil {
			if s := m.rec.Stream(); s != nil {
				if err := m.an.Connect(s); err != nil {
					log.Warnf("analyzer connect: %v", err)
				}
			}
		}
		m.publish()

	case r.kind == resFailed && (m.sess.State == voice.Requesting || m.sess.State == voice.Processing):
		m.fail(r.err, r.code)

	case r.kind == resTranscribed && m.sess.State == voice.Processing:
		m.sess.State = voice.Success
		m.sess.Transcript = r.outcome.Text
		m.sess.Confidence = r.outcome.Confidence
		m.armIdle()
		m.publish()
		m.cue(feedback.CueSuccess)
		m.disp.post(event{kind: evComplete, outcome: r.outcome})

	default:
		log.Warnf("result %d ignored in %s", r.kind, m.sess.State)
	}
}

func (m *Machine) fail(err error, fallback voice.Code) {
	ve := voice.AsError(err, fallback)
	m.stopTick()
	if m.an != nil {
		m.an.Disconnect()
	}
	m.sess.State = voice.Error
	m.sess.Err = ve
	m.sess.ErrorMessage = ve.Message
	if m.sess.ErrorMessage == "" {
		m.sess.ErrorMessage = string(ve.Code)
	}
	m.publish()
	log.Failure(m.sess.Attempt, string(ve.Code), ve.Error())
	m.cue(feedback.CueError)
	m.fb.Toast(feedback.LevelError, m.sess.ErrorMessage)
	m.disp.post(event{kind: evError, err: ve})
}

func (m *Machine) onTick() {
	if m.sess.State != voice.Recording {
		return
	}
	m.sess.ElapsedSeconds++
	elapsed := m.sess.ElapsedSeconds

	if m.cfg.MaxDurationSeconds > 0 && elapsed >= m.cfg.MaxDurationSeconds {
		m.publishTick()
		m.stop("max duration")
		return
	}

	m.armTick()
	m.publishTick()
	if every := m.cfg.TickCueEverySeconds; every > 0 && elapsed%every == 0 {
		m.cue(feedback.CueTick)
	}
}

func (m *Machine) onIdle() {
	if m.sess.State != voice.Success {
		return
	}
	m.sess = voice.Session{State: voice.Idle}
	m.publish()
}

func (m *Machine) shutdown() {
	m.stopTick()
	m.stopIdle()
	if m.an != nil {
		m.an.Disconnect()
	}
	if m.sess.State == voice.Recording {
		m.rec.Stop(context.Background())
	}
}

func (m *Machine) armTick() {
	m.stopTick()
	m.tick = m.clock.NewTimer(time.Second)
}

func (m *Machine) stopTick() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
}

func (m *Machine) armIdle() {
	m.stopIdle()
	m.idle = m.clock.NewTimer(m.cfg.SuccessResetDelay)
}

func (m *Machine) stopIdle() {
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
}

func (m *Machine) cue(c feedback.Cue) {
	if m.cfg.HapticsEnabled {
		m.fb.Cue(c)
	}
}

// publish copies the session for readers and emits a state event when the
// state moved.
func (m *Machine) publish() {
	m.snapMu.Lock()
	m.snap = m.sess
	m.snapMu.Unlock()

	if m.sess.State != m.lastState {
		log.Transition(m.sess.Attempt, m.lastState.String(), m.sess.State.String())
		m.lastState = m.sess.State
		m.disp.post(event{kind: evState, state: m.sess.State})
	}
}

func (m *Machine) publishTick() {
	m.snapMu.Lock()
	m.snap.ElapsedSeconds = m.sess.ElapsedSeconds
	m.snapMu.Unlock()
	m.disp.post(event{kind: evTick, elapsed: m.sess.ElapsedSeconds})
}

func metricsOf(out voice.Outcome) log.NetMetrics {
	ms := func(k string) float64 {
		v, _ := strconv.ParseFloat(out.Metadata[k], 64)
		return v
	}
	return log.NetMetrics{
		DNSTimeMs:   ms("dns_ms"),
		TLSTimeMs:   ms("tls_ms"),
		TTFBMs:      ms("ttfb_ms"),
		TotalTimeMs: ms("total_ms"),
		ConnReused:  out.Metadata["conn"] == "reused",
		TLSProtocol: out.Metadata["tls_proto"],
	}
}
