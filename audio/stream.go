package audio

import "sync"

// Stream fans live PCM chunks out to read-only taps. The recorder owns it and
// closes it when the device is released; taps must not outlive Done.
type Stream struct {
	SampleRate int
	Channels   int

	mu     sync.Mutex
	taps   map[uint64]func(pcm []byte)
	nextID uint64
	closed bool
	done   chan struct{}
}

func NewStream(sampleRate, channels int) *Stream {
	return &Stream{
		SampleRate: sampleRate,
		Channels:   channels,
		taps:       make(map[uint64]func([]byte)),
		done:       make(chan struct{}),
	}
}

// Tap registers fn for every published chunk. The returned function removes
// the tap and may be called any number of times. Tapping a closed stream is
// a no-op.
func (s *Stream) Tap(fn func(pcm []byte)) (untap func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.taps[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.taps, id)
			s.mu.Unlock()
		})
	}
}

// Publish hands chunk to every tap. Taps receive the same slice and must not
// modify or retain it.
func (s *Stream) Publish(chunk []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fns := make([]func([]byte), 0, len(s.taps))
	for _, fn := range s.taps {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(chunk)
	}
}

// Close drops every tap and closes Done. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	clear(s.taps)
	close(s.done)
}

func (s *Stream) Done() <-chan struct{} { return s.done }

// Taps returns the number of live taps.
func (s *Stream) Taps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.taps)
}
