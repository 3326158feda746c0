// Package feedback is the side channel the session uses for audible cues and
// toasts. Sinks must not block; slow work belongs in a goroutine.
package feedback

import (
	"fmt"
	"sync"
)

type Cue string

const (
	CueRecordStart Cue = "record-start"
	CueRecordStop  Cue = "record-stop"
	CueTick        Cue = "tick"
	CueSuccess     Cue = "success"
	CueError       Cue = "error"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Sink interface {
	Cue(c Cue)
	Toast(level Level, message string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Cue(Cue)             {}
func (Nop) Toast(Level, string) {}

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Cue(c Cue) {
	for _, s := range m {
		s.Cue(c)
	}
}

func (m Multi) Toast(level Level, message string) {
	for _, s := range m {
		s.Toast(level, message)
	}
}

// Funcs adapts plain functions to a Sink. Nil fields are ignored.
type Funcs struct {
	OnCue   func(Cue)
	OnToast func(Level, string)
}

func (f Funcs) Cue(c Cue) {
	if f.OnCue != nil {
		f.OnCue(c)
	}
}

func (f Funcs) Toast(level Level, message string) {
	if f.OnToast != nil {
		f.OnToast(level, message)
	}
}

// Spy records calls for assertions.
type Spy struct {
	mu     sync.Mutex
	cues   []Cue
	toasts []string
}

func (s *Spy) Cue(c Cue) {
	s.mu.Lock()
	s.cues = append(s.cues, c)
	s.mu.Unlock()
}

func (s *Spy) Toast(level Level, message string) {
	s.mu.Lock()
	s.toasts = append(s.toasts, fmt.Sprintf("%s: %s", level, message))
	s.mu.Unlock()
}

func (s *Spy) Cues() []Cue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Cue(nil), s.cues...)
}

// Toasts returns "level: message" strings.
func (s *Spy) Toasts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.toasts...)
}

// Count returns how often c was cued.
func (s *Spy) Count(c Cue) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.cues {
		if x == c {
			n++
		}
	}
	return n
}
