// Package analyzer turns a live audio.Stream into waveform bars for display.
// Nothing here feeds back into the capture path.
package analyzer

import (
	"encoding/binary"
	"errors"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"voicebutton/audio"
	"voicebutton/log"
)

type Config struct {
	Bins        int
	Smoothing   float64 // 0 = none, close to 1 = sluggish
	MinDecibels float64
	MaxDecibels float64
}

func DefaultConfig() Config {
	return Config{Bins: 64, Smoothing: 0.8, MinDecibels: -100, MaxDecibels: -30}
}

type Analyzer struct {
	cfg     Config
	fftSize int
	fft     *fourier.FFT

	mu       sync.Mutex
	stream   *audio.Stream
	untap    func()
	quit     chan struct{}
	channels int
	ring     []float64
	smoothed []float64
	last     []float64
}

func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.Bins <= 0 {
		cfg.Bins = def.Bins
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = def.Smoothing
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = def.MinDecibels, def.MaxDecibels
	}
	n := cfg.Bins * 2
	return &Analyzer{
		cfg:      cfg,
		fftSize:  n,
		fft:      fourier.NewFFT(n),
		ring:     make([]float64, n),
		smoothed: make([]float64, cfg.Bins),
	}
}

// Connect taps stream. Connecting the same stream again is a no-op; a
// different stream replaces the current tap. The tap is dropped on its own
// when the stream closes.
func (a *Analyzer) Connect(stream *audio.Stream) error {
	if stream == nil {
		return errors.New("analyzer: nil stream")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stream == stream {
		return nil
	}
	a.disconnectLocked()

	a.stream = stream
	a.channels = max(stream.Channels, 1)
	a.quit = make(chan struct{})
	a.untap = stream.Tap(a.feed)

	go func(quit chan struct{}) {
		select {
		case <-stream.Done():
			a.mu.Lock()
			if a.stream == stream {
				a.disconnectLocked()
			}
			a.mu.Unlock()
		case <-quit:
		}
	}(a.quit)
	return nil
}

// Disconnect drops the tap. Safe at any time, any number of times.
func (a *Analyzer) Disconnect() {
	a.mu.Lock()
	a.disconnectLocked()
	a.mu.Unlock()
}

func (a *Analyzer) disconnectLocked() {
	if a.stream == nil {
		return
	}
	a.untap()
	close(a.quit)
	a.stream, a.untap, a.quit = nil, nil, nil
	clear(a.ring)
	clear(a.smoothed)
	a.last = nil
}

func (a *Analyzer) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream != nil
}

func (a *Analyzer) feed(pcm []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("analyzer feed: %v", r)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	frame := audio.BytesPerSample * a.channels
	n := len(pcm) / frame
	if n == 0 {
		return
	}
	if n >= a.fftSize {
		pcm = pcm[(n-a.fftSize)*frame:]
		n = a.fftSize
	} else {
		copy(a.ring, a.ring[n:])
	}
	dst := a.ring[a.fftSize-n:]
	for i := range n {
		// first channel only
		s := int16(binary.LittleEndian.Uint16(pcm[i*frame:]))
		dst[i] = float64(s) / 32768
	}
}

// Sample returns Bins magnitudes in [0,1]. Each call advances the smoothing,
// so call it once per display frame.
func (a *Analyzer) Sample() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sampleLocked()
}

func (a *Analyzer) sampleLocked() (out []float64) {
	out = make([]float64, a.cfg.Bins)
	if a.stream == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("analyzer sample: %v", r)
			out = make([]float64, a.cfg.Bins)
		}
	}()

	seq := window.Blackman(append([]float64(nil), a.ring...))
	coeffs := a.fft.Coefficients(nil, seq)

	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	for k := range out {
		mag := cmplx.Abs(coeffs[k]) / float64(a.fftSize)
		a.smoothed[k] = a.cfg.Smoothing*a.smoothed[k] + (1-a.cfg.Smoothing)*mag
		db := a.cfg.MinDecibels
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		out[k] = min(max((db-a.cfg.MinDecibels)/span, 0), 1)
	}
	a.last = out
	return out
}

// Volume is the RMS of the most recent bars, in [0,1].
func (a *Analyzer) Volume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	bins := a.last
	if bins == nil {
		bins = a.sampleLocked()
	}
	return rms(bins)
}

func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(v)))
}
