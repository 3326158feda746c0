// Package recorder owns the microphone for one attempt and turns what it
// hears into a voice.Capture.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"sync"
	"time"

	"voicebutton/audio"
	"voicebutton/encoder"
	"voicebutton/log"
	"voicebutton/voice"
)

// Slack allowed past MaxDuration before a take is rejected as too long. The
// session auto-stops on a one second tick, so a take may overshoot slightly.
const maxDurationSlack = 2 * time.Second

type Config struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool

	// ChunkInterval is the cadence at which PCM is handed to the live stream.
	ChunkInterval time.Duration
	MinDuration   time.Duration
	// MaxDuration of zero disables the TooLong check.
	MaxDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:       encoder.SampleRate,
		Channels:         encoder.Channels,
		EchoCancellation: true,
		NoiseSuppression: true,
		ChunkInterval:    100 * time.Millisecond,
		MinDuration:      100 * time.Millisecond,
	}
}

type Recorder struct {
	actx   audio.Context
	device *audio.DeviceInfo
	cfg    Config

	mu     sync.Mutex
	active *take
}

// New returns a recorder for device, or the system default when device is nil.
func New(actx audio.Context, device *audio.DeviceInfo, cfg Config) *Recorder {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = def.ChunkInterval
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	return &Recorder{actx: actx, device: device, cfg: cfg}
}

// SetDevice changes the input used by the next Start.
func (r *Recorder) SetDevice(device *audio.DeviceInfo) {
	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return "system default"
	}
	return r.device.Name
}

// Start opens the device and begins buffering. Failures are *voice.VoiceError
// with PermissionDenied, DeviceUnavailable or CaptureFailed.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return voice.NewError(voice.CaptureFailed, "Already recording", nil)
	}
	if err := ctx.Err(); err != nil {
		return voice.NewError(voice.CaptureFailed, "", err)
	}

	dev, err := r.actx.NewCapture(r.device, audio.CaptureConfig{
		SampleRate:       uint32(r.cfg.SampleRate),
		Channels:         uint32(r.cfg.Channels),
		EchoCancellation: r.cfg.EchoCancellation,
		NoiseSuppression: r.cfg.NoiseSuppression,
	})
	if err != nil {
		log.Errorf("capture init: %v", err)
		return classify(err, voice.DeviceUnavailable)
	}

	t := newTake(dev, r.cfg)
	dev.SetCallback(t.onData)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		t.abort()
		log.Errorf("capture start: %v", err)
		return classify(err, voice.CaptureFailed)
	}

	r.active = t
	log.Info("recording_start: " + dev.DeviceName())
	return nil
}

// Stop finalizes the take. The device and stream are released whatever the
// outcome.
func (r *Recorder) Stop(ctx context.Context) (*voice.Capture, error) {
	r.mu.Lock()
	t := r.active
	r.active = nil
	r.mu.Unlock()

	if t == nil {
		return nil, voice.NewError(voice.CaptureFailed, "Not recording", nil)
	}

	data, pcmBytes, err := t.finish()
	if err != nil {
		return nil, voice.NewError(voice.CaptureFailed, "", err)
	}

	byteRate := encoder.ByteRate(r.cfg.SampleRate, r.cfg.Channels)
	dur := time.Duration(float64(pcmBytes) / float64(byteRate) * float64(time.Second))
	log.Infof("recording_stop: %.2fs", dur.Seconds())

	if dur < r.cfg.MinDuration {
		return nil, voice.NewError(voice.TooShort, "", nil).
			WithDetail("duration_s", dur.Seconds()).
			WithDetail("min_s", r.cfg.MinDuration.Seconds())
	}
	if r.cfg.MaxDuration > 0 && dur > r.cfg.MaxDuration+maxDurationSlack {
		return nil, voice.NewError(voice.TooLong, "", nil).
			WithDetail("duration_s", dur.Seconds()).
			WithDetail("max_s", r.cfg.MaxDuration.Seconds())
	}
	if err := ctx.Err(); err != nil {
		return nil, voice.NewError(voice.CaptureFailed, "", err)
	}

	return &voice.Capture{
		Data:            data,
		Format:          voice.FormatWAV,
		DurationSeconds: dur.Seconds(),
		SampleRateHz:    r.cfg.SampleRate,
	}, nil
}

// Stream is the live PCM while capturing, nil otherwise.
func (r *Recorder) Stream() *audio.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.stream
}

// Recording reports whether a take is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func classify(err error, fallback voice.Code) *voice.VoiceError {
	switch {
	case errors.Is(err, audio.ErrPermission), errors.Is(err, fs.ErrPermission):
		return voice.NewError(voice.PermissionDenied, "", err)
	case errors.Is(err, audio.ErrNoDevice):
		return voice.NewError(voice.DeviceUnavailable, "", err)
	}
	return voice.NewError(fallback, "", err)
}

// take is one open device plus its buffers.
type take struct {
	dev        audio.CaptureDevice
	stream     *audio.Stream
	enc        *encoder.WavEncoder
	chunkBytes int

	blockChan  chan []int16
	encodeDone chan struct{}

	mu       sync.Mutex
	pending  []byte
	pcmBytes int
	stopped  bool

	encErr error
}

func newTake(dev audio.CaptureDevice, cfg Config) *take {
	frameBytes := audio.BytesPerSample * cfg.Channels
	frames := int(cfg.ChunkInterval.Seconds() * float64(cfg.SampleRate))
	t := &take{
		dev:        dev,
		stream:     audio.NewStream(cfg.SampleRate, cfg.Channels),
		enc:        encoder.NewWav(cfg.SampleRate, cfg.Channels),
		chunkBytes: max(frames, 1) * frameBytes,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(t.encodeDone)
		for block := range t.blockChan {
			if err := t.enc.EncodeBlock(block); err != nil && t.encErr == nil {
				t.encErr = err
			}
		}
	}()

	return t
}

func (t *take) onData(data []byte, _ uint32) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.pending = append(t.pending, data...)
	var chunks [][]byte
	for len(t.pending) >= t.chunkBytes {
		chunk := make([]byte, t.chunkBytes)
		copy(chunk, t.pending[:t.chunkBytes])
		t.pending = t.pending[t.chunkBytes:]
		chunks = append(chunks, chunk)
		t.emit(chunk)
	}
	t.mu.Unlock()

	for _, c := range chunks {
		t.stream.Publish(c)
	}
}

// emit queues chunk for encoding. Caller holds t.mu.
func (t *take) emit(chunk []byte) {
	samples := make([]int16, len(chunk)/audio.BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(chunk[i*2:]))
	}
	t.pcmBytes += len(samples) * audio.BytesPerSample
	t.blockChan <- samples
}

// finish releases the device, flushes what is left and returns the WAV bytes
// along with the PCM payload size.
func (t *take) finish() ([]byte, int, error) {
	t.dev.Stop()
	t.dev.ClearCallback()
	defer t.dev.Close()
	defer t.stream.Close()

	t.mu.Lock()
	t.stopped = true
	var tail []byte
	if len(t.pending) > 0 {
		tail = t.pending
		t.pending = nil
		t.emit(tail)
	}
	t.mu.Unlock()
	if tail != nil {
		t.stream.Publish(tail)
	}

	close(t.blockChan)
	<-t.encodeDone

	// encErr is only written by the encoder goroutine, which has exited.
	t.mu.Lock()
	pcmBytes := t.pcmBytes
	t.mu.Unlock()
	if t.encErr != nil {
		return nil, pcmBytes, t.encErr
	}
	if err := t.enc.Close(); err != nil {
		return nil, pcmBytes, err
	}
	return t.enc.Bytes(), pcmBytes, nil
}

// abort tears down a take whose device never started.
func (t *take) abort() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	close(t.blockChan)
	<-t.encodeDone
	t.stream.Close()
}
