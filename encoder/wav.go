package encoder

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WavEncoder writes 16-bit PCM into an in-memory RIFF/WAVE container.
type WavEncoder struct {
	mu          sync.Mutex
	buf         memFile
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
	closed      bool
}

func NewWav(sampleRate, channels int) *WavEncoder {
	e := &WavEncoder{
		format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
	}
	e.enc = wav.NewEncoder(&e.buf, sampleRate, BitsPerSample, channels, wavFormatPCM)
	return e
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("wav encoder closed")
	}
	if len(block) == 0 {
		return nil
	}

	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block) / e.format.NumChannels)
	return nil
}

// Close patches the RIFF sizes. An encoder that never saw a sample still
// yields a valid header.
func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.totalFrames == 0 {
		e.buf.reset()
		writeEmptyHeader(&e.buf, e.format.SampleRate, e.format.NumChannels)
		return nil
	}
	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("closing wav: %w", err)
	}
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.data
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

// memFile is the io.WriteSeeker go-audio/wav needs to rewrite its header.
type memFile struct {
	data []byte
	pos  int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	n := copy(m.data[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.data)) + offset
	default:
		return 0, errors.New("memfile: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memfile: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}

func (m *memFile) reset() {
	m.data = m.data[:0]
	m.pos = 0
}

func writeEmptyHeader(w io.Writer, sampleRate, channels int) {
	var h [44]byte
	le32 := func(b []byte, v uint32) { b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24) }
	le16 := func(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
	blockAlign := channels * BitsPerSample / 8

	copy(h[0:4], "RIFF")
	le32(h[4:8], 36)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	le32(h[16:20], 16)
	le16(h[20:22], wavFormatPCM)
	le16(h[22:24], uint16(channels))
	le32(h[24:28], uint32(sampleRate))
	le32(h[28:32], uint32(sampleRate*blockAlign))
	le16(h[32:34], uint16(blockAlign))
	le16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	w.Write(h[:])
}
