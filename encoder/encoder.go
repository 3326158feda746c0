package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder wraps native capture PCM into an upload container.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// ByteRate is the PCM payload rate for the given stream shape.
func ByteRate(sampleRate, channels int) int {
	return sampleRate * channels * BitsPerSample / 8
}
