package audio

import (
	"errors"
	"strings"
)

const (
	WAVHeaderSize  = 44
	BytesPerSample = 2 // signed 16-bit little endian
)

var (
	// ErrPermission is returned when the OS refuses microphone access.
	ErrPermission = errors.New("microphone permission denied")
	// ErrNoDevice is returned when the requested input device does not exist.
	ErrNoDevice = errors.New("capture device not found")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]", "(bt)", "[bt]",
}

// IsBluetooth guesses from the device name whether it is a headset mic,
// which usually means an 8/16 kHz HFP link.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

// CaptureConfig describes the requested stream. EchoCancellation and
// NoiseSuppression are hints; backends without DSP ignore them.
type CaptureConfig struct {
	SampleRate       uint32
	Channels         uint32
	EchoCancellation bool
	NoiseSuppression bool
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
