// Package voice holds the data shared by the recorder, analyzer, transcriber
// and session packages.
package voice

// State is a step of the recording/transcription lifecycle.
type State int

const (
	Idle State = iota
	Requesting
	Recording
	Processing
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// CanStart reports whether a new attempt may begin from s.
func (s State) CanStart() bool { return s == Idle || s == Error }

// Session is one recording/transcription attempt as seen by the UI.
// The session package owns the live value; everyone else gets copies.
type Session struct {
	State          State
	Transcript     string
	Confidence     float64
	ErrorMessage   string
	Err            *VoiceError
	ElapsedSeconds int
	Attempt        string
}

type MimeFormat string

const (
	FormatWebM MimeFormat = "webm"
	FormatMP4  MimeFormat = "mp4"
	FormatWAV  MimeFormat = "wav"
	FormatMP3  MimeFormat = "mp3"
)

func (f MimeFormat) MimeType() string {
	switch f {
	case FormatWebM:
		return "audio/webm"
	case FormatMP4:
		return "audio/mp4"
	case FormatMP3:
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

// Ext is the file extension backends use to sniff the container.
func (f MimeFormat) Ext() string {
	if f == "" {
		return string(FormatWAV)
	}
	return string(f)
}

// Capture is a finalized recording. It is created once by the recorder and
// handed to exactly one Transcribe call.
type Capture struct {
	Data            []byte
	Format          MimeFormat
	DurationSeconds float64
	SampleRateHz    int // 0 when unknown
}

// Outcome is what a transcription backend returned.
type Outcome struct {
	Text         string
	Confidence   float64
	LanguageCode string
	Metadata     map[string]string
}
