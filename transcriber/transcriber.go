package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"voicebutton/voice"
)

// DefaultInstruction is sent with every request that accepts a prompt.
const DefaultInstruction = "Transcribe the speech in this audio verbatim. " +
	"Remove filler words such as um, uh, er and you know, and fix obvious stutters. " +
	"Return only the transcribed text with no commentary. If there is no speech, return nothing."

// Confidence reported when a backend returns text but no score.
const defaultConfidence = 0.95

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

// metadata flattens m into Outcome.Metadata.
func (m *NetworkMetrics) metadata(into map[string]string) {
	ms := func(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }
	into["dns_ms"] = ms(m.DNS)
	into["tls_ms"] = ms(m.TLS)
	into["ttfb_ms"] = ms(m.TTFB)
	total := m.Total
	if total == 0 {
		total = m.Sum()
	}
	into["total_ms"] = ms(total)
	if m.ConnReused {
		into["conn"] = "reused"
	} else {
		into["conn"] = "new"
	}
	if m.TLSProtocol != "" {
		into["tls_proto"] = m.TLSProtocol
	}
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Credentials configure a backend. Only APIKey is required; the rest fall back
// to provider defaults.
type Credentials struct {
	APIKey      string
	Model       string
	Endpoint    string
	Language    string
	Instruction string
}

// Transcriber is the port the session hands finished captures to. Transcribe
// makes exactly one backend call and never retries.
type Transcriber interface {
	Name() string
	Configure(creds Credentials) error
	Transcribe(ctx context.Context, capture *voice.Capture) (voice.Outcome, error)
}

// Providers lists the names New accepts.
var Providers = []string{"gemini", "openai", "groq", "deepgram", "fake"}

// New builds and configures the named backend.
func New(provider string, creds Credentials) (Transcriber, error) {
	var t Transcriber
	switch strings.ToLower(provider) {
	case "gemini":
		t = NewGemini()
	case "openai":
		t = NewOpenAI()
	case "groq":
		t = NewGroq()
	case "deepgram":
		t = NewDeepgram()
	case "fake":
		t = NewFake("", nil)
	default:
		return nil, voice.Errorf(voice.InvalidConfig, "Unknown transcription provider %q (want one of %s)",
			provider, strings.Join(Providers, ", "))
	}
	if err := t.Configure(creds); err != nil {
		return nil, err
	}
	return t, nil
}

// baseTranscriber holds the configuration shared by the HTTP backends.
type baseTranscriber struct {
	name            string
	defaultModel    string
	defaultEndpoint string

	mu         sync.RWMutex
	creds      Credentials
	configured bool
}

func (b *baseTranscriber) Name() string { return b.name }

func (b *baseTranscriber) configure(c Credentials) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return voice.Errorf(voice.MissingCredential, "No API key configured for %s", b.name)
	}
	if c.Endpoint == "" {
		c.Endpoint = b.defaultEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return voice.NewError(voice.InvalidConfig, fmt.Sprintf("Invalid %s endpoint %q", b.name, c.Endpoint), err)
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Model == "" {
		c.Model = b.defaultModel
	}
	if c.Instruction == "" {
		c.Instruction = DefaultInstruction
	}

	b.mu.Lock()
	b.creds = c
	b.configured = true
	b.mu.Unlock()
	return nil
}

// credentials returns the active configuration, or InvalidConfig before a
// successful Configure.
func (b *baseTranscriber) credentials() (Credentials, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.configured {
		return Credentials{}, voice.Errorf(voice.InvalidConfig, "%s transcriber is not configured", b.name)
	}
	return b.creds, nil
}

func checkCapture(c *voice.Capture) error {
	if c == nil || len(c.Data) == 0 {
		return voice.NewError(voice.TranscriptionFailed, "No audio to transcribe", nil)
	}
	return nil
}

// serviceError wraps a backend or transport failure.
func serviceError(provider string, status int, body []byte, cause error) *voice.VoiceError {
	msg := fmt.Sprintf("%s transcription failed", provider)
	if status != 0 {
		msg = fmt.Sprintf("%s returned HTTP %d", provider, status)
	}
	if cause == nil {
		cause = fmt.Errorf("%s API error %d: %s", provider, status, truncate(string(body), 512))
	}
	e := voice.NewError(voice.TranscriptionServiceError, msg, cause).WithDetail("provider", provider)
	if status != 0 {
		e.WithDetail("status", status)
	}
	if len(body) > 0 {
		e.WithDetail("body", truncate(string(body), 512))
	}
	return e
}

// finish trims text and rejects blank results.
func finish(provider string, out voice.Outcome, m *NetworkMetrics) (voice.Outcome, error) {
	out.Text = strings.TrimSpace(out.Text)
	if out.Metadata == nil {
		out.Metadata = make(map[string]string)
	}
	out.Metadata["provider"] = provider
	if m != nil {
		m.metadata(out.Metadata)
	}
	if out.Text == "" {
		return voice.Outcome{}, voice.NewError(voice.TranscriptionFailed, "", nil).WithDetail("provider", provider)
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		out.Confidence = defaultConfidence
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Warmer is implemented by backends that can open a connection ahead of the
// first request.
type Warmer interface {
	Warm()
}
