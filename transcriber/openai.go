package transcriber

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strconv"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"voicebutton/voice"
)

const (
	openaiAPIURL = "https://api.openai.com/v1"
	groqAPIURL   = "https://api.groq.com/openai/v1"
)

// OpenAI talks to any OpenAI-compatible /audio/transcriptions endpoint. Groq
// is the same client pointed at a different base URL.
type OpenAI struct {
	baseTranscriber
	traced *TracedClient

	clientMu sync.Mutex
	client   *openai.Client
}

func NewOpenAI() *OpenAI {
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			name:            "openai",
			defaultModel:    openai.Whisper1,
			defaultEndpoint: openaiAPIURL,
		},
		traced: NewTracedClient(),
	}
}

func NewGroq() *OpenAI {
	return &OpenAI{
		baseTranscriber: baseTranscriber{
			name:            "groq",
			defaultModel:    "whisper-large-v3-turbo",
			defaultEndpoint: groqAPIURL,
		},
		traced: NewTracedClient(),
	}
}

func (o *OpenAI) Configure(creds Credentials) error {
	if err := o.configure(creds); err != nil {
		return err
	}
	c, _ := o.credentials()

	cfg := openai.DefaultConfig(c.APIKey)
	cfg.BaseURL = c.Endpoint
	cfg.HTTPClient = o.traced.Doer()

	o.clientMu.Lock()
	o.client = openai.NewClientWithConfig(cfg)
	o.clientMu.Unlock()
	return nil
}

func (o *OpenAI) Warm() {
	if c, err := o.credentials(); err == nil {
		o.traced.Warm(c.Endpoint)
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, capture *voice.Capture) (voice.Outcome, error) {
	c, err := o.credentials()
	if err != nil {
		return voice.Outcome{}, err
	}
	if err := checkCapture(capture); err != nil {
		return voice.Outcome{}, err
	}
	o.clientMu.Lock()
	client := o.client
	o.clientMu.Unlock()

	metrics := &NetworkMetrics{}
	resp, err := client.CreateTranscription(withMetrics(ctx, metrics), openai.AudioRequest{
		Model:    c.Model,
		FilePath: "audio." + capture.Format.Ext(),
		Reader:   bytes.NewReader(capture.Data),
		Prompt:   c.Instruction,
		Language: c.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return voice.Outcome{}, o.apiError(err)
	}

	out := voice.Outcome{
		Text:         resp.Text,
		LanguageCode: resp.Language,
		Metadata:     map[string]string{"model": c.Model},
	}
	if resp.Duration > 0 {
		out.Metadata["api_duration_s"] = strconv.FormatFloat(resp.Duration, 'f', 2, 64)
	}
	if len(resp.Segments) > 0 {
		var logProbSum, noSpeech float64
		for _, seg := range resp.Segments {
			logProbSum += seg.AvgLogprob
			noSpeech = max(noSpeech, seg.NoSpeechProb)
		}
		out.Confidence = math.Exp(logProbSum / float64(len(resp.Segments)))
		out.Metadata["no_speech_prob"] = strconv.FormatFloat(noSpeech, 'f', 3, 64)
	}
	return finish(o.name, out, metrics)
}

func (o *OpenAI) apiError(err error) *voice.VoiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return serviceError(o.name, apiErr.HTTPStatusCode, []byte(apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return serviceError(o.name, reqErr.HTTPStatusCode, nil, err)
	}
	return serviceError(o.name, 0, nil, err)
}
