package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"voicebutton/voice"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

// Deepgram posts the raw capture to the prerecorded listen endpoint. It takes
// no prompt; Instruction is ignored.
type Deepgram struct {
	baseTranscriber
	client *TracedClient
}

func NewDeepgram() *Deepgram {
	return &Deepgram{
		baseTranscriber: baseTranscriber{
			name:            "deepgram",
			defaultModel:    "nova-3",
			defaultEndpoint: deepgramAPIURL,
		},
		client: NewTracedClient(),
	}
}

func (d *Deepgram) Configure(creds Credentials) error { return d.configure(creds) }

func (d *Deepgram) Warm() {
	if c, err := d.credentials(); err == nil {
		d.client.Warm(c.Endpoint)
	}
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, capture *voice.Capture) (voice.Outcome, error) {
	c, err := d.credentials()
	if err != nil {
		return voice.Outcome{}, err
	}
	if err := checkCapture(capture); err != nil {
		return voice.Outcome{}, err
	}

	q := url.Values{}
	q.Set("model", c.Model)
	q.Set("smart_format", "true")
	if c.Language != "" {
		q.Set("language", c.Language)
	} else {
		q.Set("language", "en")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint+"?"+q.Encode(), bytes.NewReader(capture.Data))
	if err != nil {
		return voice.Outcome{}, serviceError(d.name, 0, nil, err)
	}
	req.Header.Set("Authorization", "Token "+c.APIKey)
	req.Header.Set("Content-Type", capture.Format.MimeType())

	resp, err := d.client.Do(req)
	if err != nil {
		return voice.Outcome{}, serviceError(d.name, 0, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return voice.Outcome{}, serviceError(d.name, resp.StatusCode, resp.Body, nil)
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return voice.Outcome{}, serviceError(d.name, resp.StatusCode, resp.Body,
			fmt.Errorf("deepgram response parse error: %w", err))
	}

	out := voice.Outcome{LanguageCode: q.Get("language"), Metadata: map[string]string{"model": c.Model}}
	if len(dgResp.Results.Channels) > 0 {
		ch := dgResp.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			out.LanguageCode = ch.DetectedLanguage
		}
		if len(ch.Alternatives) > 0 {
			out.Text = ch.Alternatives[0].Transcript
			out.Confidence = ch.Alternatives[0].Confidence
		}
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")
	out.Metadata["rate_limit"] = remaining + "/" + limit
	return finish(d.name, out, resp.Metrics)
}
