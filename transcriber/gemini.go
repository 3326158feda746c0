package transcriber

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"voicebutton/voice"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini sends the capture inline to generateContent alongside the
// instruction prompt.
type Gemini struct {
	baseTranscriber
	client *TracedClient
}

func NewGemini() *Gemini {
	return &Gemini{
		baseTranscriber: baseTranscriber{
			name:            "gemini",
			defaultModel:    "gemini-2.0-flash",
			defaultEndpoint: geminiAPIURL,
		},
		client: NewTracedClient(),
	}
}

func (g *Gemini) Configure(creds Credentials) error { return g.configure(creds) }

func (g *Gemini) Warm() {
	if c, err := g.credentials(); err == nil {
		g.client.Warm(c.Endpoint)
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string   `json:"finishReason"`
		AvgLogprobs  *float64 `json:"avgLogprobs"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

func (g *Gemini) buildRequest(c Credentials, capture *voice.Capture) ([]byte, error) {
	instruction := c.Instruction
	if c.Language != "" {
		instruction += " The speech is in " + c.Language + "."
	}

	var body geminiRequest
	body.Contents = make([]struct {
		Parts []geminiPart `json:"parts"`
	}, 1)
	body.Contents[0].Parts = []geminiPart{
		{Text: instruction},
		{InlineData: &geminiInlineData{
			MimeType: capture.Format.MimeType(),
			Data:     base64.StdEncoding.EncodeToString(capture.Data),
		}},
	}
	return json.Marshal(body)
}

func (g *Gemini) Transcribe(ctx context.Context, capture *voice.Capture) (voice.Outcome, error) {
	c, err := g.credentials()
	if err != nil {
		return voice.Outcome{}, err
	}
	if err := checkCapture(capture); err != nil {
		return voice.Outcome{}, err
	}

	payload, err := g.buildRequest(c, capture)
	if err != nil {
		return voice.Outcome{}, serviceError(g.name, 0, nil, fmt.Errorf("encoding request: %w", err))
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", c.Endpoint, c.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(payload))
	if err != nil {
		return voice.Outcome{}, serviceError(g.name, 0, nil, err)
	}
	req.Header.Set("x-goog-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return voice.Outcome{}, serviceError(g.name, 0, nil, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return voice.Outcome{}, serviceError(g.name, resp.StatusCode, resp.Body, nil)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return voice.Outcome{}, serviceError(g.name, resp.StatusCode, resp.Body,
			fmt.Errorf("gemini response parse error: %w", err))
	}

	out := voice.Outcome{LanguageCode: c.Language, Metadata: map[string]string{}}
	if len(gResp.Candidates) > 0 {
		cand := gResp.Candidates[0]
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		out.Text = sb.String()
		if cand.AvgLogprobs != nil {
			out.Confidence = math.Exp(*cand.AvgLogprobs)
		}
		if cand.FinishReason != "" {
			out.Metadata["finish_reason"] = cand.FinishReason
		}
	}
	if gResp.ModelVersion != "" {
		out.Metadata["model"] = gResp.ModelVersion
	}
	return finish(g.name, out, resp.Metrics)
}
