package transcriber

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voicebutton/voice"
)

func newGeminiServer(t *testing.T, status int, body string, seen *geminiRequestSeen) *Gemini {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			seen.path = r.URL.Path
			seen.key = r.Header.Get("x-goog-api-key")
			raw, _ := io.ReadAll(r.Body)
			json.Unmarshal(raw, &seen.body)
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	g := NewGemini()
	if err := g.Configure(Credentials{APIKey: "secret", Endpoint: srv.URL}); err != nil {
		t.Fatal(err)
	}
	return g
}

type geminiRequestSeen struct {
	path string
	key  string
	body struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData struct {
					MimeType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
			} `json:"parts"`
		} `json:"contents"`
	}
}

func TestGeminiSuccess(t *testing.T) {
	var seen geminiRequestSeen
	g := newGeminiServer(t, 200, `{"candidates":[{"content":{"parts":[{"text":" hello world \n"}]},"finishReason":"STOP"}]}`, &seen)

	capture := wavCapture()
	out, err := g.Transcribe(context.Background(), capture)
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "hello world" {
		t.Errorf("Text = %q", out.Text)
	}
	if out.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want default 0.95", out.Confidence)
	}
	if out.Metadata["provider"] != "gemini" || out.Metadata["finish_reason"] != "STOP" {
		t.Errorf("Metadata = %v", out.Metadata)
	}

	if seen.path != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", seen.path)
	}
	if seen.key != "secret" {
		t.Errorf("api key header = %q", seen.key)
	}
	parts := seen.body.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != DefaultInstruction {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData.MimeType != "audio/wav" {
		t.Errorf("mime = %q", parts[1].InlineData.MimeType)
	}
	if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString(capture.Data) {
		t.Error("audio payload not base64 of capture")
	}
}

func TestGeminiLogprobConfidence(t *testing.T) {
	g := newGeminiServer(t, 200, `{"candidates":[{"content":{"parts":[{"text":"hi"}]},"avgLogprobs":-0.1053605}]}`, nil)
	out, err := g.Transcribe(context.Background(), wavCapture())
	if err != nil {
		t.Fatal(err)
	}
	if out.Confidence < 0.899 || out.Confidence > 0.901 {
		t.Errorf("Confidence = %v, want ~0.9", out.Confidence)
	}
}

func TestGeminiFailures(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
		want   voice.Code
	}{
		{"empty candidates", 200, `{"candidates":[]}`, voice.TranscriptionFailed},
		{"blank text", 200, `{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`, voice.TranscriptionFailed},
		{"server error", 500, `{"error":{"message":"internal"}}`, voice.TranscriptionServiceError},
		{"bad key", 403, `{"error":{"message":"API key not valid"}}`, voice.TranscriptionServiceError},
		{"garbage body", 200, `not json`, voice.TranscriptionServiceError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			g := newGeminiServer(t, tt.status, tt.body, nil)
			_, err := g.Transcribe(context.Background(), wavCapture())
			var ve *voice.VoiceError
			if !errors.As(err, &ve) || ve.Code != tt.want {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
			if ve.Message == "" {
				t.Error("error message should not be empty")
			}
			if tt.want == voice.TranscriptionServiceError {
				if ve.Unwrap() == nil {
					t.Error("service error should wrap a cause")
				}
				if tt.status != 200 && ve.Detail["status"] != tt.status {
					t.Errorf("status detail = %v", ve.Detail["status"])
				}
			}
		})
	}
}

func TestGeminiTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewGemini()
	g.Configure(Credentials{APIKey: "k", Endpoint: url})
	_, err := g.Transcribe(context.Background(), wavCapture())
	if voice.CodeOf(err) != voice.TranscriptionServiceError {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "gemini") {
		t.Errorf("error should name the provider: %v", err)
	}
}

func TestGeminiEmptyCapture(t *testing.T) {
	g := newGeminiServer(t, 200, `{}`, nil)
	if _, err := g.Transcribe(context.Background(), &voice.Capture{}); voice.CodeOf(err) != voice.TranscriptionFailed {
		t.Errorf("err = %v", err)
	}
}
