package transcriber

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicebutton/voice"
)

func TestDeepgram(t *testing.T) {
	var query, auth, contentType string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		w.Header().Set("x-dg-ratelimit-remaining", "99")
		io.WriteString(w, `{"metadata":{"duration":1.2},"results":{"channels":[{"alternatives":[{"transcript":"hello world","confidence":0.87}]}]}}`)
	}))
	defer srv.Close()

	d := NewDeepgram()
	if err := d.Configure(Credentials{APIKey: "dg", Endpoint: srv.URL, Language: "de"}); err != nil {
		t.Fatal(err)
	}
	capture := wavCapture()
	out, err := d.Transcribe(context.Background(), capture)
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "hello world" || out.Confidence != 0.87 || out.LanguageCode != "de" {
		t.Errorf("out = %+v", out)
	}
	if out.Metadata["rate_limit"] != "99/?" {
		t.Errorf("rate_limit = %q", out.Metadata["rate_limit"])
	}
	if auth != "Token dg" || contentType != "audio/wav" || bodyLen != len(capture.Data) {
		t.Errorf("auth=%q ct=%q len=%d", auth, contentType, bodyLen)
	}
	if query != "language=de&model=nova-3&smart_format=true" {
		t.Errorf("query = %q", query)
	}
}

func TestDeepgramErrors(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
		want   voice.Code
	}{
		{"no alternatives", 200, `{"results":{"channels":[]}}`, voice.TranscriptionFailed},
		{"bad request", 400, `{"err_msg":"corrupt audio"}`, voice.TranscriptionServiceError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()
			d := NewDeepgram()
			d.Configure(Credentials{APIKey: "dg", Endpoint: srv.URL})
			if _, err := d.Transcribe(context.Background(), wavCapture()); voice.CodeOf(err) != tt.want {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}
