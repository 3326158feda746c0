package transcriber

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTracedClientDo(t *testing.T) {
	srv := slowServer(t)
	c := NewTracedClient()

	// Concurrent requests exercise the trace callbacks under -race.
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest("POST", srv.URL, nil)
			resp, err := c.Do(req)
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			if string(resp.Body) != `{"ok":true}` {
				t.Errorf("body = %q", resp.Body)
			}
			m := resp.Metrics
			if m.Total < 5*time.Millisecond || m.TTFB <= 0 {
				t.Errorf("metrics = %+v", m)
			}
		}()
	}
	wg.Wait()
}

func TestTracedDoerFillsMetricsAfterBody(t *testing.T) {
	srv := slowServer(t)
	d := NewTracedClient().Doer()

	m := &NetworkMetrics{}
	req, _ := http.NewRequestWithContext(withMetrics(context.Background(), m), "GET", srv.URL, nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if m.Total != 0 {
		t.Errorf("metrics filled before the body was read: %+v", m)
	}
	io.ReadAll(resp.Body)
	resp.Body.Close()
	if m.Total < 5*time.Millisecond || m.Download < 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestTracedDoerWithoutMetrics(t *testing.T) {
	srv := slowServer(t)
	req, _ := http.NewRequest("GET", srv.URL, nil)
	resp, err := NewTracedClient().Doer().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if _, ok := resp.Body.(*timedBody); ok {
		t.Error("body wrapped without a metrics target")
	}
}

func TestMetadataPrefersMeasuredTotal(t *testing.T) {
	m := &NetworkMetrics{TTFB: 50 * time.Millisecond, Total: 320 * time.Millisecond}
	md := map[string]string{}
	m.metadata(md)
	if md["total_ms"] != "320" {
		t.Errorf("total_ms = %q, want 320", md["total_ms"])
	}
}
