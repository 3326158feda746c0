package transcriber

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

type TracedClient struct {
	client *http.Client
}

func NewTracedClient() *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// traceState collects one request's timings. httptrace callbacks run on the
// transport's read and write goroutines, so every field is guarded by mu.
type traceState struct {
	mu sync.Mutex
	m  NetworkMetrics

	start                                      time.Time
	getConnStart, dnsStart, tcpStart, tlsStart time.Time
	gotConn, wroteHeaders, wroteRequest        time.Time
	firstByte                                  time.Time
}

func (s *traceState) update(fn func(now time.Time)) {
	now := time.Now()
	s.mu.Lock()
	fn(now)
	s.mu.Unlock()
}

// done closes the measurement once the body has been read and returns the
// collected metrics.
func (s *traceState) done() NetworkMetrics {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.firstByte.IsZero() && s.m.Download == 0 {
		s.m.Download = now.Sub(s.firstByte)
	}
	if s.m.Total == 0 {
		s.m.Total = now.Sub(s.start)
	}
	return s.m
}

func (c *TracedClient) instrument(req *http.Request) (*http.Request, *traceState) {
	s := &traceState{start: time.Now()}
	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { s.update(func(now time.Time) { s.getConnStart = now }) },
		GotConn: func(info httptrace.GotConnInfo) {
			s.update(func(now time.Time) {
				s.gotConn = now
				s.m.ConnWait = now.Sub(s.getConnStart)
				s.m.ConnReused = info.Reused
			})
		},
		DNSStart: func(_ httptrace.DNSStartInfo) { s.update(func(now time.Time) { s.dnsStart = now }) },
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			s.update(func(now time.Time) { s.m.DNS = now.Sub(s.dnsStart) })
		},
		ConnectStart: func(_, _ string) { s.update(func(now time.Time) { s.tcpStart = now }) },
		ConnectDone: func(_, _ string, _ error) {
			s.update(func(now time.Time) { s.m.TCP = now.Sub(s.tcpStart) })
		},
		TLSHandshakeStart: func() { s.update(func(now time.Time) { s.tlsStart = now }) },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			s.update(func(now time.Time) {
				s.m.TLS = now.Sub(s.tlsStart)
				s.m.TLSProtocol = cs.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			s.update(func(now time.Time) {
				s.wroteHeaders = now
				s.m.ReqHeaders = now.Sub(s.gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			s.update(func(now time.Time) {
				s.wroteRequest = now
				s.m.ReqBody = now.Sub(s.wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			s.update(func(now time.Time) {
				s.firstByte = now
				if !s.wroteRequest.IsZero() {
					s.m.TTFB = now.Sub(s.wroteRequest)
				}
			})
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace)), s
}

// Do sends req and reads the whole body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	req, s := c.instrument(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	metrics := s.done()

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    &metrics,
	}, nil
}

type metricsKey struct{}

// withMetrics asks the Doer to record timings for requests made under ctx.
func withMetrics(ctx context.Context, m *NetworkMetrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, m)
}

// Doer adapts the client for SDKs that take an http.Client-like value. Timings
// land in the *NetworkMetrics attached with withMetrics, if any, once the
// caller has read or closed the response body.
func (c *TracedClient) Doer() *tracedDoer { return &tracedDoer{c: c} }

type tracedDoer struct {
	c *TracedClient
}

func (d *tracedDoer) Do(req *http.Request) (*http.Response, error) {
	m, _ := req.Context().Value(metricsKey{}).(*NetworkMetrics)
	if m == nil {
		return d.c.client.Do(req)
	}
	req, s := d.c.instrument(req)
	resp, err := d.c.client.Do(req)
	if err != nil {
		*m = s.done()
		return resp, err
	}
	resp.Body = &timedBody{ReadCloser: resp.Body, finish: func() { *m = s.done() }}
	return resp, nil
}

// timedBody calls finish once, at EOF or Close, whichever comes first.
type timedBody struct {
	io.ReadCloser
	finish func()
	once   sync.Once
}

func (b *timedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.once.Do(b.finish)
	}
	return n, err
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.finish)
	return err
}

// Warm opens a connection to url ahead of the first real request and returns
// the TLS handshake time.
func (c *TracedClient) Warm(url string) time.Duration {
	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return 0
	}
	req, s := c.instrument(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return s.done().TLS
}
