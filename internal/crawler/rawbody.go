package crawler

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
)

// rawBodies records response bodies as the transport produced them. The
// collector re-encodes bodies that declare a non-UTF-8 charset before
// OnResponse runs; captures must keep the served bytes.
type rawBodies struct {
	next http.RoundTripper

	mu     sync.Mutex
	bodies map[string]*rawBody
}

type rawBody struct {
	buf bytes.Buffer
	// encoded bodies are decompressed by the collector, so the raw bytes
	// are not the page.
	encoded bool
}

func newRawBodies(next http.RoundTripper) *rawBodies {
	return &rawBodies{next: next, bodies: make(map[string]*rawBody)}
}

// RoundTrip implements http.RoundTripper.
func (t *rawBodies) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp == nil || resp.Body == nil {
		return resp, err
	}
	rb := &rawBody{encoded: isContentEncoded(resp.Header)}
	t.mu.Lock()
	t.bodies[req.URL.String()] = rb
	t.mu.Unlock()
	resp.Body = &teeBody{Reader: io.TeeReader(resp.Body, &rb.buf), Closer: resp.Body}
	return resp, nil
}

// take returns the raw body recorded for target, or fallback when none was
// recorded or the raw bytes were content-encoded.
func (t *rawBodies) take(target string, fallback []byte) []byte {
	t.mu.Lock()
	rb, ok := t.bodies[target]
	delete(t.bodies, target)
	t.mu.Unlock()
	if !ok || rb.encoded {
		return fallback
	}
	return rb.buf.Bytes()
}

// discard drops the body recorded for target.
func (t *rawBodies) discard(target string) {
	t.mu.Lock()
	delete(t.bodies, target)
	t.mu.Unlock()
}

func isContentEncoded(h http.Header) bool {
	ce := strings.TrimSpace(strings.ToLower(h.Get("Content-Encoding")))
	return ce != "" && ce != "identity"
}

type teeBody struct {
	io.Reader
	io.Closer
}
