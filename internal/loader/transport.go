package loader

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// HandlerTransport serves requests in-process through h. The response is
// returned as soon as the handler commits its headers and the body streams
// through a pipe while the handler keeps writing.
func HandlerTransport(h http.Handler) http.RoundTripper {
	return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if h == nil {
			return nil, fmt.Errorf("loader: nil handler")
		}
		inbound := req.Clone(req.Context())
		if inbound.Body == nil {
			inbound.Body = http.NoBody
		}
		inbound.RequestURI = inbound.URL.RequestURI()
		if inbound.Host == "" {
			inbound.Host = inbound.URL.Host
		}

		pr, pw := io.Pipe()
		w := newPipeResponseWriter(pw)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					w.commit(http.StatusInternalServerError)
					_ = pw.CloseWithError(fmt.Errorf("handler panic: %v", r))
					return
				}
				w.commit(http.StatusOK)
				_ = pw.Close()
			}()
			h.ServeHTTP(w, inbound)
		}()

		select {
		case <-w.ready:
		case <-req.Context().Done():
			_ = pr.CloseWithError(req.Context().Err())
			return nil, req.Context().Err()
		}

		resp := &http.Response{
			Status:        fmt.Sprintf("%d %s", w.status, http.StatusText(w.status)),
			StatusCode:    w.status,
			Proto:         "HTTP/1.1",
			ProtoMajor:    1,
			ProtoMinor:    1,
			Header:        w.committed,
			Body:          pr,
			ContentLength: -1,
			Request:       req,
		}
		if cl := w.committed.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				resp.ContentLength = n
			}
		}
		return resp, nil
	})
}

// pipeResponseWriter is the server side of HandlerTransport.
type pipeResponseWriter struct {
	header    http.Header
	committed http.Header
	status    int
	pw        *io.PipeWriter
	once      sync.Once
	ready     chan struct{}
}

func newPipeResponseWriter(pw *io.PipeWriter) *pipeResponseWriter {
	return &pipeResponseWriter{
		header: make(http.Header),
		pw:     pw,
		ready:  make(chan struct{}),
	}
}

func (w *pipeResponseWriter) Header() http.Header {
	return w.header
}

func (w *pipeResponseWriter) WriteHeader(status int) {
	w.commit(status)
}

func (w *pipeResponseWriter) Write(p []byte) (int, error) {
	if w.header.Get("Content-Type") == "" && len(p) > 0 {
		w.header.Set("Content-Type", http.DetectContentType(p))
	}
	w.commit(http.StatusOK)
	return w.pw.Write(p)
}

// Flush satisfies http.Flusher; pipe writes are already unbuffered.
func (w *pipeResponseWriter) Flush() {
	w.commit(http.StatusOK)
}

func (w *pipeResponseWriter) commit(status int) {
	w.once.Do(func() {
		w.status = status
		w.committed = w.header.Clone()
		close(w.ready)
	})
}
