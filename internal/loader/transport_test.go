package loader

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerTransportServesResponse(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/about", r.URL.Path)
		assert.Equal(t, "/about?x=1", r.RequestURI)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", "11")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "<p>hi</p>\n\n")
	})

	req, err := http.NewRequest(http.MethodGet, "http://localhost/about?x=1", nil)
	require.NoError(t, err)
	resp, err := HandlerTransport(h).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(11), resp.ContentLength)
	assert.Equal(t, "<p>hi</p>\n\n", string(body))
}

func TestHandlerTransportDefaultsStatusAndSniffsType(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<!DOCTYPE html><html></html>")
	})
	req, err := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	require.NoError(t, err)
	resp, err := HandlerTransport(h).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(-1), resp.ContentLength)
}

func TestHandlerTransportEmptyHandler(t *testing.T) {
	t.Parallel()

	req, err := http.NewRequest(http.MethodGet, "http://localhost/empty", nil)
	require.NoError(t, err)
	resp, err := HandlerTransport(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).RoundTrip(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
}

func TestHandlerTransportStreamsBeforeHandlerReturns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "first;")
		<-release
		_, _ = io.WriteString(w, "second")
	})
	req, err := http.NewRequest(http.MethodGet, "http://localhost/stream", nil)
	require.NoError(t, err)
	resp, err := HandlerTransport(h).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf := make([]byte, len("first;"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "first;", string(buf))
	close(release)
	rest, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "second", string(rest))
}

func TestHandlerTransportPanicSurfacesAsBodyError(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	req, err := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	require.NoError(t, err)
	resp, err := HandlerTransport(h).RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_, err = io.ReadAll(resp.Body)
	require.ErrorContains(t, err, "handler panic: boom")
}

func TestHandlerTransportHonorsContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost/", nil)
	require.NoError(t, err)
	_, err = HandlerTransport(h).RoundTrip(req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlerTransportPassesRequestBody(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_, _ = w.Write(data)
	})
	req, err := http.NewRequest(http.MethodPost, "http://localhost/echo", strings.NewReader("payload"))
	require.NoError(t, err)
	resp, err := HandlerTransport(h).RoundTrip(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}
