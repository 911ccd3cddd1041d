package capture

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/staticgen/internal/bundle"
	"github.com/JakeFAU/staticgen/internal/contenttype"
)

func TestSinkConcatenatesChunksInOrder(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	f := NewFactory(set, "server.js")
	sink := f.NewSink("/about/index.html")

	buf := []byte("<h1>")
	_, err := sink.Write(buf)
	require.NoError(t, err)
	// Callers may reuse buffers between writes.
	copy(buf, "Hi</")
	_, err = sink.Write(buf)
	require.NoError(t, err)
	_, err = io.WriteString(sink, "h1>")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	got, ok := set.Get("about/index.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>Hi</h1>", string(got.Bytes))
	assert.Equal(t, "html", got.Kind)
	assert.Equal(t, "server.js", got.Origin)
	assert.False(t, got.Emitted)
	assert.False(t, got.Entry)
	assert.Empty(t, got.ContentType)
}

func TestSinkNaming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pathname string
		name     string
		kind     string
	}{
		{pathname: "/style.css", name: "style.css", kind: "css"},
		{pathname: "//double.js", name: "/double.js", kind: "js"},
		{pathname: "/LICENSE", name: "LICENSE", kind: ""},
		{pathname: "/v1.2/data", name: "v1.2/data", kind: ""},
		{pathname: "plain.TXT", name: "plain.TXT", kind: "txt"},
	}
	for _, tt := range tests {
		t.Run(tt.pathname, func(t *testing.T) {
			t.Parallel()
			set := bundle.NewSet()
			sink := NewFactory(set, "entry").NewSink(tt.pathname)
			require.NoError(t, sink.Close())

			got, ok := set.Get(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestSinkEmptyCaptureIsInserted(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	sink := NewFactory(set, "entry").NewSink("/empty.txt")
	require.NoError(t, sink.Close())

	got, ok := set.Get("empty.txt")
	require.True(t, ok)
	assert.Empty(t, got.Bytes)
}

func TestSinkWriteAfterCloseAndDoubleClose(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	sink := NewFactory(set, "entry").NewSink("/a.js")
	_, err := sink.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	_, err = sink.Write([]byte("y"))
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, sink.Close())

	got, _ := set.Get("a.js")
	assert.Equal(t, "x", string(got.Bytes))
}

func TestSinkAbortDiscards(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	sink := NewFactory(set, "entry").NewSink("/partial.html")
	_, err := sink.Write([]byte("<html>"))
	require.NoError(t, err)

	sink.Abort(errors.New("connection reset"))
	require.NoError(t, sink.Close())
	_, err = sink.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, set.Has("partial.html"))
}

func TestSinkOverwritesExistingArtifact(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet(bundle.Artifact{Name: "index.html", Bytes: []byte("old")})
	sink := NewFactory(set, "entry").NewSink("/index.html")
	_, err := sink.Write([]byte("new"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	got, _ := set.Get("index.html")
	assert.Equal(t, "new", string(got.Bytes))
	assert.Equal(t, 1, set.Len())
}

func TestCaptureTimeContentType(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	f := NewFactory(set, "entry", WithContentTypes(contenttype.New(contenttype.DefaultWebTypes)))
	for _, p := range []string{"/index.html", "/data.bin"} {
		sink := f.NewSink(p)
		require.NoError(t, sink.Close())
	}

	html, _ := set.Get("index.html")
	assert.Equal(t, "text/html", html.ContentType)
	bin, _ := set.Get("data.bin")
	assert.Empty(t, bin.ContentType)
}

func TestCreateWritableStreamHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFactory(bundle.NewSet(), "entry").CreateWritableStream(ctx, "/a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateWritableStreamReturnsSink(t *testing.T) {
	t.Parallel()

	set := bundle.NewSet()
	w, err := NewFactory(set, "entry").CreateWritableStream(context.Background(), "/x.css")
	require.NoError(t, err)
	require.IsType(t, &Sink{}, w)
	require.NoError(t, w.Close())
	assert.True(t, set.Has("x.css"))
}
