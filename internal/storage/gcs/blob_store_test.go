package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = New(&storage.Client{}, Config{})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "site", Prefix: "/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "v1/index.html", store.ObjectName("index.html"))

	bare, err := New(&storage.Client{}, Config{Bucket: "site"})
	require.NoError(t, err)
	assert.Equal(t, "a/b.css", bare.ObjectName("a/b.css"))
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "site"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}

// newTestStore returns a BlobStore whose client talks to handler.
func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "site", Prefix: "v1"})
	require.NoError(t, err)
	return store
}

func TestPutEncodedObjectSetsContentEncoding(t *testing.T) {
	t.Parallel()

	uploads := make(chan string, 1)
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/site/o")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case uploads <- string(body):
		default:
		}
		fmt.Fprintln(w, `{"name": "v1/index.html.gz", "bucket": "site"}`)
	}))

	uri, err := store.PutEncodedObject(context.Background(), "index.html.gz", "text/html", "gzip", strings.NewReader("compressed"))
	require.NoError(t, err)
	assert.Equal(t, "gs://site/v1/index.html.gz", uri)
	metadata := <-uploads
	assert.Contains(t, metadata, `"contentEncoding":"gzip"`)
	assert.Contains(t, metadata, `"contentType":"text/html"`)
}

func TestPutObjectLeavesContentEncodingUnset(t *testing.T) {
	t.Parallel()

	uploads := make(chan string, 1)
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case uploads <- string(body):
		default:
		}
		fmt.Fprintln(w, `{"name": "v1/index.html", "bucket": "site"}`)
	}))

	_, err := store.PutObject(context.Background(), "index.html", "text/html", strings.NewReader("<p/>"))
	require.NoError(t, err)
	metadata := <-uploads
	assert.NotContains(t, metadata, "contentEncoding")
}
