package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPModelServiceVisionPostsAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vision", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"image":"aGVsbG8=","prompt":"describe","maxTokens":256}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"description":"a cat on a table","features":{"confidence":0.9}}`))
	}))
	defer srv.Close()

	svc := NewHTTPModelService(srv.URL)
	resp, err := svc.Vision(context.Background(), []byte("hello"), "describe", 256)
	require.NoError(t, err)
	require.Equal(t, "a cat on a table", resp.Description)
	require.Equal(t, 0.9, resp.Features["confidence"])
}

func TestHTTPModelServiceEmbeddingReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embedding", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vector":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	svc := NewHTTPModelService(srv.URL)
	vec, err := svc.Embedding(context.Background(), "a video about cats", EmbeddingDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHTTPModelServiceReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewHTTPModelService(srv.URL)
	_, err := svc.Synthesis(context.Background(), []string{"a", "b"}, "summary")
	require.Error(t, err)
}
