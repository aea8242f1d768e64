package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/video"
)

func TestHTTPMediaDecoderExtractMetadataDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metadata", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"durationSeconds":0,"width":1920,"height":1080,"fps":30}`))
	}))
	defer srv.Close()

	dec := NewHTTPMediaDecoder(srv.URL)
	meta, err := dec.ExtractMetadata(context.Background(), "/tmp/videos/a.mp4")
	require.NoError(t, err)
	require.Equal(t, 1920, meta.Width)
	require.Equal(t, 1080, meta.Height)
}

func TestHTTPMediaDecoderValidatePropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	dec := NewHTTPMediaDecoder(srv.URL)
	err := dec.Validate(context.Background(), "/tmp/videos/a.mp4")
	require.Error(t, err)
}

func TestHTTPMediaDecoderExtractFramesReturnsDecodedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/frames", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"frames":[{"number":1,"pts":0.5,"data":"aGVsbG8="}]}`))
	}))
	defer srv.Close()

	dec := NewHTTPMediaDecoder(srv.URL)
	frames, err := dec.ExtractFrames(context.Background(), "/tmp/videos/a.mp4", video.SamplingUniform, 1.0, 10)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, int64(1), frames[0].Number)
	require.Equal(t, []byte("hello"), frames[0].Data)
}
