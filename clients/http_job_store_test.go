package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/video"
)

func TestHTTPJobStoreSaveResultPutsExpectedPath(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewHTTPJobStore(srv.URL)
	err := store.SaveResult(context.Background(), video.ProcessingResult{JobID: "job-1", Summary: "done"})
	require.NoError(t, err)
	require.Equal(t, "/jobs/job-1/result", gotPath)
	require.Equal(t, http.MethodPut, gotMethod)
}

func TestHTTPJobStoreSaveFramesReturnsErrorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewHTTPJobStore(srv.URL)
	store.client = srv.Client() // skip retryablehttp's backoff so the test doesn't pay for 3 retries
	err := store.SaveFrames(context.Background(), "job-1", []video.Frame{{JobID: "job-1", Number: 1}})
	require.Error(t, err)
}
