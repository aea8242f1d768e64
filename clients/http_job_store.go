package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/catalystvision/core/video"
)

// HTTPJobStore is a thin REST transport adapter over the external JobStore
// (spec.md §1, §6: "persistent relational storage ... opaque CRUD over
// jobs, frames, scenes, artifacts"). As with HTTPModelService, this carries
// no persistence logic of its own.
type HTTPJobStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPJobStore(baseURL string) *HTTPJobStore {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &HTTPJobStore{baseURL: baseURL, client: rc.StandardClient()}
}

func (s *HTTPJobStore) SaveResult(ctx context.Context, result video.ProcessingResult) error {
	return s.putJSON(ctx, "/jobs/"+result.JobID+"/result", result)
}

func (s *HTTPJobStore) SaveFrames(ctx context.Context, jobID string, frames []video.Frame) error {
	return s.putJSON(ctx, "/jobs/"+jobID+"/frames", frames)
}

func (s *HTTPJobStore) SaveScenes(ctx context.Context, jobID string, scenes []video.Scene) error {
	return s.putJSON(ctx, "/jobs/"+jobID+"/scenes", scenes)
}

func (s *HTTPJobStore) SaveAudioAnalysis(ctx context.Context, jobID string, audio video.AudioAnalysis) error {
	return s.putJSON(ctx, "/jobs/"+jobID+"/audio", audio)
}

func (s *HTTPJobStore) SaveClassification(ctx context.Context, jobID string, classification video.ContentClassification) error {
	return s.putJSON(ctx, "/jobs/"+jobID+"/classification", classification)
}

func (s *HTTPJobStore) putJSON(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal job store payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build job store request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("job store request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("job store %s returned status %d", path, resp.StatusCode)
	}
	return nil
}
