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

// HTTPModelService is a thin REST transport adapter over the external
// ModelService (spec.md §1, §6: "vision/transcription/classification/
// embedding endpoints"). It implements no model logic of its own — every
// method is a JSON POST to a configured base URL path, mirroring the
// teacher's thin HTTP client adapters (clients/callback_client.go,
// clients/mist_client.go) rather than reimplementing the remote behaviour.
type HTTPModelService struct {
	baseURL string
	client  *http.Client
}

// NewHTTPModelService builds an adapter with the teacher's retry/timeout
// posture: bounded retries with exponential backoff, a hard request
// deadline left to the caller's context.
func NewHTTPModelService(baseURL string) *HTTPModelService {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &HTTPModelService{baseURL: baseURL, client: rc.StandardClient()}
}

type visionRequest struct {
	Image     []byte `json:"image"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens"`
}

func (s *HTTPModelService) Vision(ctx context.Context, image []byte, prompt string, maxTokens int) (VisionResponse, error) {
	var out VisionResponse
	err := s.postJSON(ctx, "/vision", visionRequest{Image: image, Prompt: prompt, MaxTokens: maxTokens}, &out)
	return out, err
}

type transcriptionRequest struct {
	AudioPath       string   `json:"audioPath"`
	Diarize         bool     `json:"diarize"`
	TargetLanguages []string `json:"targetLanguages,omitempty"`
}

func (s *HTTPModelService) Transcription(ctx context.Context, audioPath string, opts TranscriptionOptions) (video.AudioAnalysis, error) {
	var out video.AudioAnalysis
	err := s.postJSON(ctx, "/transcription", transcriptionRequest{
		AudioPath:       audioPath,
		Diarize:         opts.Diarize,
		TargetLanguages: opts.TargetLanguages,
	}, &out)
	return out, err
}

type classificationRequest struct {
	Descriptions []string `json:"descriptions"`
}

func (s *HTTPModelService) Classification(ctx context.Context, descriptions []string) (video.ContentClassification, error) {
	var out video.ContentClassification
	err := s.postJSON(ctx, "/classification", classificationRequest{Descriptions: descriptions}, &out)
	return out, err
}

type synthesisRequest struct {
	Sources []string `json:"sources"`
	Kind    string   `json:"kind"`
}

type synthesisResponse struct {
	Summary string `json:"summary"`
}

func (s *HTTPModelService) Synthesis(ctx context.Context, sources []string, kind string) (string, error) {
	var out synthesisResponse
	err := s.postJSON(ctx, "/synthesis", synthesisRequest{Sources: sources, Kind: kind}, &out)
	return out.Summary, err
}

type embeddingRequest struct {
	Text string        `json:"text"`
	Kind EmbeddingKind `json:"kind"`
}

type embeddingResponse struct {
	Vector []float32 `json:"vector"`
}

func (s *HTTPModelService) Embedding(ctx context.Context, text string, kind EmbeddingKind) ([]float32, error) {
	var out embeddingResponse
	err := s.postJSON(ctx, "/embedding", embeddingRequest{Text: text, Kind: kind}, &out)
	return out.Vector, err
}

func (s *HTTPModelService) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal model service request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build model service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("model service request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("model service %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
