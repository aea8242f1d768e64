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

// HTTPMediaDecoder is a thin REST transport adapter over the external
// MediaDecoder (spec.md §1, §6: "opaque MediaDecoder that extracts frames,
// audio, and metadata"). Like HTTPModelService, it carries no codec logic
// itself — every call is a request to a configured decoding service.
type HTTPMediaDecoder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMediaDecoder(baseURL string) *HTTPMediaDecoder {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &HTTPMediaDecoder{baseURL: baseURL, client: rc.StandardClient()}
}

type validateRequest struct {
	Path string `json:"path"`
}

func (d *HTTPMediaDecoder) Validate(ctx context.Context, path string) error {
	return d.postJSON(ctx, "/validate", validateRequest{Path: path}, nil)
}

func (d *HTTPMediaDecoder) ExtractMetadata(ctx context.Context, path string) (video.Metadata, error) {
	var out video.Metadata
	err := d.postJSON(ctx, "/metadata", validateRequest{Path: path}, &out)
	return out, err
}

type extractFramesRequest struct {
	Path      string                 `json:"path"`
	Mode      video.FrameSamplingMode `json:"mode"`
	Rate      float64                `json:"rate"`
	MaxFrames int                    `json:"maxFrames"`
}

type extractFramesResponse struct {
	Frames []FrameBytes `json:"frames"`
}

func (d *HTTPMediaDecoder) ExtractFrames(ctx context.Context, path string, mode video.FrameSamplingMode, rate float64, maxFrames int) ([]FrameBytes, error) {
	var out extractFramesResponse
	err := d.postJSON(ctx, "/frames", extractFramesRequest{Path: path, Mode: mode, Rate: rate, MaxFrames: maxFrames}, &out)
	return out.Frames, err
}

type extractAudioResponse struct {
	AudioPath string `json:"audioPath"`
}

func (d *HTTPMediaDecoder) ExtractAudio(ctx context.Context, path string) (string, error) {
	var out extractAudioResponse
	err := d.postJSON(ctx, "/audio", validateRequest{Path: path}, &out)
	return out.AudioPath, err
}

func (d *HTTPMediaDecoder) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal media decoder request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build media decoder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("media decoder request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("media decoder %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
