package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/video"
)

// prepare resolves job.Reference into a local file path (spec.md §4.6 step
// 1). file:// and upload origins are validated against AllowedFileRoots
// with no ".." traversal (spec.md §8 "validation rejects path traversal").
func (o *Orchestrator) prepare(ctx context.Context, job *video.Job, out *stageOutcome) error {
	switch job.Origin {
	case video.OriginUpload:
		if err := validateLocalPath(job.Reference); err != nil {
			return err
		}
		out.localPath = job.Reference
		return nil

	case video.OriginDrive:
		path, err := downloadFromS3(ctx, job.Reference)
		if err != nil {
			return errors.ExternalTransient("drive download failed", err)
		}
		out.localPath = path
		return nil

	case video.OriginURL:
		return o.prepareURL(ctx, job, out)

	case video.OriginLive:
		return errors.Validation("live-stream jobs are handled by the stream consumer, not the batch orchestrator", nil)

	default:
		return errors.Validation(fmt.Sprintf("unsupported origin %q", job.Origin), nil)
	}
}

func (o *Orchestrator) prepareURL(ctx context.Context, job *video.Job, out *stageOutcome) error {
	ref := job.Reference
	switch {
	case strings.HasPrefix(ref, "file://"):
		path := strings.TrimPrefix(ref, "file://")
		if err := validateLocalPath(path); err != nil {
			return err
		}
		out.localPath = path
		return nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		path, err := downloadHTTP(ctx, ref)
		if err != nil {
			return errors.ExternalTransient("http download failed", err)
		}
		out.localPath = path
		return nil

	default:
		return errors.Validation(fmt.Sprintf("unsupported reference scheme: %s", ref), nil)
	}
}

// validateLocalPath enforces spec.md §4.6/§8: reject any path containing
// ".." or not prefixed by an allowed root, before any work begins.
func validateLocalPath(path string) error {
	clean := filepath.Clean(path)
	if strings.Contains(path, "..") {
		return errors.Validation("path traversal rejected", nil)
	}
	for _, root := range config.AllowedFileRoots {
		if strings.HasPrefix(clean, root) || clean == strings.TrimSuffix(root, "/") {
			return nil
		}
	}
	return errors.Validation(fmt.Sprintf("path %q is not under an allowed root", path), nil)
}

func downloadHTTP(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "videoagent-src-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

// downloadFromS3 fetches an s3://bucket/key reference via the S3-compatible
// blob store (spec.md §4.6 "drive" origin).
func downloadFromS3(ctx context.Context, reference string) (string, error) {
	bucket, key, err := parseS3Reference(reference)
	if err != nil {
		return "", err
	}

	sess, err := session.NewSession(aws.NewConfig())
	if err != nil {
		return "", err
	}
	client := s3.New(sess)

	obj, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	tmp, err := os.CreateTemp("", "videoagent-drive-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, obj.Body); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

func parseS3Reference(reference string) (bucket, key string, err error) {
	const prefix = "s3://"
	if !strings.HasPrefix(reference, prefix) {
		return "", "", errors.Validation("drive reference must be an s3:// URI", nil)
	}
	rest := strings.TrimPrefix(reference, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Validation("malformed s3:// reference", nil)
	}
	return parts[0], parts[1], nil
}
