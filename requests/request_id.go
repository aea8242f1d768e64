// Package requests provides the per-request correlation ID helper used to
// scope log lines across the control-plane HTTP surface, mirroring the
// teacher's requests.GetRequestId (requests/request_id.go).
package requests

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// GetRequestID returns the caller-supplied X-Request-Id header if present,
// stamping one generated from uuid otherwise, and setting the header on req
// so downstream handlers and log.AddContext see the same value.
func GetRequestID(req *http.Request) string {
	id := req.Header.Get(requestIDHeader)
	if id != "" {
		return id
	}
	id = uuid.NewString()
	req.Header.Set(requestIDHeader, id)
	return id
}
