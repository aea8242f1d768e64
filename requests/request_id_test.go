package requests

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetRequestIDReusesSuppliedHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/jobs/123", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")

	require.Equal(t, "caller-supplied-id", GetRequestID(req))
}

func TestGetRequestIDGeneratesAndStampsWhenMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/jobs/123", nil)

	id := GetRequestID(req)
	require.NotEmpty(t, id)
	require.Equal(t, id, req.Header.Get(requestIDHeader))
}

func TestGetRequestIDGeneratesDistinctIDsAcrossRequests(t *testing.T) {
	req1 := httptest.NewRequest("GET", "/jobs/1", nil)
	req2 := httptest.NewRequest("GET", "/jobs/2", nil)

	require.NotEqual(t, GetRequestID(req1), GetRequestID(req2))
}
