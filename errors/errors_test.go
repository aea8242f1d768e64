package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnretriableWrapsAndUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := Unretriable(base)
	require.True(t, IsUnretriable(err))
	require.ErrorIs(t, err, base)
}

func TestExternalTransientIsRetriable(t *testing.T) {
	err := ExternalTransient("vision timed out", errors.New("deadline exceeded"))
	require.False(t, IsUnretriable(err))
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeExternalTransient, code)
}

func TestExternalPermanentIsUnretriable(t *testing.T) {
	err := ExternalPermanent("schema violation", nil)
	require.True(t, IsUnretriable(err))
	code, _ := CodeOf(err)
	require.Equal(t, CodeExternalPermanent, code)
}

func TestObjectNotFound(t *testing.T) {
	err := NewObjectNotFoundError("job xyz", nil)
	require.True(t, IsObjectNotFound(err))
	require.True(t, IsUnretriable(err))
}
