package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("lookup: %w", Wrap(cause, CodeUnavailable, "registry unavailable"))

	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeInternal))
	assert.False(t, HasCode(cause, CodeUnavailable))
	assert.ErrorIs(t, err, cause)

	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "registry unavailable", de.Message)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "bad_request: body required", New(CodeBadRequest, "body required").Error())
	assert.Equal(t, "timeout: slow: boom", Wrap(errors.New("boom"), CodeTimeout, "slow").Error())
}

func TestToHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeBadRequest:   http.StatusBadRequest,
		CodeValidation:   http.StatusBadRequest,
		CodeInvalidInput: http.StatusBadRequest,
		CodeNotFound:     http.StatusNotFound,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeTimeout:      http.StatusGatewayTimeout,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeRegistry:     http.StatusBadGateway,
		CodeCancelled:    StatusClientClosedRequest,
		CodeInternal:     http.StatusInternalServerError,
		Code("unknown"):  http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, ToHTTPStatus(code), "code %s", code)
	}
}
