package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ploop3/Natours/pkg/errors"
)

func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func providerError(message string) string {
	return `{"error":{"type":"invalid_request_error","message":"` + message + `"}}`
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantIs     error
		wantMsg    string
	}{
		{"card declined", http.StatusPaymentRequired, providerError("card declined"), http.StatusPaymentRequired, apperrors.ErrPaymentFailed, "checkout: card declined"},
		{"bad request", http.StatusBadRequest, providerError("missing line_items"), http.StatusPaymentRequired, apperrors.ErrPaymentFailed, "checkout: missing line_items"},
		{"rate limited", http.StatusTooManyRequests, `slow down`, http.StatusServiceUnavailable, apperrors.ErrServiceUnavail, "checkout is temporarily unavailable"},
		{"unauthorized", http.StatusUnauthorized, providerError("invalid api key"), http.StatusInternalServerError, nil, "checkout returned status 401: invalid api key"},
		{"server error unstructured", http.StatusBadGateway, `<html>bad gateway</html>`, http.StatusInternalServerError, nil, "checkout returned status 502: <html>bad gateway</html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, tt.body), "checkout")
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, apperrors.HTTPStatus(err))
			if tt.wantIs != nil {
				assert.True(t, errors.Is(err, tt.wantIs))
			}
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseResponseError_NullErrorField(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusBadRequest, `{"error":null}`), "checkout")
	assert.Contains(t, err.Error(), `{"error":null}`)
}
