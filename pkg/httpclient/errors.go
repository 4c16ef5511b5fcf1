package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/ploop3/Natours/pkg/errors"
)

// ProviderErrorResponse is the error body of a Stripe-compatible API.
type ProviderErrorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx response from an external
// provider and translates it into an error. The body is consumed and closed.
func ParseResponseError(resp *http.Response, provider string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", provider, resp.StatusCode, err)
	}

	message := string(body)
	var parsed ProviderErrorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	return mapProviderError(resp.StatusCode, message, provider)
}

func mapProviderError(status int, message, provider string) error {
	qualified := fmt.Sprintf("%s: %s", provider, message)

	switch {
	case status == http.StatusBadRequest, status == http.StatusPaymentRequired, status == http.StatusNotFound:
		return apperrors.PaymentFailed(qualified)
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: fmt.Sprintf("%s is temporarily unavailable", provider),
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	default:
		// Credential problems and server errors are ours to fix, not the client's.
		return fmt.Errorf("%s returned status %d: %s", provider, status, message)
	}
}
