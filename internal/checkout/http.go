package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httpclient"
)

const providerName = "checkout provider"

// HTTPProvider creates sessions through a Stripe-compatible API.
type HTTPProvider struct {
	client    *httpclient.CircuitBreakerClient
	baseURL   string
	secretKey string
	currency  string
	logger    *slog.Logger
}

// NewHTTPProvider creates an HTTPProvider calling baseURL with secretKey.
func NewHTTPProvider(client *httpclient.CircuitBreakerClient, baseURL, secretKey, currency string, logger *slog.Logger) *HTTPProvider {
	if currency == "" {
		currency = "usd"
	}
	return &HTTPProvider{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		currency:  currency,
		logger:    logger,
	}
}

func sessionForm(req SessionRequest, currency string) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("customer_email", req.User.Email)
	form.Set("client_reference_id", req.Tour.ID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(AmountCents(req.Tour.Price), 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Tour.Name+" Tour")
	if req.Tour.Summary != "" {
		form.Set("line_items[0][price_data][product_data][description]", req.Tour.Summary)
	}
	return form
}

// CreateSession posts the session form and decodes the created session.
func (p *HTTPProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body := strings.NewReader(sessionForm(req, p.currency).Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/checkout/sessions", body)
	if err != nil {
		return nil, fmt.Errorf("create checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(ctx, httpReq)
	if err != nil {
		var srvErr *httpclient.ServerError
		if errors.Is(err, httpclient.ErrCircuitOpen) || errors.As(err, &srvErr) {
			p.logger.WarnContext(ctx, "checkout provider unavailable", slog.String("error", err.Error()))
			return nil, &apperrors.AppError{
				Code:    "SERVICE_UNAVAILABLE",
				Message: "payment provider is temporarily unavailable",
				Status:  http.StatusServiceUnavailable,
				Err:     errors.Join(apperrors.ErrServiceUnavail, err),
			}
		}
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, providerName)
	}
	defer func() { _ = resp.Body.Close() }()

	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if s.ID == "" {
		return nil, errors.New("decode checkout session: missing id")
	}
	return &s, nil
}
