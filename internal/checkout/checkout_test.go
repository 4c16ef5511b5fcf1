package checkout

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploop3/Natours/internal/domain"
	apperrors "github.com/ploop3/Natours/pkg/errors"
	"github.com/ploop3/Natours/pkg/httpclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() SessionRequest {
	return SessionRequest{
		Tour:       &domain.Tour{ID: "tour-1", Name: "The Forest Hiker", Summary: "Breathtaking hike", Price: 397.5},
		User:       &domain.User{ID: "user-1", Email: "laura@example.com"},
		SuccessURL: "https://natours.dev/my-tours",
		CancelURL:  "https://natours.dev/tour/the-forest-hiker",
	}
}

func newProvider(t *testing.T, h http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := httpclient.New(httpclient.Config{
		Timeout:      2 * time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	cbCfg := httpclient.DefaultCircuitBreakerConfig("checkout-test-" + t.Name())
	cb := httpclient.NewCircuitBreakerClient(client, cbCfg, newTestLogger())
	return NewHTTPProvider(cb, srv.URL+"/", "sk_test", "", newTestLogger())
}

func TestAmountCents(t *testing.T) {
	assert.Equal(t, int64(39750), AmountCents(397.5))
	assert.Equal(t, int64(1999), AmountCents(19.99))
}

func TestHTTPProvider_CreateSession(t *testing.T) {
	var form url.Values
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		_, _ = w.Write([]byte(`{"id":"cs_123","url":"https://pay.example.com/cs_123"}`))
	})

	s, err := p.CreateSession(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_123", s.ID)
	assert.Equal(t, "https://pay.example.com/cs_123", s.URL)

	assert.Equal(t, "tour-1", form.Get("client_reference_id"))
	assert.Equal(t, "laura@example.com", form.Get("customer_email"))
	assert.Equal(t, "39750", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "The Forest Hiker Tour", form.Get("line_items[0][price_data][product_data][name]"))
}

func TestHTTPProvider_CardDeclined(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"Your card was declined."}}`))
	})

	_, err := p.CreateSession(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	assert.Equal(t, http.StatusPaymentRequired, apperrors.HTTPStatus(err))
}

func TestHTTPProvider_ServerErrorIsUnavailable(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.CreateSession(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}

func TestHTTPProvider_MissingID(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := p.CreateSession(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "missing id")
}

func TestMockProvider(t *testing.T) {
	s, err := NewMockProvider(newTestLogger()).CreateSession(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Contains(t, s.ID, "cs_mock_")
	assert.Equal(t, "https://natours.dev/my-tours", s.URL)
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("whsec")
	body := []byte(`{"type":"checkout.session.completed"}`)
	sig := Sign(secret, body)

	assert.NoError(t, VerifySignature(secret, body, sig))

	tests := map[string]struct {
		secret []byte
		body   []byte
		sig    string
	}{
		"tampered body": {secret, []byte(`{"type":"other"}`), sig},
		"wrong secret":  {[]byte("nope"), body, sig},
		"empty":         {secret, body, ""},
		"not hex":       {secret, body, "zz"},
		"no secret set": {nil, body, sig},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, VerifySignature(tt.secret, tt.body, tt.sig), ErrInvalidSignature)
		})
	}
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "client_reference_id": "tour-1", "customer_email": "a@b.c", "amount_total": 49700}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventSessionCompleted, cb.Type)
	assert.Equal(t, "tour-1", cb.Data.Object.ClientReferenceID)
	assert.Equal(t, 497.0, cb.Data.Object.Price())

	_, err = ParseCallback([]byte(`not json`))
	assert.Error(t, err)
}
