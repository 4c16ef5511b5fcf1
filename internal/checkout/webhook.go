package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// SignatureHeader carries the hex HMAC-SHA256 of the callback body.
const SignatureHeader = "X-Checkout-Signature"

// EventSessionCompleted is the callback type that confirms a payment.
const EventSessionCompleted = "checkout.session.completed"

// ErrInvalidSignature is returned when a callback is not signed with the
// shared secret.
var ErrInvalidSignature = errors.New("invalid checkout signature")

// Sign returns the signature of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body in constant time.
func VerifySignature(secret, body []byte, signature string) error {
	if len(secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// CompletedSession is the part of a completed session a booking is made of.
type CompletedSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	AmountTotal       int64  `json:"amount_total"`
}

// Price returns the paid amount in currency units.
func (s CompletedSession) Price() float64 {
	return float64(s.AmountTotal) / 100
}

// Callback is the body posted by the provider.
type Callback struct {
	Type string `json:"type"`
	Data struct {
		Object CompletedSession `json:"object"`
	} `json:"data"`
}

// ParseCallback decodes a callback body.
func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decode checkout callback: %w", err)
	}
	return &cb, nil
}
