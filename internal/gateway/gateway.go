// Package gateway is the boundary to the external payment provider.
package gateway

import (
	"context"
	"errors"
)

// StatusSucceeded is the provider status that marks an intent as paid.
const StatusSucceeded = "succeeded"

// ErrUnavailable wraps every failure talking to the provider: transport
// errors, timeouts and provider-side rejections.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type Gateway interface {
	// CreateIntent creates a payment intent for amount in the currency's minor unit.
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}
