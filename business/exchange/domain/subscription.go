// Package domain contains the core domain types for the exchange context.
package domain

import "time"

// Book subscription types accepted by the exchange.
const (
	SubscriptionSnapshot          = "SNAPSHOT"
	SubscriptionSnapshotAndUpdate = "SNAPSHOT_AND_UPDATE"
)

// SubscriptionParams is the params object of a subscribe request.
type SubscriptionParams struct {
	Channels             []string `json:"channels"`
	BookSubscriptionType string   `json:"book_subscription_type,omitempty"`
	BookUpdateFrequency  int      `json:"book_update_frequency,omitempty"`
}

// SubscriptionRequest is the subscribe message sent after connecting.
type SubscriptionRequest struct {
	ID     int64              `json:"id"`
	Method string             `json:"method"`
	Params SubscriptionParams `json:"params"`
	Nonce  int64              `json:"nonce"`
}

// NewSubscriptionRequest builds a subscribe request for the given channels.
func NewSubscriptionRequest(id int64, channels []string, bookType string, updateFrequency int) SubscriptionRequest {
	return SubscriptionRequest{
		ID:     id,
		Method: "subscribe",
		Params: SubscriptionParams{
			Channels:             channels,
			BookSubscriptionType: bookType,
			BookUpdateFrequency:  updateFrequency,
		},
		Nonce: time.Now().UnixMilli(),
	}
}
