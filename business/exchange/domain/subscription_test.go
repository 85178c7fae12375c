package domain

import (
	"encoding/json"
	"testing"
)

func TestSubscriptionRequest_WireShape(t *testing.T) {
	req := NewSubscriptionRequest(1,
		[]string{"book.BTCUSD-PERP.10", "trade.BTCUSD-PERP"},
		SubscriptionSnapshotAndUpdate, 10)

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["id"].(float64) != 1 {
		t.Errorf("id = %v, want 1", decoded["id"])
	}
	if decoded["method"] != "subscribe" {
		t.Errorf("method = %v, want subscribe", decoded["method"])
	}

	params := decoded["params"].(map[string]any)
	channels := params["channels"].([]any)
	if len(channels) != 2 || channels[0] != "book.BTCUSD-PERP.10" || channels[1] != "trade.BTCUSD-PERP" {
		t.Errorf("channels = %v", channels)
	}
	if params["book_subscription_type"] != "SNAPSHOT_AND_UPDATE" {
		t.Errorf("book_subscription_type = %v", params["book_subscription_type"])
	}
	if params["book_update_frequency"].(float64) != 10 {
		t.Errorf("book_update_frequency = %v", params["book_update_frequency"])
	}
	if _, ok := decoded["nonce"]; !ok {
		t.Error("nonce missing from request")
	}
}

func TestSubscriptionRequest_OmitsEmptyBookParams(t *testing.T) {
	req := NewSubscriptionRequest(2, []string{"trade.ETHUSD-PERP"}, "", 0)

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	params := decoded["params"].(map[string]any)
	if _, ok := params["book_subscription_type"]; ok {
		t.Error("empty book_subscription_type should be omitted")
	}
	if _, ok := params["book_update_frequency"]; ok {
		t.Error("zero book_update_frequency should be omitted")
	}
}
