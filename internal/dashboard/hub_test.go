package dashboard

import (
	"encoding/json"
	"testing"

	"btcdigital/internal/engine"
)

func TestEncodeTagsMessageType(t *testing.T) {
	raw, err := encode(engine.WsNewTrade{Model: "black_scholes", Side: "yes", Action: "buy"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != "new_trade" {
		t.Fatalf("expected type new_trade, got %s", wire.Type)
	}
}

func TestEncodeEngineState(t *testing.T) {
	raw, err := encode(engine.WsEngineState{State: "trading", Reason: "vol ready, market active"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != "engine_state" {
		t.Fatalf("expected type engine_state, got %s", wire.Type)
	}
}

func TestEncodeModelUpdate(t *testing.T) {
	raw, err := encode(engine.WsModelUpdate{Model: "student_t", Probability: 0.55, EV: 0.1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.Type != "model_update" {
		t.Fatalf("expected type model_update, got %s", wire.Type)
	}
}
