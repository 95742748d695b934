package models

import (
	"encoding/json"
	"testing"
)

func TestMoneyJSONAcceptsNumberAndString(t *testing.T) {
	var fromNumber struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 100.456}`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number failed: %v", err)
	}
	if fromNumber.Amount.String() != "100.46" {
		t.Fatalf("unexpected amount: %s", fromNumber.Amount.String())
	}

	var fromString struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": "25"}`), &fromString); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	out, err := json.Marshal(fromString)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"amount":"25.00"}` {
		t.Fatalf("unexpected json: %s", string(out))
	}
}

func TestMoneyScanNilIsZero(t *testing.T) {
	m := NewMoneyFromFloat(3)
	if err := m.Scan(nil); err != nil {
		t.Fatalf("scan nil failed: %v", err)
	}
	if !m.IsZero() {
		t.Fatalf("expected zero after scanning nil, got %s", m.String())
	}
}
