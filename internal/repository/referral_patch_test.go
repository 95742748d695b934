package repository

import (
	"testing"

	"github.com/referral-ledger/internal/constants"
)

func TestReferralPatchColumns(t *testing.T) {
	var empty ReferralPatch
	if !empty.Empty() {
		t.Fatalf("zero patch should be empty")
	}

	var orderID *string
	patch := ReferralPatch{
		Status:  Set(constants.ReferralStatusConverted),
		OrderID: Set(orderID),
	}
	if patch.Empty() {
		t.Fatalf("patch with fields should not be empty")
	}
	columns := patch.columns()
	if len(columns) != 2 {
		t.Fatalf("want 2 columns got %v", columns)
	}
	if columns["status"] != constants.ReferralStatusConverted {
		t.Fatalf("unexpected status column: %v", columns["status"])
	}
	// 显式写入的 nil 指针也要落库
	if value, ok := columns["order_id"]; !ok || value.(*string) != nil {
		t.Fatalf("order_id should be written as nil, got %v ok=%v", value, ok)
	}
	if _, ok := columns["payout_status"]; ok {
		t.Fatalf("unset field must not be written")
	}
}
