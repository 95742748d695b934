package repository

import (
	"time"

	"github.com/referral-ledger/internal/models"
)

// ReferralPatch 推荐记录的局部更新，每个字段显式声明写入或保持
type ReferralPatch struct {
	Status            Optional[string]
	ReferredUserID    Optional[string]
	PurchaseValue     Optional[models.Money]
	CommissionRate    Optional[models.Money]
	CommissionAmount  Optional[models.Money]
	OrderID           Optional[*string]
	FraudAction       Optional[string]
	FraudScore        Optional[int]
	FraudSignals      Optional[models.StringArray]
	ConversionIP      Optional[string]
	DeviceFingerprint Optional[string]
	PayoutStatus      Optional[string]
	PayoutReference   Optional[string]
	ConvertedAt       Optional[*time.Time]
	ConfirmAt         Optional[*time.Time]
	AvailableAt       Optional[*time.Time]
	PaidAt            Optional[*time.Time]
	UpdatedAt         Optional[time.Time]
}

// Empty 是否没有任何字段需要写入
func (p ReferralPatch) Empty() bool {
	return len(p.columns()) == 0
}

func (p ReferralPatch) columns() map[string]interface{} {
	columns := make(map[string]interface{})
	putIfSet(columns, "status", p.Status)
	putIfSet(columns, "referred_user_id", p.ReferredUserID)
	putIfSet(columns, "purchase_value", p.PurchaseValue)
	putIfSet(columns, "commission_rate", p.CommissionRate)
	putIfSet(columns, "commission_amount", p.CommissionAmount)
	putIfSet(columns, "order_id", p.OrderID)
	putIfSet(columns, "fraud_action", p.FraudAction)
	putIfSet(columns, "fraud_score", p.FraudScore)
	putIfSet(columns, "fraud_signals", p.FraudSignals)
	putIfSet(columns, "conversion_ip", p.ConversionIP)
	putIfSet(columns, "device_fingerprint", p.DeviceFingerprint)
	putIfSet(columns, "payout_status", p.PayoutStatus)
	putIfSet(columns, "payout_reference", p.PayoutReference)
	putIfSet(columns, "converted_at", p.ConvertedAt)
	putIfSet(columns, "confirm_at", p.ConfirmAt)
	putIfSet(columns, "available_at", p.AvailableAt)
	putIfSet(columns, "paid_at", p.PaidAt)
	putIfSet(columns, "updated_at", p.UpdatedAt)
	return columns
}
