package domain

import "time"

type SettlementStatus string

const (
	SettlementLocked   SettlementStatus = "settlement_locked"
	SettlementReleased SettlementStatus = "settlement_released"
	SettlementRefunded SettlementStatus = "settlement_refunded"
)

type Payee struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type Settlement struct {
	SettlementID   string           `json:"settlementId"`
	OrderID        string           `json:"orderId"`
	Payer          string           `json:"payer"`
	Amount         string           `json:"amount"`
	TokenAddress   string           `json:"tokenAddress,omitempty"`
	Status         SettlementStatus `json:"status"`
	Payees         []Payee          `json:"payees,omitempty"`
	LockTxHash     string           `json:"lockTxHash,omitempty"`
	ReleaseTxHash  string           `json:"releaseTxHash,omitempty"`
	RefundTxHash   string           `json:"refundTxHash,omitempty"`
	RefundReason   string           `json:"refundReason,omitempty"`
	SettlementHash string           `json:"settlementHash,omitempty"`
	LockedAt       time.Time        `json:"lockedAt"`
	ReleasedAt     *time.Time       `json:"releasedAt,omitempty"`
	RefundedAt     *time.Time       `json:"refundedAt,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type SettlementFilter struct {
	OrderID string
	Status  SettlementStatus
}

func (f SettlementFilter) Match(s *Settlement) bool {
	if f.OrderID != "" && f.OrderID != s.OrderID {
		return false
	}
	if f.Status != "" && f.Status != s.Status {
		return false
	}
	return true
}
