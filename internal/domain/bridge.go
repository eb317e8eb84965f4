package domain

import "time"

type BridgeStatus string

const (
	BridgeRequested BridgeStatus = "bridge_requested"
	BridgeInFlight  BridgeStatus = "bridge_in_flight"
	BridgeCompleted BridgeStatus = "bridge_completed"
	BridgeFailed    BridgeStatus = "bridge_failed"
)

type BridgeTransfer struct {
	BridgeID      string       `json:"bridgeId"`
	OrderID       string       `json:"orderId,omitempty"`
	SettlementID  string       `json:"settlementId,omitempty"`
	RouteID       string       `json:"routeId"`
	FromChain     string       `json:"fromChain"`
	ToChain       string       `json:"toChain"`
	AssetSymbol   string       `json:"assetSymbol"`
	Amount        string       `json:"amount"`
	Status        BridgeStatus `json:"status"`
	TxHash        string       `json:"txHash,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`
	RequestedAt   time.Time    `json:"requestedAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type BridgeTransferFilter struct {
	OrderID      string
	SettlementID string
	FromChain    string
	ToChain      string
	AssetSymbol  string
	Status       BridgeStatus
	Limit        int
}

func (f BridgeTransferFilter) Match(t *BridgeTransfer) bool {
	switch {
	case f.OrderID != "" && f.OrderID != t.OrderID:
		return false
	case f.SettlementID != "" && f.SettlementID != t.SettlementID:
		return false
	case f.FromChain != "" && f.FromChain != t.FromChain:
		return false
	case f.ToChain != "" && f.ToChain != t.ToChain:
		return false
	case f.AssetSymbol != "" && f.AssetSymbol != t.AssetSymbol:
		return false
	case f.Status != "" && f.Status != t.Status:
		return false
	}
	return true
}

type BridgeRoute struct {
	RouteID          string `json:"routeId"`
	FromChain        string `json:"fromChain"`
	ToChain          string `json:"toChain"`
	AssetSymbol      string `json:"assetSymbol"`
	FeeBps           int    `json:"feeBps"`
	EstimatedSeconds int    `json:"estimatedSeconds"`
	Provider         string `json:"provider"`
}

type CrossChainAsset struct {
	AssetID  string   `json:"assetId"`
	Symbol   string   `json:"symbol"`
	Decimals int      `json:"decimals"`
	Chains   []string `json:"chains"`
}
