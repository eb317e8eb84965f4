package bridgedto

import (
	"strings"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
)

var Chains = []string{"ton", "evm"}

func validChain(field, chain string) error {
	for _, c := range Chains {
		if c == chain {
			return nil
		}
	}
	return domain.InvalidArgument("%s must be one of %s", field, strings.Join(Chains, ", "))
}

type RoutesInput struct {
	FromChain   string
	ToChain     string
	AssetSymbol string
}

func (in *RoutesInput) Validate() error {
	if in.FromChain != "" {
		if err := validChain("fromChain", in.FromChain); err != nil {
			return err
		}
	}
	if in.ToChain != "" {
		if err := validChain("toChain", in.ToChain); err != nil {
			return err
		}
	}
	in.AssetSymbol = strings.TrimSpace(in.AssetSymbol)
	return nil
}

type RequestInput struct {
	ActorID      string
	OrderID      string
	SettlementID string
	FromChain    string
	ToChain      string
	AssetSymbol  string
	// Amount is in the asset's base units.
	Amount string
}

func (in *RequestInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.SettlementID = strings.TrimSpace(in.SettlementID)
	if in.OrderID == "" && in.SettlementID == "" {
		return domain.InvalidArgument("orderId or settlementId is required")
	}
	if err := validChain("fromChain", in.FromChain); err != nil {
		return err
	}
	if err := validChain("toChain", in.ToChain); err != nil {
		return err
	}
	if err := check.Required("assetSymbol", in.AssetSymbol); err != nil {
		return err
	}
	in.AssetSymbol = strings.TrimSpace(in.AssetSymbol)
	amount, err := check.Amount("amount", in.Amount, false)
	if err != nil {
		return err
	}
	if !amount.IsInteger() {
		return domain.InvalidArgument("amount must be an integer in base units")
	}
	in.Amount = amount.String()
	return nil
}

type UpdateInput struct {
	ActorID       string
	BridgeID      string
	Status        domain.BridgeStatus
	TxHash        string
	FailureReason string
}

func (in *UpdateInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("bridgeId", in.BridgeID); err != nil {
		return err
	}
	switch in.Status {
	case "", domain.BridgeRequested, domain.BridgeInFlight, domain.BridgeCompleted, domain.BridgeFailed:
	default:
		return domain.InvalidArgument("status %q is not a bridge status", in.Status)
	}
	in.TxHash = strings.TrimSpace(in.TxHash)
	in.FailureReason = strings.TrimSpace(in.FailureReason)
	if in.Status == "" && in.TxHash == "" && in.FailureReason == "" {
		return domain.InvalidArgument("status, txHash or failureReason is required")
	}
	return check.MaxLen("failureReason", in.FailureReason, 500)
}

type ListInput struct {
	OrderID      string
	SettlementID string
	FromChain    string
	ToChain      string
	AssetSymbol  string
	Status       domain.BridgeStatus
	Limit        int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)
