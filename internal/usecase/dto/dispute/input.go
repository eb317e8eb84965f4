package disputedto

import (
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
)

const (
	DefaultListLimit  = 50
	MaxListLimit      = 200
	DefaultSweepLimit = 200
	MaxSweepLimit     = 1000
)

type OpenDisputeInput struct {
	ActorID string
	OrderID string
	Reason  string
}

func (in *OpenDisputeInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := check.Required("orderId", in.OrderID); err != nil {
		return err
	}
	if err := check.Required("reason", in.Reason); err != nil {
		return err
	}
	return check.MaxLen("reason", in.Reason, 1000)
}

// Ref addresses a dispute by id or, failing that, by the order it concerns.
type Ref struct {
	DisputeID string
	OrderID   string
}

func (r *Ref) Validate() error {
	r.DisputeID = strings.TrimSpace(r.DisputeID)
	r.OrderID = strings.TrimSpace(r.OrderID)
	if r.DisputeID == "" && r.OrderID == "" {
		return domain.InvalidArgument("disputeId or orderId is required")
	}
	return nil
}

type SubmitEvidenceInput struct {
	ActorID string
	Ref
	Summary string
	CID     string
}

func (in *SubmitEvidenceInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := in.Ref.Validate(); err != nil {
		return err
	}
	if err := check.Required("evidence.summary", in.Summary); err != nil {
		return err
	}
	if err := check.MaxLen("evidence.summary", in.Summary, 2000); err != nil {
		return err
	}
	in.CID = strings.TrimSpace(in.CID)
	return check.MaxLen("evidence.cid", in.CID, 256)
}

type ResolveDisputeInput struct {
	ActorID string
	Ref
	Ruling       domain.DisputeRuling
	Reason       string
	RefundAmount string
}

func (in *ResolveDisputeInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := in.Ref.Validate(); err != nil {
		return err
	}
	switch in.Ruling {
	case domain.RulingProviderWins, domain.RulingConsumerWins, domain.RulingSplit:
	case domain.RulingTimeout:
		return domain.InvalidArgument("ruling timeout is reserved for the expiry sweep")
	default:
		return domain.InvalidArgument("ruling must be one of provider_wins, consumer_wins, split")
	}
	if err := check.MaxLen("reason", in.Reason, 1000); err != nil {
		return err
	}
	in.RefundAmount = strings.TrimSpace(in.RefundAmount)
	return check.OptionalAmount("refundAmount", in.RefundAmount, true)
}

type RejectDisputeInput struct {
	ActorID string
	Ref
	Reason string
}

func (in *RejectDisputeInput) Validate() error {
	actor, err := check.Actor(in.ActorID)
	if err != nil {
		return err
	}
	in.ActorID = actor
	if err := in.Ref.Validate(); err != nil {
		return err
	}
	return check.MaxLen("reason", in.Reason, 1000)
}

type ListDisputesInput struct {
	OrderID string
	Status  domain.DisputeStatus
	Limit   int
}

type ExpireStaleInput struct {
	Now   *time.Time
	Limit int
}
