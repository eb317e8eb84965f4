package market

import (
	"context"
	"math"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
)

const (
	neutralScore       = 50
	disputeRateSignal  = 0.2
	revokeRateSignal   = 0.3
	expireRateSignal   = 0.3
	disputePenalty     = 40
	revokePenalty      = 20
	expirePenalty      = 10
	signalInsufficient = "insufficient_data"
)

// Reputation summarizes how leases of a provider or resource ended, the disputes
// raised on orders for its offers, and the ledger cost billed against it.
func (uc *DefaultMarketUsecase) Reputation(ctx context.Context, in *marketdto.ReputationInput) (rep *marketdto.Reputation, err error) {
	defer uc.finish("reputation", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	leases, err := uc.Store.ListLeases(ctx, domain.LeaseFilter{
		ProviderActorID: in.ProviderActorID,
		ResourceID:      in.ResourceID,
		Limit:           in.Limit,
	})
	if err != nil {
		return nil, err
	}
	leaseCount := marketdto.StatusCount{ByStatus: map[string]int{
		string(domain.LeaseActive):  0,
		string(domain.LeaseRevoked): 0,
		string(domain.LeaseExpired): 0,
	}}
	for _, l := range leases {
		if !within(l.IssuedAt, in.Since, in.Until) {
			continue
		}
		leaseCount.Total++
		leaseCount.ByStatus[string(l.Status)]++
	}

	disputes, err := uc.reputationDisputes(ctx, in)
	if err != nil {
		return nil, err
	}
	disputeCount := countBy(disputes, func(d *domain.Dispute) string { return string(d.Status) })

	entries, err := uc.Store.ListLedger(ctx, domain.LedgerFilter{
		ProviderActorID: in.ProviderActorID,
		ResourceID:      in.ResourceID,
		Since:           in.Since,
		Until:           in.Until,
	})
	if err != nil {
		return nil, err
	}
	ledger := Summarize(entries)

	revoked := leaseCount.ByStatus[string(domain.LeaseRevoked)]
	expired := leaseCount.ByStatus[string(domain.LeaseExpired)]
	return &marketdto.Reputation{
		ProviderActorID: in.ProviderActorID,
		ResourceID:      in.ResourceID,
		Score:           reputationScore(leaseCount.Total, revoked, expired, disputeCount.Total),
		Signals:         reputationSignals(leaseCount.Total, revoked, expired, disputeCount.Total),
		Leases:          leaseCount,
		Disputes:        disputeCount,
		Ledger:          marketdto.ReputationLedger{TotalCost: ledger.TotalCost, Currency: ledger.Currency},
	}, nil
}

// reputationDisputes collects disputes on orders placed against the offers behind
// the matching resources.
func (uc *DefaultMarketUsecase) reputationDisputes(ctx context.Context, in *marketdto.ReputationInput) ([]*domain.Dispute, error) {
	var resources []*domain.Resource
	if in.ResourceID != "" {
		r, err := optional(uc.Store.GetResource(ctx, in.ResourceID))
		if err != nil {
			return nil, err
		}
		if r != nil && (in.ProviderActorID == "" || domain.SameActor(in.ProviderActorID, r.ProviderActorID)) {
			resources = append(resources, r)
		}
	} else {
		var err error
		resources, err = uc.Store.ListResources(ctx, domain.ResourceFilter{ProviderActorID: in.ProviderActorID})
		if err != nil {
			return nil, err
		}
	}

	var disputes []*domain.Dispute
	seen := map[string]struct{}{}
	for _, r := range resources {
		if _, dup := seen[r.OfferID]; dup || r.OfferID == "" {
			continue
		}
		seen[r.OfferID] = struct{}{}
		orders, err := uc.Store.ListOrders(ctx, domain.OrderFilter{OfferID: r.OfferID})
		if err != nil {
			return nil, err
		}
		for _, o := range orders {
			found, err := uc.Store.ListDisputes(ctx, domain.DisputeFilter{OrderID: o.OrderID})
			if err != nil {
				return nil, err
			}
			for _, d := range found {
				if within(d.OpenedAt, in.Since, in.Until) {
					disputes = append(disputes, d)
				}
			}
		}
	}
	return disputes, nil
}

func within(t time.Time, since, until *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if until != nil && t.After(*until) {
		return false
	}
	return true
}

func reputationScore(total, revoked, expired, disputes int) int {
	if total == 0 {
		return neutralScore
	}
	n := float64(total)
	penalty := float64(disputes)/n*disputePenalty + float64(revoked)/n*revokePenalty + float64(expired)/n*expirePenalty
	score := math.Round(100 - penalty)
	return int(math.Max(0, math.Min(100, score)))
}

func reputationSignals(total, revoked, expired, disputes int) []string {
	if total == 0 {
		return []string{signalInsufficient}
	}
	n := float64(total)
	signals := []string{}
	if float64(disputes)/n > disputeRateSignal {
		signals = append(signals, "high_dispute_rate")
	}
	if float64(revoked)/n > revokeRateSignal {
		signals = append(signals, "high_revoke_rate")
	}
	if float64(expired)/n > expireRateSignal {
		signals = append(signals, "high_expire_rate")
	}
	return signals
}
