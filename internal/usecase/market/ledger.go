package market

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	marketdto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/market"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// checkLeaseUsable reports why usage can no longer be recorded against lease.
func checkLeaseUsable(lease *domain.Lease, now time.Time) error {
	switch {
	case lease.Status == domain.LeaseExpired:
		return domain.Expired("lease %s has expired", lease.LeaseID)
	case lease.Status != domain.LeaseActive:
		return domain.Revoked("lease %s is %s", lease.LeaseID, lease.Status)
	case lease.ExpiredAt(now):
		return domain.Expired("lease %s has expired", lease.LeaseID)
	}
	return nil
}

func (uc *DefaultMarketUsecase) AppendLedger(ctx context.Context, in *marketdto.AppendLedgerInput) (entry *domain.LedgerEntry, err error) {
	defer uc.finish("append_ledger", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	cost, _ := decimal.NewFromString(strings.TrimSpace(in.Cost))
	err = uc.Store.RunInTransaction(ctx, func(tx domain.Repository) error {
		lease, err := tx.GetLease(ctx, in.LeaseID)
		if err != nil {
			return err
		}
		if err := requireActor(in.ActorID, lease.ProviderActorID, "lease.providerActorId"); err != nil {
			return err
		}
		now := uc.Clock.Now()
		if err := checkLeaseUsable(lease, now); err != nil {
			return err
		}
		resource, err := tx.GetResource(ctx, lease.ResourceID)
		if err != nil {
			return err
		}
		switch {
		case resource.Kind != lease.Kind:
			return domain.Conflict("lease kind %s does not match resource kind %s", lease.Kind, resource.Kind)
		case !domain.SameActor(resource.ProviderActorID, lease.ProviderActorID):
			return domain.Conflict("lease provider does not match resource provider")
		case resource.Status != domain.ResourcePublished:
			return domain.Conflict("resource %s is not published", resource.ResourceID)
		}
		if lease.MaxCost != "" {
			if err := checkMaxCost(ctx, tx, lease, cost); err != nil {
				return err
			}
		}

		entry = &domain.LedgerEntry{
			LedgerID:        uuid.NewString(),
			Timestamp:       now,
			LeaseID:         lease.LeaseID,
			ResourceID:      lease.ResourceID,
			Kind:            lease.Kind,
			ProviderActorID: lease.ProviderActorID,
			ConsumerActorID: lease.ConsumerActorID,
			Unit:            in.Unit,
			Quantity:        strings.TrimSpace(in.Quantity),
			Cost:            strings.TrimSpace(in.Cost),
			Currency:        resource.Price.Currency,
			TokenAddress:    resource.Price.TokenAddress,
			SessionID:       in.SessionID,
			RunID:           in.RunID,
		}
		// hashed while entryHash is still empty
		if entry.EntryHash, err = canonical.Hash(entry); err != nil {
			return err
		}
		return tx.AppendLedger(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditLedgerAppended,
		RefID: entry.LedgerID,
		Hash:  entry.EntryHash,
		Actor: in.ActorID,
		Details: map[string]any{
			"leaseId":  entry.LeaseID,
			"unit":     string(entry.Unit),
			"quantity": entry.Quantity,
			"cost":     entry.Cost,
		},
	}, "")
	return entry, nil
}

// checkMaxCost rejects an entry that would push the lease past its cost ceiling.
func checkMaxCost(ctx context.Context, tx domain.Repository, lease *domain.Lease, cost decimal.Decimal) error {
	ceiling, err := decimal.NewFromString(lease.MaxCost)
	if err != nil {
		return domain.Internal(err, "lease %s has an invalid maxCost", lease.LeaseID)
	}
	entries, err := tx.ListLedger(ctx, domain.LedgerFilter{LeaseID: lease.LeaseID})
	if err != nil {
		return err
	}
	spent := decimal.Zero
	for _, e := range entries {
		c, err := decimal.NewFromString(e.Cost)
		if err != nil {
			continue
		}
		spent = spent.Add(c)
	}
	if spent.Add(cost).GreaterThan(ceiling) {
		return domain.QuotaExceeded("lease %s cost would exceed maxCost %s", lease.LeaseID, lease.MaxCost).
			WithDetail("spent", spent.String())
	}
	return nil
}

func (uc *DefaultMarketUsecase) ListLedger(ctx context.Context, in *marketdto.ListLedgerInput) (entries []*domain.LedgerEntry, err error) {
	defer domain.NormalizeError(&err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return uc.Store.ListLedger(ctx, in.Filter())
}

// SummarizeLedger totals quantity and cost per unit over the filtered entries. The
// currency is reported only when every entry shares it.
func (uc *DefaultMarketUsecase) SummarizeLedger(ctx context.Context, in *marketdto.ListLedgerInput) (summary *domain.LedgerSummary, err error) {
	defer domain.NormalizeError(&err)
	unbounded := in.Limit == 0
	if err := in.Validate(); err != nil {
		return nil, err
	}
	filter := in.Filter()
	if unbounded {
		filter.Limit = 0
	}
	entries, err := uc.Store.ListLedger(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Summarize(entries), nil
}

func Summarize(entries []*domain.LedgerEntry) *domain.LedgerSummary {
	type totals struct{ quantity, cost decimal.Decimal }
	byUnit := map[domain.LedgerUnit]*totals{}
	total := decimal.Zero
	currency, mixed := "", false
	for _, e := range entries {
		q, err := decimal.NewFromString(e.Quantity)
		if err != nil {
			q = decimal.Zero
		}
		c, err := decimal.NewFromString(e.Cost)
		if err != nil {
			c = decimal.Zero
		}
		t, ok := byUnit[e.Unit]
		if !ok {
			t = &totals{quantity: decimal.Zero, cost: decimal.Zero}
			byUnit[e.Unit] = t
		}
		t.quantity = t.quantity.Add(q)
		t.cost = t.cost.Add(c)
		total = total.Add(c)
		switch {
		case currency == "":
			currency = e.Currency
		case currency != e.Currency:
			mixed = true
		}
	}
	summary := &domain.LedgerSummary{
		Entries:   len(entries),
		ByUnit:    make(map[domain.LedgerUnit]domain.LedgerUnitTotal, len(byUnit)),
		TotalCost: total.String(),
	}
	for unit, t := range byUnit {
		summary.ByUnit[unit] = domain.LedgerUnitTotal{Quantity: t.quantity.String(), Cost: t.cost.String()}
	}
	if !mixed {
		summary.Currency = currency
	}
	return summary
}
