package dispute

import (
	"context"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/dto/check"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
)

func (uc *DefaultDisputeUsecase) Get(ctx context.Context, ref disputedto.Ref) (dispute *domain.Dispute, err error) {
	defer domain.NormalizeError(&err)
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return load(ctx, uc.store, ref)
}

func (uc *DefaultDisputeUsecase) List(ctx context.Context, in *disputedto.ListDisputesInput) (disputes []*domain.Dispute, err error) {
	defer domain.NormalizeError(&err)
	limit, err := check.Limit(in.Limit, disputedto.DefaultListLimit, disputedto.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return uc.store.ListDisputes(ctx, domain.DisputeFilter{OrderID: in.OrderID, Status: in.Status, Limit: limit})
}
