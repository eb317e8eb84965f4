package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/canonical"
	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/LavaJover/shvark-market-service/internal/usecase/audit"
	disputedto "github.com/LavaJover/shvark-market-service/internal/usecase/dto/dispute"
)

// SubmitEvidence attaches one evidence item from a party. The first item moves the
// dispute to evidence_submitted; later items keep it there.
func (uc *DefaultDisputeUsecase) SubmitEvidence(ctx context.Context, in *disputedto.SubmitEvidenceInput) (out *disputedto.SubmitEvidenceOutput, err error) {
	defer uc.finish("submit_evidence", time.Now(), &err)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	evidenceID, err := newID()
	if err != nil {
		return nil, err
	}
	var (
		dispute  *domain.Dispute
		evidence domain.DisputeEvidence
	)
	err = uc.store.RunInTransaction(ctx, func(tx domain.Repository) error {
		var err error
		if dispute, err = load(ctx, tx, in.Ref); err != nil {
			return err
		}
		if !dispute.IsParty(in.ActorID) {
			return domain.Forbidden("actorId must match a dispute party")
		}
		if err := requireOpen(dispute); err != nil {
			return err
		}
		if n := dispute.EvidenceCount(in.ActorID); n >= uc.cfg.MaxEvidencePerParty {
			return domain.QuotaExceeded("evidence limit of %d per party reached", uc.cfg.MaxEvidencePerParty).
				WithDetail("disputeId", dispute.DisputeID)
		}

		now := uc.clock.Now()
		evidence = domain.DisputeEvidence{
			EvidenceID:  evidenceID,
			ActorID:     in.ActorID,
			Summary:     strings.TrimSpace(in.Summary),
			CID:         in.CID,
			SubmittedAt: now,
		}
		if evidence.Hash, err = canonical.Hash(map[string]any{
			"disputeId":   dispute.DisputeID,
			"actorId":     evidence.ActorID,
			"summary":     evidence.Summary,
			"cid":         evidence.CID,
			"submittedAt": evidence.SubmittedAt,
		}); err != nil {
			return err
		}
		if dispute.Status == domain.DisputeOpened {
			if err := domain.DisputeTransitions.Check(domain.EntityDispute, dispute.Status, domain.DisputeEvidenceSubmitted); err != nil {
				return err
			}
			dispute.Status = domain.DisputeEvidenceSubmitted
		}
		dispute.Evidence = append(dispute.Evidence, evidence)
		if err := seal(dispute, now); err != nil {
			return err
		}
		return tx.SaveDispute(ctx, dispute)
	})
	if err != nil {
		return nil, err
	}
	uc.metrics.Transition(domain.EntityDispute, string(dispute.Status))
	uc.record(ctx, audit.Entry{
		Kind:  domain.AuditDisputeEvidenceSubmitted,
		RefID: dispute.DisputeID,
		Hash:  evidence.Hash,
		Actor: in.ActorID,
		Details: map[string]any{
			"evidenceId": evidence.EvidenceID,
			"summary":    evidence.Summary,
			"cid":        evidence.CID,
		},
	}, "dispute:"+dispute.DisputeID+":evidence:"+evidence.EvidenceID)
	return &disputedto.SubmitEvidenceOutput{Dispute: dispute, Evidence: evidence}, nil
}
