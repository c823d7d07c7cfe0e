package flows

import (
	"context"

	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	peer "github.com/libp2p/go-libp2p-core/peer"
)

// ChangeNotary moves input to newNotary. The current notary finalizes the
// change and every participant signs it. It returns the moved state.
func (f *Flows) ChangeNotary(ctx context.Context, input models.StateAndRef, newNotary peer.ID) (*models.StateAndRef, error) {
	tracker := f.newTracker(FlowNotaryChange)

	tracker.Set(StepGenerate)
	if !input.State.Data.IsParticipant(f.cfg.Identity) {
		return nil, tracker.fail(&models.AuthorizationError{
			Role:     "participant",
			Expected: input.State.Data.Owner(),
			Actual:   f.cfg.Identity,
		})
	}
	tx, err := f.builder.BuildNotaryChange(input, newNotary)
	if err != nil {
		return nil, tracker.fail(err)
	}

	stx, err := f.sign(tracker, tx)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepCollectSignatures)
	var sessions []*net.Session
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()
	for _, p := range input.State.Data.Participants() {
		if p == f.cfg.Identity {
			continue
		}
		session, err := f.cfg.Network.InitiateSession(ctx, p, FlowNotaryChange)
		if err != nil {
			rejectAll(ctx, sessions, err.Error())
			return nil, tracker.fail(err)
		}
		sessions = append(sessions, session)
		if err := f.collectSignature(ctx, session, stx); err != nil {
			rejectAll(ctx, sessions[:len(sessions)-1], err.Error())
			return nil, tracker.fail(err)
		}
	}

	ft, err := f.finalize(ctx, tracker, stx, sessions...)
	if err != nil {
		return nil, tracker.fail(err)
	}

	tracker.Set(StepDone)
	return &models.StateAndRef{State: ft.Tx.Outputs[0], Ref: models.OutputRef(ft.ID, 0)}, nil
}
