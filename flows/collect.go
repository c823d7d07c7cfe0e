package flows

import (
	"context"
	"time"

	"github.com/cpacia/iouledger/contracts"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	"github.com/pkg/errors"
)

// sign verifies tx against the contracts and signs it with our key.
func (f *Flows) sign(tracker *ProgressTracker, tx *models.Transaction) (*models.SignedTransaction, error) {
	tracker.Set(StepVerify)
	if err := contracts.Verify(tx); err != nil {
		return nil, err
	}

	tracker.Set(StepSign)
	stx, err := models.NewSignedTransaction(tx)
	if err != nil {
		return nil, err
	}
	if err := stx.Sign(f.cfg.Key); err != nil {
		return nil, err
	}
	return stx, nil
}

// collectSignature sends the proposal over the session and merges the
// counterparty's signature into stx.
func (f *Flows) collectSignature(ctx context.Context, session *net.Session, stx *models.SignedTransaction) error {
	if err := session.Send(ctx, net.MessageProposal, stx); err != nil {
		return err
	}

	var signed models.SignedTransaction
	if err := session.ReceiveType(ctx, net.MessageSignature, &signed); err != nil {
		var rejected *models.CounterpartyRejectedError
		if errors.As(err, &rejected) {
			f.emit(&events.ProposalRejected{
				TxID:   stx.ID,
				Flow:   session.Flow(),
				Peer:   session.Peer().Pretty(),
				Reason: rejected.Reason,
			})
		}
		return err
	}

	if reason := checkReturnedSignature(session, stx, &signed); reason != "" {
		session.Reject(ctx, reason)
		return &models.CounterpartyRejectedError{Counterparty: session.Peer(), Reason: reason}
	}

	sig, _ := signed.SignatureBy(session.Peer())
	stx.AddSignature(sig)
	return nil
}

func checkReturnedSignature(session *net.Session, proposal, signed *models.SignedTransaction) string {
	if signed.ID != proposal.ID {
		return "returned transaction differs from the proposal"
	}
	if err := signed.CheckID(); err != nil {
		return err.Error()
	}
	sig, ok := signed.SignatureBy(session.Peer())
	if !ok {
		return "counterparty did not sign the transaction"
	}
	merged := *proposal
	merged.Signatures = append([]models.TransactionSignature(nil), proposal.Signatures...)
	merged.AddSignature(sig)
	if err := merged.VerifySignatures(); err != nil {
		return err.Error()
	}
	return ""
}

// finalizeAttempts bounds how often the same transaction is resubmitted to
// the notary after a transport failure.
const finalizeAttempts = 3

// finalizeRetryDelay is multiplied by the attempt number between
// resubmissions.
var finalizeRetryDelay = time.Millisecond * 500

// finalize has the notary commit stx, records the result in our vault
// and sends it to every counterparty. If notarization fails the
// counterparties are told so and nothing is recorded.
func (f *Flows) finalize(ctx context.Context, tracker *ProgressTracker, stx *models.SignedTransaction, sessions ...*net.Session) (*models.FinalizedTransaction, error) {
	tracker.Set(StepFinalize)
	if err := stx.VerifyRequiredSignatures(); err != nil {
		rejectAll(ctx, sessions, err.Error())
		return nil, &models.ValidationError{Rule: err.Error()}
	}

	ft, err := f.notarize(ctx, stx)
	if err != nil {
		rejectAll(ctx, sessions, err.Error())
		return nil, err
	}

	if err := f.cfg.Vault.RecordTransaction(ft, f.cfg.Identity); err != nil {
		return nil, errors.Wrapf(err, "recording finalized transaction %s", ft.ID)
	}

	// The transaction is final regardless of whether the counterparties
	// acknowledge it.
	for _, session := range sessions {
		if err := session.Send(ctx, net.MessageFinalized, ft); err != nil {
			log.Warningf("Failed to send finalized transaction %s to %s: %s", ft.ID, session.Peer(), err)
			continue
		}
		if err := session.ReceiveType(ctx, net.MessageAck, nil); err != nil {
			log.Warningf("%s did not acknowledge transaction %s: %s", session.Peer(), ft.ID, err)
		}
	}
	return ft, nil
}

// notarize submits stx to its notary. A transport failure may hide a
// commit, so the same transaction is resubmitted and the notary answers a
// repeat with the transaction it already finalized. If every attempt
// fails stx is kept as pending. A later conflict naming a pending
// transaction as the consumer means it was committed after all, and it is
// fetched and recorded.
func (f *Flows) notarize(ctx context.Context, stx *models.SignedTransaction) (*models.FinalizedTransaction, error) {
	var (
		ft  *models.FinalizedTransaction
		err error
	)
	for attempt := 1; attempt <= finalizeAttempts; attempt++ {
		ft, err = f.cfg.Notary.Finalize(ctx, stx)
		if !models.IsTransportError(err) || attempt == finalizeAttempts {
			break
		}
		log.Warningf("Notary unreachable finalizing %s (attempt %d): %s", stx.ID, attempt, err)
		select {
		case <-time.After(finalizeRetryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			f.setPending(stx)
			return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: ctx.Err()}
		}
	}

	switch {
	case err == nil:
		f.clearPending(stx.ID)
		return ft, nil
	case models.IsTransportError(err):
		f.setPending(stx)
	case models.IsNotarizationConflictError(err):
		var conflict *models.NotarizationConflictError
		if errors.As(err, &conflict) {
			f.recoverPending(ctx, conflict.ConsumingTx)
		}
	}
	return nil, err
}

func (f *Flows) setPending(stx *models.SignedTransaction) {
	f.pendingMtx.Lock()
	defer f.pendingMtx.Unlock()
	f.pending[stx.ID] = stx
}

func (f *Flows) clearPending(txID string) {
	f.pendingMtx.Lock()
	defer f.pendingMtx.Unlock()
	delete(f.pending, txID)
}

// recoverPending records the pending transaction txID if the notary has
// finalized it.
func (f *Flows) recoverPending(ctx context.Context, txID string) {
	f.pendingMtx.Lock()
	stx, ok := f.pending[txID]
	f.pendingMtx.Unlock()
	if !ok {
		return
	}
	ft, err := f.cfg.Notary.Finalize(ctx, stx)
	if err != nil {
		log.Warningf("Failed to recover pending transaction %s: %s", txID, err)
		return
	}
	if err := f.cfg.Vault.RecordTransaction(ft, f.cfg.Identity); err != nil {
		log.Errorf("Failed to record recovered transaction %s: %s", txID, err)
		return
	}
	f.clearPending(txID)
	log.Infof("Recorded transaction %s committed by the notary in an earlier attempt", txID)
}

func rejectAll(ctx context.Context, sessions []*net.Session, reason string) {
	for _, session := range sessions {
		if err := session.Reject(ctx, reason); err != nil {
			log.Debugf("Failed to send rejection to %s: %s", session.Peer(), err)
		}
	}
}

// receiveFinality waits for the finalized transaction we signed and
// records it in our vault.
func (f *Flows) receiveFinality(ctx context.Context, session *net.Session, txID string) (*models.FinalizedTransaction, error) {
	ft := new(models.FinalizedTransaction)
	if err := session.ReceiveType(ctx, net.MessageFinalized, ft); err != nil {
		return nil, err
	}
	if ft.ID != txID {
		return nil, errors.Errorf("finalized transaction %s is not the one we signed (%s)", ft.ID, txID)
	}
	if err := ft.CheckID(); err != nil {
		return nil, err
	}
	if err := ft.VerifyRequiredSignatures(); err != nil {
		return nil, err
	}
	if err := ft.VerifyNotarySignature(); err != nil {
		return nil, errors.Wrap(err, "notary signature")
	}
	if err := f.cfg.Vault.RecordTransaction(ft, f.cfg.Identity); err != nil {
		return nil, err
	}
	return ft, nil
}
