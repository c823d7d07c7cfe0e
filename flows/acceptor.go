package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cpacia/iouledger/contracts"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	peer "github.com/libp2p/go-libp2p-core/peer"
)

// proposalCheck is the flow specific part of validating a proposal. It
// runs after the signatures and contract rules have been checked.
type proposalCheck func(me, initiator peer.ID, tx *models.Transaction) error

func rejectProposal(rule string) error {
	return &models.ValidationError{Rule: rule}
}

func checkIssueIOU(me, initiator peer.ID, tx *models.Transaction) error {
	if _, ok := tx.Command(models.CommandIOUIssue); !ok || len(tx.Commands) != 1 {
		return rejectProposal("proposal must be an IOU issue")
	}
	iou := tx.Outputs[0].Data.IOU
	if iou.Borrower != me {
		return rejectProposal("we must be the borrower of the IOU")
	}
	if iou.Lender != initiator {
		return rejectProposal("the initiator must be the lender of the IOU")
	}
	return nil
}

func checkSettleIOU(me, initiator peer.ID, tx *models.Transaction) error {
	if _, ok := tx.Command(models.CommandIOUDelete); !ok {
		return rejectProposal("proposal must delete an IOU")
	}
	var iou *models.IOUState
	for _, in := range tx.Inputs {
		if in.State.Data.Contract == models.ContractIOU {
			iou = in.State.Data.IOU
		}
	}
	if iou == nil || iou.Borrower != me {
		return rejectProposal("we must be the borrower of the IOU being deleted")
	}
	if iou.Lender != initiator {
		return rejectProposal("the initiator must be the lender of the IOU")
	}
	if len(tx.Outputs) != 1 || tx.Outputs[0].Data.Contract != models.ContractWallet {
		return rejectProposal("must be a wallet transaction")
	}
	out := tx.Outputs[0].Data.Wallet
	if out.Amount.IsNegative() {
		return rejectProposal("amount cannot be negative")
	}
	if out.LastMovement == "" {
		return rejectProposal("lastMovement cannot be empty")
	}
	return nil
}

func checkNotaryChange(me, initiator peer.ID, tx *models.Transaction) error {
	if _, ok := tx.Command(models.CommandNotaryChange); !ok || len(tx.Commands) != 1 {
		return rejectProposal("proposal must be a notary change")
	}
	data := tx.Inputs[0].State.Data
	if !data.IsParticipant(me) || !data.IsParticipant(initiator) {
		return rejectProposal("both parties must participate in the state")
	}
	return nil
}

// acceptor returns the session handler that signs proposals for flow.
func (f *Flows) acceptor(flow string, check proposalCheck) net.SessionHandler {
	return func(ctx context.Context, session *net.Session) {
		ctx, cancel := context.WithTimeout(ctx, acceptorTimeout)
		defer cancel()

		tracker := f.newTracker(flow + "Acceptor")

		tracker.Set(StepAwaitProposal)
		var stx models.SignedTransaction
		if err := session.ReceiveType(ctx, net.MessageProposal, &stx); err != nil {
			tracker.fail(err)
			return
		}

		tracker.Set(StepValidate)
		if err := f.validateProposal(session.Peer(), &stx, check); err != nil {
			reason := err.Error()
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				reason = verr.Rule
			}
			f.emit(&events.ProposalRejected{
				TxID:   stx.ID,
				Flow:   flow,
				Peer:   session.Peer().Pretty(),
				Reason: reason,
			})
			if err := session.Reject(ctx, reason); err != nil {
				log.Errorf("Error sending rejection to %s: %s", session.Peer(), err)
			}
			tracker.fail(err)
			return
		}

		tracker.Set(StepSign)
		if err := stx.Sign(f.cfg.Key); err != nil {
			session.Reject(ctx, "signing failed")
			tracker.fail(err)
			return
		}
		if err := session.Send(ctx, net.MessageSignature, &stx); err != nil {
			tracker.fail(err)
			return
		}

		tracker.Set(StepAwaitFinality)
		if _, err := f.receiveFinality(ctx, session, stx.ID); err != nil {
			if !models.IsCounterpartyRejectedError(err) {
				session.Reject(ctx, err.Error())
			}
			tracker.fail(err)
			return
		}
		if err := session.Send(ctx, net.MessageAck, nil); err != nil {
			log.Warningf("Failed to acknowledge transaction %s to %s: %s", stx.ID, session.Peer(), err)
		}

		tracker.Set(StepDone)
	}
}

func (f *Flows) validateProposal(initiator peer.ID, stx *models.SignedTransaction, check proposalCheck) error {
	if err := stx.CheckID(); err != nil {
		return rejectProposal(err.Error())
	}
	if _, ok := stx.SignatureBy(initiator); !ok {
		return rejectProposal("proposal is not signed by the initiator")
	}
	if err := stx.VerifySignatures(); err != nil {
		return rejectProposal(err.Error())
	}
	if err := contracts.Verify(&stx.Tx); err != nil {
		return err
	}
	required := false
	for _, s := range stx.Tx.RequiredSigners() {
		if s == f.cfg.Identity {
			required = true
		}
	}
	if !required {
		return rejectProposal("we are not a required signer of the proposal")
	}
	if err := f.checkOwnInputs(&stx.Tx); err != nil {
		return err
	}
	return check(f.cfg.Identity, initiator, &stx.Tx)
}

// checkOwnInputs requires every input we participate in to be the current
// unconsumed version of that state in our own vault, byte for byte. An
// input the initiator made up, or an old version of one, is rejected.
func (f *Flows) checkOwnInputs(tx *models.Transaction) error {
	for _, in := range tx.Inputs {
		if !in.State.Data.IsParticipant(f.cfg.Identity) {
			continue
		}
		current, err := f.cfg.Vault.FindUnconsumed(in.State.Data.LinearID(), in.State.Data.Contract)
		if err != nil || current.Ref != in.Ref {
			return rejectProposal(fmt.Sprintf("input %s is not an unconsumed state in our vault", in.Ref))
		}
		ours, err := json.Marshal(current.State)
		if err != nil {
			return err
		}
		theirs, err := json.Marshal(in.State)
		if err != nil {
			return err
		}
		if !bytes.Equal(ours, theirs) {
			return rejectProposal(fmt.Sprintf("input %s does not match the state in our vault", in.Ref))
		}
	}
	return nil
}
