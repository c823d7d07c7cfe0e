// Package notary finalizes fully signed transactions. A notary keeps a
// registry of every input it has seen consumed and refuses any transaction
// that would consume one of them again.
package notary

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cpacia/iouledger/contracts"
	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/models"
	"github.com/libp2p/go-libp2p-core/crypto"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var log = logging.MustGetLogger("NTRY")

const (
	ruleIDMismatch     = "transaction id does not match contents"
	ruleWrongNotary    = "transaction is not assigned to this notary"
	ruleInputNotary    = "input is not governed by this notary"
	ruleDuplicateInput = "input consumed twice in the same transaction"
)

// Service is the notarization service run by notary nodes.
type Service struct {
	db  database.Database
	sk  crypto.PrivKey
	id  peer.ID
	mtx sync.Mutex
	now func() time.Time
}

// NewService returns a notary signing with sk and keeping its registry in db.
func NewService(db database.Database, sk crypto.PrivKey) (*Service, error) {
	id, err := peer.IDFromPrivateKey(sk)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:  db,
		sk:  sk,
		id:  id,
		now: time.Now,
	}, nil
}

// Identity returns the peer ID of the notary.
func (s *Service) Identity() peer.ID {
	return s.id
}

// Finalize checks the transaction and, if none of its inputs have been
// consumed before, records them as consumed and returns the transaction
// with the notary's signature and timestamp.
//
// Submitting a transaction that was already finalized returns the
// original result. Any other transaction spending one of its inputs
// fails with a *models.NotarizationConflictError.
func (s *Service) Finalize(ctx context.Context, stx *models.SignedTransaction) (*models.FinalizedTransaction, error) {
	if err := s.validate(stx); err != nil {
		log.Warningf("Rejected transaction %s: %s", stx.ID, err)
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	var ft *models.FinalizedTransaction
	err := s.db.Update(func(tx database.Tx) error {
		var existing models.NotarizedTransaction
		err := tx.Read().Where("id = ?", stx.ID).First(&existing).Error
		if err == nil {
			ft = new(models.FinalizedTransaction)
			return json.Unmarshal(existing.Serialized, ft)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		for _, in := range stx.Tx.Inputs {
			var input models.NotarizedInput
			err := tx.Read().Where("ref = ?", in.Ref.String()).First(&input).Error
			if err == nil {
				return &models.NotarizationConflictError{Ref: in.Ref, ConsumingTx: input.ConsumingTx}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		ts := s.now().UTC()
		sig, err := s.sk.Sign(models.NotarySigningData(stx.ID, ts))
		if err != nil {
			return err
		}
		ft = &models.FinalizedTransaction{
			SignedTransaction: *stx,
			NotarySignature:   models.TransactionSignature{Signer: s.id, Signature: sig},
			Timestamp:         ts,
		}

		for _, in := range stx.Tx.Inputs {
			if err := tx.Create(&models.NotarizedInput{
				Ref:         in.Ref.String(),
				ConsumingTx: stx.ID,
				Timestamp:   ts,
			}); err != nil {
				return err
			}
		}

		ser, err := json.Marshal(ft)
		if err != nil {
			return err
		}
		return tx.Create(&models.NotarizedTransaction{
			ID:         stx.ID,
			Timestamp:  ts,
			Serialized: ser,
		})
	})
	if err != nil {
		if models.IsNotarizationConflictError(err) {
			log.Warningf("Refused transaction %s: %s", stx.ID, err)
		}
		return nil, err
	}
	log.Infof("Finalized transaction %s", ft.ID)
	return ft, nil
}

func (s *Service) validate(stx *models.SignedTransaction) error {
	if err := stx.CheckID(); err != nil {
		return &models.ValidationError{Rule: ruleIDMismatch}
	}
	if stx.Tx.Notary != s.id {
		return &models.ValidationError{Rule: ruleWrongNotary}
	}
	if err := contracts.Verify(&stx.Tx); err != nil {
		return err
	}
	if err := stx.VerifyRequiredSignatures(); err != nil {
		return &models.ValidationError{Rule: err.Error()}
	}
	seen := make(map[models.StateRef]bool)
	for _, in := range stx.Tx.Inputs {
		if in.State.Notary != s.id {
			return &models.ValidationError{Rule: fmt.Sprintf("%s: %s", ruleInputNotary, in.Ref)}
		}
		if seen[in.Ref] {
			return &models.ValidationError{Rule: fmt.Sprintf("%s: %s", ruleDuplicateInput, in.Ref)}
		}
		seen[in.Ref] = true
	}
	return nil
}
