// Package vault stores every version of the states this node participates
// in, along with the finalized transactions that produced them.
package vault

import (
	"errors"
	"time"

	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/op/go-logging"
	"gorm.io/gorm"
)

var log = logging.MustGetLogger("VALT")

// ErrTransactionNotFound is returned by GetTransaction for unknown ids.
var ErrTransactionNotFound = errors.New("transaction not found")

// Vault is the node's view of the ledger. Rows are append only; recording
// a transaction marks its inputs consumed and adds the outputs this node
// participates in.
type Vault struct {
	db  database.Database
	bus events.Bus
}

// New returns a vault backed by db. Recorded transactions are announced
// on bus once committed.
func New(db database.Database, bus events.Bus) *Vault {
	return &Vault{db: db, bus: bus}
}

// FindUnconsumed returns the single unconsumed version of the state with
// the given linear ID. Zero matches is a *models.NotFoundError and more
// than one a *models.AmbiguousStateError.
func (v *Vault) FindUnconsumed(linearID uuid.UUID, contract models.ContractType) (*models.StateAndRef, error) {
	var records []models.StateRecord
	err := v.db.View(func(tx database.Tx) error {
		return tx.Read().
			Where("linear_id = ? AND contract = ? AND consumed = ?", linearID.String(), string(contract), false).
			Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, &models.NotFoundError{LinearID: linearID, Contract: contract}
	case 1:
		sr, err := records[0].StateAndRef()
		if err != nil {
			return nil, err
		}
		return &sr, nil
	default:
		return nil, &models.AmbiguousStateError{LinearID: linearID, Contract: contract, Matches: len(records)}
	}
}

// ListByOwner returns the states of the given contract held by owner,
// newest first. For IOUs the owner is the lender.
func (v *Vault) ListByOwner(owner peer.ID, contract models.ContractType, status models.StateStatus) ([]models.StateAndRef, error) {
	return v.list(status, "owner = ? AND contract = ?", owner.Pretty(), string(contract))
}

// ListByParticipant returns the states of the given contract that id
// participates in, as owner or counterparty, newest first.
func (v *Vault) ListByParticipant(id peer.ID, contract models.ContractType, status models.StateStatus) ([]models.StateAndRef, error) {
	return v.list(status, "(owner = ? OR counterparty = ?) AND contract = ?", id.Pretty(), id.Pretty(), string(contract))
}

// ListStates returns every state of the given contract, newest first.
func (v *Vault) ListStates(contract models.ContractType, status models.StateStatus) ([]models.StateAndRef, error) {
	return v.list(status, "contract = ?", string(contract))
}

// History returns every recorded version of a linear state, newest first.
func (v *Vault) History(linearID uuid.UUID) ([]models.StateAndRef, error) {
	return v.list(models.StatusAll, "linear_id = ?", linearID.String())
}

func (v *Vault) list(status models.StateStatus, query string, args ...interface{}) ([]models.StateAndRef, error) {
	var records []models.StateRecord
	err := v.db.View(func(tx database.Tx) error {
		db := tx.Read().Where(query, args...)
		switch status {
		case models.StatusUnconsumed:
			db = db.Where("consumed = ?", false)
		case models.StatusConsumed:
			db = db.Where("consumed = ?", true)
		}
		return db.Order("recorded_at desc").Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	ret := make([]models.StateAndRef, 0, len(records))
	for _, rec := range records {
		sr, err := rec.StateAndRef()
		if err != nil {
			return nil, err
		}
		ret = append(ret, sr)
	}
	return ret, nil
}

// RecordTransaction stores a finalized transaction. Inputs known to the
// vault are marked consumed and every output me participates in is added.
// Recording the same transaction twice is a no-op.
func (v *Vault) RecordTransaction(ft *models.FinalizedTransaction, me peer.ID) error {
	txRec, err := models.NewTransactionRecord(ft)
	if err != nil {
		return err
	}

	return v.db.Update(func(tx database.Tx) error {
		var existing models.TransactionRecord
		err := tx.Read().Where("id = ?", ft.ID).First(&existing).Error
		if err == nil {
			log.Debugf("Transaction %s already recorded", ft.ID)
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		consumedAt := ft.Timestamp
		if consumedAt.IsZero() {
			consumedAt = time.Now()
		}
		for _, in := range ft.Tx.Inputs {
			where := map[string]interface{}{"ref = ?": in.Ref.String()}
			updates := map[string]interface{}{
				"consumed":     true,
				"consuming_tx": ft.ID,
				"consumed_at":  consumedAt,
			}
			for key, value := range updates {
				if err := tx.Update(key, value, where, &models.StateRecord{}); err != nil {
					return err
				}
			}
		}

		for i, out := range ft.Tx.Outputs {
			if !out.Data.IsParticipant(me) {
				continue
			}
			rec, err := models.NewStateRecord(models.StateAndRef{
				State: out,
				Ref:   models.OutputRef(ft.ID, i),
			}, consumedAt)
			if err != nil {
				return err
			}
			if err := tx.Create(rec); err != nil {
				return err
			}
		}

		if err := tx.Create(txRec); err != nil {
			return err
		}

		commands := make([]string, 0, len(ft.Tx.Commands))
		for _, cmd := range ft.Tx.Commands {
			commands = append(commands, string(cmd.Type))
		}
		initiated := len(ft.Signatures) > 0 && ft.Signatures[0].Signer == me
		tx.RegisterCommitHook(func() {
			log.Infof("Recorded transaction %s %v", ft.ID, commands)
			if v.bus != nil {
				v.bus.Emit(&events.TransactionFinalized{
					TxID:      ft.ID,
					Notary:    ft.Tx.Notary.Pretty(),
					Commands:  commands,
					Initiated: initiated,
				})
			}
		})
		return nil
	})
}

// GetTransaction returns a finalized transaction by id.
func (v *Vault) GetTransaction(id string) (*models.FinalizedTransaction, error) {
	var rec models.TransactionRecord
	err := v.db.View(func(tx database.Tx) error {
		return tx.Read().Where("id = ?", id).First(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	} else if err != nil {
		return nil, err
	}
	return rec.Transaction()
}
