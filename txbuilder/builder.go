// Package txbuilder assembles unsigned transactions around a single
// notary.
package txbuilder

import (
	"context"
	"errors"
	"time"

	"github.com/cpacia/iouledger/models"
	peer "github.com/libp2p/go-libp2p-core/peer"
)

// ErrNoNotary is returned when a transaction has neither inputs nor an
// explicit notary to pin.
var ErrNoNotary = errors.New("no notary specified for a transaction without inputs")

// ErrNoCommands is returned when Build is called without commands.
var ErrNoCommands = errors.New("transaction must have at least one command")

// NotaryChanger moves a state to a new notary. It returns the ref of the
// re-assigned state once the change has been finalized.
type NotaryChanger interface {
	ChangeNotary(ctx context.Context, input models.StateAndRef, newNotary peer.ID) (*models.StateAndRef, error)
}

// Builder builds transactions. The zero value has no notary changer and
// fails on any input held at a foreign notary.
type Builder struct {
	changer  NotaryChanger
	validate func(tx *models.Transaction) error
	now      func() time.Time
}

// Option configures a Builder.
type Option func(b *Builder)

// WithValidator has Build check the transaction it is about to assemble
// before any input is moved to another notary. A notary change is final
// once it runs.
func WithValidator(validate func(tx *models.Transaction) error) Option {
	return func(b *Builder) {
		b.validate = validate
	}
}

// NewBuilder returns a Builder that uses changer, which may be nil, to
// re-assign inputs held at a different notary.
func NewBuilder(changer NotaryChanger, opts ...Option) *Builder {
	b := &Builder{changer: changer, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build pins one notary and returns the unsigned transaction. If notary is
// empty the notary of the first input is used. Inputs held elsewhere are
// moved through the NotaryChanger before assembly, and the returned
// transaction references their new refs. With a validator set, nothing is
// moved unless the transaction passes validation as if every input were
// already at the pinned notary.
func (b *Builder) Build(ctx context.Context, commands []models.Command, inputs []models.StateAndRef, outputs []models.ContractState, notary peer.ID) (*models.Transaction, error) {
	if len(commands) == 0 {
		return nil, ErrNoCommands
	}
	if notary == "" {
		if len(inputs) == 0 {
			return nil, ErrNoNotary
		}
		notary = inputs[0].State.Notary
	}

	foreign := false
	draft := make([]models.StateAndRef, 0, len(inputs))
	for _, in := range inputs {
		if in.State.Notary != notary {
			foreign = true
			in.State.Notary = notary
		}
		draft = append(draft, in)
	}
	if foreign && b.validate != nil {
		if err := b.validate(b.assemble(commands, draft, outputs, notary)); err != nil {
			return nil, err
		}
	}

	pinned := make([]models.StateAndRef, 0, len(inputs))
	for _, in := range inputs {
		if in.State.Notary == notary {
			pinned = append(pinned, in)
			continue
		}
		moved, err := b.changeNotary(ctx, in, notary)
		if err != nil {
			return nil, err
		}
		pinned = append(pinned, *moved)
	}
	return b.assemble(commands, pinned, outputs, notary), nil
}

func (b *Builder) assemble(commands []models.Command, inputs []models.StateAndRef, outputs []models.ContractState, notary peer.ID) *models.Transaction {
	tx := &models.Transaction{
		Inputs:    inputs,
		Outputs:   make([]models.TransactionState, 0, len(outputs)),
		Commands:  commands,
		Notary:    notary,
		CreatedAt: b.timestamp(),
	}
	for _, out := range outputs {
		tx.Outputs = append(tx.Outputs, models.TransactionState{Data: out, Notary: notary})
	}
	return tx
}

// BuildNotaryChange returns the transaction that moves input to newNotary.
// It is finalized by the input's current notary.
func (b *Builder) BuildNotaryChange(input models.StateAndRef, newNotary peer.ID) (*models.Transaction, error) {
	if newNotary == "" {
		return nil, ErrNoNotary
	}
	return &models.Transaction{
		Inputs: []models.StateAndRef{input},
		Outputs: []models.TransactionState{
			{Data: input.State.Data, Notary: newNotary},
		},
		Commands: []models.Command{
			{Type: models.CommandNotaryChange, Signers: input.State.Data.Participants()},
		},
		Notary:    input.State.Notary,
		CreatedAt: b.timestamp(),
	}, nil
}

func (b *Builder) changeNotary(ctx context.Context, in models.StateAndRef, target peer.ID) (*models.StateAndRef, error) {
	inconsistent := &models.InconsistentNotaryError{
		Ref:    in.Ref,
		Notary: in.State.Notary,
		Target: target,
	}
	if b.changer == nil {
		return nil, inconsistent
	}
	moved, err := b.changer.ChangeNotary(ctx, in, target)
	if err != nil {
		inconsistent.Err = err
		return nil, inconsistent
	}
	if moved.State.Notary != target {
		return nil, inconsistent
	}
	return moved, nil
}

func (b *Builder) timestamp() time.Time {
	if b.now == nil {
		return time.Now().UTC()
	}
	return b.now().UTC()
}
