package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	peer "github.com/libp2p/go-libp2p-core/peer"
)

// ValidationError is returned when a transaction violates a contract rule.
// Rule is the human readable rule that failed and is the audit trail of
// why the transaction was rejected.
type ValidationError struct {
	Command CommandType
	Rule    string
}

func (e *ValidationError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("contract verification failed: %s", e.Rule)
	}
	return fmt.Sprintf("contract verification failed for %s: %s", e.Command, e.Rule)
}

// NotFoundError is returned when no unconsumed state matches a linear ID.
type NotFoundError struct {
	LinearID uuid.UUID
	Contract ContractType
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no unconsumed %s state with linear id %s found", e.Contract, e.LinearID)
}

// AmbiguousStateError is returned when more than one unconsumed state
// matches a linear ID.
type AmbiguousStateError struct {
	LinearID uuid.UUID
	Contract ContractType
	Matches  int
}

func (e *AmbiguousStateError) Error() string {
	return fmt.Sprintf("%d unconsumed %s states with linear id %s found, expected one", e.Matches, e.Contract, e.LinearID)
}

// AuthorizationError is returned when the invoking identity does not hold
// the role required on a state.
type AuthorizationError struct {
	Role     string
	Expected peer.ID
	Actual   peer.ID
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is different from %s: only the %s can perform this operation", e.Actual.Pretty(), e.Expected.Pretty(), e.Role)
}

// CounterpartyRejectedError is returned when a counterparty refused to sign.
type CounterpartyRejectedError struct {
	Counterparty peer.ID
	Reason       string
}

func (e *CounterpartyRejectedError) Error() string {
	return fmt.Sprintf("counterparty %s rejected the transaction: %s", e.Counterparty.Pretty(), e.Reason)
}

// NotarizationConflictError is returned by the notary when an input has
// already been consumed by another transaction.
type NotarizationConflictError struct {
	Ref         StateRef
	ConsumingTx string
}

func (e *NotarizationConflictError) Error() string {
	return fmt.Sprintf("notarization conflict: input %s already consumed by transaction %s", e.Ref, e.ConsumingTx)
}

// TransportError wraps a messaging or notary availability failure. These
// are transient and the whole flow may be retried.
type TransportError struct {
	Peer peer.ID
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error with %s: %s", e.Peer.Pretty(), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InconsistentNotaryError is returned when an input recorded against a
// different notary could not be moved to the transaction notary.
type InconsistentNotaryError struct {
	Ref    StateRef
	Notary peer.ID
	Target peer.ID
	Err    error
}

func (e *InconsistentNotaryError) Error() string {
	msg := fmt.Sprintf("input %s is recorded against notary %s, transaction notary is %s", e.Ref, e.Notary.Pretty(), e.Target.Pretty())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InconsistentNotaryError) Unwrap() error {
	return e.Err
}

// IsValidationError returns whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFoundError returns whether err is, or wraps, a NotFoundError.
func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsAmbiguousStateError returns whether err is, or wraps, an AmbiguousStateError.
func IsAmbiguousStateError(err error) bool {
	var e *AmbiguousStateError
	return errors.As(err, &e)
}

// IsAuthorizationError returns whether err is, or wraps, an AuthorizationError.
func IsAuthorizationError(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

// IsCounterpartyRejectedError returns whether err is, or wraps, a
// CounterpartyRejectedError.
func IsCounterpartyRejectedError(err error) bool {
	var e *CounterpartyRejectedError
	return errors.As(err, &e)
}

// IsNotarizationConflictError returns whether err is, or wraps, a
// NotarizationConflictError.
func IsNotarizationConflictError(err error) bool {
	var e *NotarizationConflictError
	return errors.As(err, &e)
}

// IsTransportError returns whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsInconsistentNotaryError returns whether err is, or wraps, an
// InconsistentNotaryError.
func IsInconsistentNotaryError(err error) bool {
	var e *InconsistentNotaryError
	return errors.As(err, &e)
}
