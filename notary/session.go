package notary

import (
	"context"
	"errors"
	"time"

	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
)

// FlowNotarize is the session flow name notary requests arrive on.
const FlowNotarize = "Notarize"

const (
	errorKindValidation = "validation"
	errorKindConflict   = "conflict"
	errorKindInternal   = "internal"
)

const sessionTimeout = time.Minute

// notaryError is the wire form of a failed notarization. It carries enough
// to rebuild the typed error on the client.
type notaryError struct {
	Kind        string             `json:"kind"`
	Command     models.CommandType `json:"command,omitempty"`
	Rule        string             `json:"rule,omitempty"`
	Ref         string             `json:"ref,omitempty"`
	ConsumingTx string             `json:"consumingTx,omitempty"`
	Message     string             `json:"message,omitempty"`
}

func newNotaryError(err error) *notaryError {
	var (
		verr *models.ValidationError
		cerr *models.NotarizationConflictError
	)
	switch {
	case errors.As(err, &verr):
		return &notaryError{Kind: errorKindValidation, Command: verr.Command, Rule: verr.Rule}
	case errors.As(err, &cerr):
		return &notaryError{Kind: errorKindConflict, Ref: cerr.Ref.String(), ConsumingTx: cerr.ConsumingTx}
	default:
		return &notaryError{Kind: errorKindInternal, Message: err.Error()}
	}
}

func (e *notaryError) toError() error {
	switch e.Kind {
	case errorKindValidation:
		return &models.ValidationError{Command: e.Command, Rule: e.Rule}
	case errorKindConflict:
		ref, err := models.ParseStateRef(e.Ref)
		if err != nil {
			return err
		}
		return &models.NotarizationConflictError{Ref: ref, ConsumingTx: e.ConsumingTx}
	default:
		return errors.New(e.Message)
	}
}

// Register starts answering notarization requests on the network service.
func (s *Service) Register(ns *net.NetworkService) {
	ns.RegisterSessionHandler(FlowNotarize, s.handleSession)
}

func (s *Service) handleSession(ctx context.Context, session *net.Session) {
	ctx, cancel := context.WithTimeout(ctx, sessionTimeout)
	defer cancel()

	var stx models.SignedTransaction
	if err := session.ReceiveType(ctx, net.MessageNotarize, &stx); err != nil {
		log.Errorf("Error reading notarization request from %s: %s", session.Peer(), err)
		return
	}
	log.Debugf("Received notarization request for %s from %s", stx.ID, session.Peer())

	ft, err := s.Finalize(ctx, &stx)
	if err != nil {
		if err := session.Send(ctx, net.MessageNotaryError, newNotaryError(err)); err != nil {
			log.Errorf("Error sending notary error to %s: %s", session.Peer(), err)
		}
		return
	}
	if err := session.Send(ctx, net.MessageFinalized, ft); err != nil {
		log.Errorf("Error sending finalized transaction to %s: %s", session.Peer(), err)
	}
}
