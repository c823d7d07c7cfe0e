package notary

import (
	"context"

	"github.com/cpacia/iouledger/models"
	"github.com/cpacia/iouledger/net"
	"github.com/pkg/errors"
)

// Client submits transactions to the notary named by the transaction.
type Client struct {
	local *Service
	net   *net.NetworkService
}

// NewClient returns a notary client. local may be nil when this node does
// not run a notary.
func NewClient(local *Service, ns *net.NetworkService) *Client {
	return &Client{local: local, net: ns}
}

// Finalize sends the fully signed transaction to its notary and returns
// the verified result. Failures to reach the notary are wrapped in a
// *models.TransportError, rejections keep their typed error.
func (c *Client) Finalize(ctx context.Context, stx *models.SignedTransaction) (*models.FinalizedTransaction, error) {
	var (
		ft  *models.FinalizedTransaction
		err error
	)
	if c.local != nil && c.local.Identity() == stx.Tx.Notary {
		ft, err = c.local.Finalize(ctx, stx)
	} else {
		ft, err = c.finalizeRemote(ctx, stx)
	}
	if err != nil {
		return nil, err
	}

	if ft.ID != stx.ID {
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.Errorf("notary returned transaction %s for %s", ft.ID, stx.ID)}
	}
	if err := ft.CheckID(); err != nil {
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: err}
	}
	if err := ft.VerifyNotarySignature(); err != nil {
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.Wrap(err, "notary signature")}
	}
	return ft, nil
}

func (c *Client) finalizeRemote(ctx context.Context, stx *models.SignedTransaction) (*models.FinalizedTransaction, error) {
	if c.net == nil {
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.New("no network service")}
	}
	session, err := c.net.InitiateSession(ctx, stx.Tx.Notary, FlowNotarize)
	if err != nil {
		var terr *models.TransportError
		if errors.As(err, &terr) {
			return nil, err
		}
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: err}
	}
	defer session.Close()

	if err := session.Send(ctx, net.MessageNotarize, stx); err != nil {
		return nil, err
	}

	msg, err := session.Receive(ctx)
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case net.MessageFinalized:
		ft := new(models.FinalizedTransaction)
		if err := msg.Decode(ft); err != nil {
			return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.Wrap(err, "decoding finalized transaction")}
		}
		return ft, nil
	case net.MessageNotaryError:
		var nerr notaryError
		if err := msg.Decode(&nerr); err != nil {
			return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.Wrap(err, "decoding notary error")}
		}
		if nerr.Kind == errorKindInternal {
			return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: nerr.toError()}
		}
		return nil, nerr.toError()
	default:
		return nil, &models.TransportError{Peer: stx.Tx.Notary, Err: errors.Wrapf(net.ErrUnexpectedMessage, "got %s", msg.Type)}
	}
}
