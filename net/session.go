package net

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cpacia/iouledger/models"
	ctxio "github.com/jbenet/go-context/io"
	"github.com/libp2p/go-libp2p-core/network"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/libp2p/go-msgio"
)

// Session is an ordered, bidirectional conversation between two flows
// over a single libp2p stream. Frames are varint length prefixed JSON
// messages and arrive in the order they were sent.
type Session struct {
	flow   string
	remote peer.ID
	stream network.Stream
	writer msgio.WriteCloser

	readMtx  sync.Mutex
	writeMtx sync.Mutex
}

func newSession(flow string, s network.Stream) *Session {
	return &Session{
		flow:   flow,
		remote: s.Conn().RemotePeer(),
		stream: s,
		writer: msgio.NewVarintWriter(s),
	}
}

// Flow returns the name of the flow this session belongs to.
func (s *Session) Flow() string {
	return s.flow
}

// Peer returns the counterparty of the session.
func (s *Session) Peer() peer.ID {
	return s.remote
}

// Send writes a single message. A cancelled context resets the stream.
func (s *Session) Send(ctx context.Context, typ MessageType, payload interface{}) error {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *Session) send(ctx context.Context, msg *Message) error {
	ser, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.writeMtx.Lock()
	defer s.writeMtx.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.writer.WriteMsg(ser)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			s.stream.Reset()
			return &models.TransportError{Peer: s.remote, Err: err}
		}
		return nil
	case <-ctx.Done():
		s.stream.Reset()
		return &models.TransportError{Peer: s.remote, Err: ctx.Err()}
	}
}

// Receive blocks until the next message arrives or ctx is done.
func (s *Session) Receive(ctx context.Context) (*Message, error) {
	s.readMtx.Lock()
	defer s.readMtx.Unlock()

	reader := msgio.NewVarintReaderSize(ctxio.NewReader(ctx, s.stream), network.MessageSizeMax)
	ser, err := reader.ReadMsg()
	if err != nil {
		s.stream.Reset()
		return nil, &models.TransportError{Peer: s.remote, Err: err}
	}
	defer reader.ReleaseMsg(ser)

	msg := new(Message)
	if err := json.Unmarshal(ser, msg); err != nil {
		return nil, &models.TransportError{Peer: s.remote, Err: err}
	}
	return msg, nil
}

// ReceiveType receives the next message and decodes it into out. A
// MessageReject is returned as a *models.CounterpartyRejectedError and
// any other unexpected type as ErrUnexpectedMessage.
func (s *Session) ReceiveType(ctx context.Context, typ MessageType, out interface{}) error {
	msg, err := s.Receive(ctx)
	if err != nil {
		return err
	}
	if msg.Type == MessageReject && typ != MessageReject {
		var rej Rejection
		if err := msg.Decode(&rej); err != nil {
			return err
		}
		return &models.CounterpartyRejectedError{Counterparty: s.remote, Reason: rej.Reason}
	}
	if msg.Type != typ {
		return fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedMessage, typ, msg.Type)
	}
	if out == nil {
		return nil
	}
	return msg.Decode(out)
}

// Reject tells the counterparty why the session is being abandoned.
func (s *Session) Reject(ctx context.Context, reason string) error {
	return s.Send(ctx, MessageReject, Rejection{Reason: reason})
}

// Close closes the session for writing and waits for nothing further.
func (s *Session) Close() error {
	return s.stream.Close()
}

// Reset aborts the session in both directions.
func (s *Session) Reset() error {
	return s.stream.Reset()
}
