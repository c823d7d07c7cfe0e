package net

import "encoding/json"

// MessageType identifies the payload of a session frame.
type MessageType string

const (
	// MessageOpen is the first frame of every session and names the flow.
	MessageOpen MessageType = "OPEN"

	// MessageProposal carries a transaction signed by the initiator.
	MessageProposal MessageType = "PROPOSAL"

	// MessageSignature carries the transaction countersigned by the
	// acceptor.
	MessageSignature MessageType = "SIGNATURE"

	// MessageFinalized carries the notarized transaction.
	MessageFinalized MessageType = "FINALIZED"

	// MessageAck confirms the finalized transaction was recorded.
	MessageAck MessageType = "ACK"

	// MessageReject ends the session with a reason.
	MessageReject MessageType = "REJECT"

	// MessageNotarize asks a notary to finalize a transaction.
	MessageNotarize MessageType = "NOTARIZE"

	// MessageNotaryError carries a typed notarization failure.
	MessageNotaryError MessageType = "NOTARY_ERROR"
)

// Message is a single frame on a session. Payload is the JSON encoding of
// the type specific body.
type Message struct {
	Type    MessageType     `json:"type"`
	Flow    string          `json:"flow,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Rejection is the payload of a MessageReject.
type Rejection struct {
	Reason string `json:"reason"`
}

// NewMessage encodes payload into a message of the given type. A nil
// payload leaves the message body empty.
func NewMessage(typ MessageType, payload interface{}) (*Message, error) {
	m := &Message{Type: typ}
	if payload != nil {
		ser, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		m.Payload = ser
	}
	return m, nil
}

// Decode unmarshals the payload into out.
func (m *Message) Decode(out interface{}) error {
	return json.Unmarshal(m.Payload, out)
}
