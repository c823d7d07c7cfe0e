package events

// TransactionFinalized is emitted after a finalized transaction has been
// recorded in the local vault.
type TransactionFinalized struct {
	TxID     string
	Notary   string
	Commands []string
	// Initiated is true when this node ran the initiating flow.
	Initiated bool
}

// FlowProgress is emitted whenever a flow or acceptor enters a new step.
type FlowProgress struct {
	FlowID string
	Flow   string
	Step   string
}

// ProposalRejected is emitted when the acceptor refuses to sign a
// proposal, or the initiator receives a refusal.
type ProposalRejected struct {
	TxID   string
	Flow   string
	Peer   string
	Reason string
}
