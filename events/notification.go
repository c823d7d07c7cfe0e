package events

// TypedNotification is implemented by every notification that is saved
// to the database and pushed over the websocket.
type TypedNotification interface {
	// Type returns the type of the notification.
	Type() string
}

// WalletNotification reports a new wallet version in the vault.
type WalletNotification struct {
	ID           string `json:"notificationID"`
	TxID         string `json:"txID"`
	Command      string `json:"command"`
	LinearID     string `json:"linearID"`
	Amount       string `json:"amount"`
	LastMovement string `json:"lastMovement"`
}

func (n *WalletNotification) Type() string { return "WalletNotification" }

// IOUNotification reports an IOU that was issued or settled.
type IOUNotification struct {
	ID       string `json:"notificationID"`
	TxID     string `json:"txID"`
	Command  string `json:"command"`
	LinearID string `json:"linearID"`
	Lender   string `json:"lender"`
	Borrower string `json:"borrower"`
	Value    string `json:"value"`
}

func (n *IOUNotification) Type() string { return "IOUNotification" }

// RejectionNotification reports a proposal that was refused.
type RejectionNotification struct {
	ID     string `json:"notificationID"`
	TxID   string `json:"txID"`
	Flow   string `json:"flow"`
	PeerID string `json:"peerID"`
	Reason string `json:"reason"`
}

func (n *RejectionNotification) Type() string { return "RejectionNotification" }

// TestNotification is a test notification.
type TestNotification struct{}

func (n *TestNotification) Type() string { return "TestNotification" }
