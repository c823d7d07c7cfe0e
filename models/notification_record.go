package models

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cpacia/iouledger/events"
)

// NotificationRecord is a notification saved to the database. The
// notification itself is kept serialized so any notification type fits
// the same table. It is sent over the websocket API in this format.
type NotificationRecord struct {
	ID         string          `gorm:"primaryKey" json:"-"`
	Timestamp  time.Time       `gorm:"index" json:"timestamp"`
	IsRead     bool            `json:"read"`
	Serialized json.RawMessage `json:"notification"`
	Type       string          `json:"type"`
}

// NewNotificationRecord wraps the notification in a record with a new ID
// and timestamp.
func NewNotificationRecord(notification events.TypedNotification) (*NotificationRecord, error) {
	out, err := json.Marshal(notification)
	if err != nil {
		return nil, err
	}

	return &NotificationRecord{
		ID:         NewNotificationID(),
		Timestamp:  time.Now(),
		Type:       notification.Type(),
		Serialized: out,
	}, nil
}

// Notification decodes the stored notification.
func (n *NotificationRecord) Notification() (events.TypedNotification, error) {
	var notif events.TypedNotification
	switch n.Type {
	case "WalletNotification":
		notif = &events.WalletNotification{}
	case "IOUNotification":
		notif = &events.IOUNotification{}
	case "RejectionNotification":
		notif = &events.RejectionNotification{}
	case "TestNotification":
		notif = &events.TestNotification{}
	default:
		return nil, fmt.Errorf("unknown notification type: %s", n.Type)
	}
	if err := json.Unmarshal(n.Serialized, notif); err != nil {
		return nil, err
	}
	return notif, nil
}

// NewNotificationID returns a random notification ID.
func NewNotificationID() string {
	r := make([]byte, 20)
	rand.Read(r)
	return base64.StdEncoding.EncodeToString(r)
}
