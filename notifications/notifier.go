package notifications

import (
	"github.com/cpacia/iouledger/database"
	"github.com/cpacia/iouledger/events"
	"github.com/cpacia/iouledger/models"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("NOTIF")

type notificationWrapper struct {
	Notification interface{} `json:"notification"`
}

type flowProgressWrapper struct {
	FlowProgress interface{} `json:"flowProgress"`
}

// notifierStarted is emitted once the notifier has subscribed to the bus.
type notifierStarted struct{}

// Notifier manages translating events into notifications and
// sending them to websockets.
type Notifier struct {
	notifyFunc func(interface{}) error
	bus        events.Bus
	db         database.Database
	shutdown   chan struct{}
}

// NewNotifier returns a new notifer.
func NewNotifier(bus events.Bus, db database.Database, notifyFunc func(interface{}) error) *Notifier {
	return &Notifier{
		bus:        bus,
		db:         db,
		notifyFunc: notifyFunc,
		shutdown:   make(chan struct{}),
	}
}

// Start will start up the notifier. This should use it's own goroutine.
func (n *Notifier) Start() {
	notificationSub, err := n.bus.Subscribe([]interface{}{
		&events.TransactionFinalized{},
		&events.ProposalRejected{},
	})
	if err != nil {
		log.Errorf("Error subscribing to events: %s", err)
		return
	}
	defer notificationSub.Close()

	progressSub, err := n.bus.Subscribe(&events.FlowProgress{})
	if err != nil {
		log.Errorf("Error subscribing to events: %s", err)
		return
	}
	defer progressSub.Close()

	n.bus.Emit(&notifierStarted{})

	for {
		select {
		case event := <-notificationSub.Out():
			var notifs []events.TypedNotification
			switch e := event.(type) {
			case *events.TransactionFinalized:
				notifs, err = n.transactionNotifications(e)
				if err != nil {
					log.Errorf("Error building notifications for transaction %s: %s", e.TxID, err)
					continue
				}
			case *events.ProposalRejected:
				notifs = append(notifs, &events.RejectionNotification{
					TxID:   e.TxID,
					Flow:   e.Flow,
					PeerID: e.Peer,
					Reason: e.Reason,
				})
			}

			for _, notif := range notifs {
				if err := n.save(notif); err != nil {
					log.Errorf("Error saving notification to the database: %s", err)
					continue
				}
				if err := n.notifyFunc(notificationWrapper{notif}); err != nil {
					log.Errorf("Error sending notification: %s", err)
				}
			}
		case event := <-progressSub.Out():
			if err := n.notifyFunc(flowProgressWrapper{event}); err != nil {
				log.Errorf("Error sending notification: %s", err)
			}
		case <-n.shutdown:
			return
		}
	}
}

// Stop shuts down the notifier.
func (n *Notifier) Stop() {
	close(n.shutdown)
}

func (n *Notifier) save(notif events.TypedNotification) error {
	id := models.NewNotificationID()
	switch nt := notif.(type) {
	case *events.WalletNotification:
		nt.ID = id
	case *events.IOUNotification:
		nt.ID = id
	case *events.RejectionNotification:
		nt.ID = id
	}
	rec, err := models.NewNotificationRecord(notif)
	if err != nil {
		return err
	}
	rec.ID = id
	return n.db.Update(func(tx database.Tx) error {
		return tx.Save(rec)
	})
}

// transactionNotifications loads a recorded transaction and describes
// the wallets and IOUs it touched.
func (n *Notifier) transactionNotifications(e *events.TransactionFinalized) ([]events.TypedNotification, error) {
	var rec models.TransactionRecord
	err := n.db.View(func(tx database.Tx) error {
		return tx.Read().Where("id = ?", e.TxID).First(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	ft, err := rec.Transaction()
	if err != nil {
		return nil, err
	}

	var notifs []events.TypedNotification
	for _, cmd := range ft.Tx.Commands {
		switch cmd.Type {
		case models.CommandWalletIssue, models.CommandWalletUpdate, models.CommandWalletSettle:
			for _, out := range ft.Tx.Outputs {
				if out.Data.Contract != models.ContractWallet {
					continue
				}
				w := out.Data.Wallet
				notifs = append(notifs, &events.WalletNotification{
					TxID:         ft.ID,
					Command:      string(cmd.Type),
					LinearID:     w.LinearID.String(),
					Amount:       w.Amount.String(),
					LastMovement: w.LastMovement,
				})
			}
		case models.CommandIOUIssue, models.CommandIOUDelete:
			states := ft.Tx.Outputs
			if cmd.Type == models.CommandIOUDelete {
				states = nil
				for _, in := range ft.Tx.Inputs {
					states = append(states, in.State)
				}
			}
			for _, s := range states {
				if s.Data.Contract != models.ContractIOU {
					continue
				}
				iou := s.Data.IOU
				notifs = append(notifs, &events.IOUNotification{
					TxID:     ft.ID,
					Command:  string(cmd.Type),
					LinearID: iou.LinearID.String(),
					Lender:   iou.Lender.Pretty(),
					Borrower: iou.Borrower.Pretty(),
					Value:    iou.Value.String(),
				})
			}
		}
	}
	return notifs, nil
}
