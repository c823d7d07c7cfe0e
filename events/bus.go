package events

import "io"

// SubscriptionOpt configures a subscription. See BufSize and MatchField.
type SubscriptionOpt = func(interface{}) error

// Subscription receives the events of one or more event types on a
// single channel.
type Subscription interface {
	io.Closer

	// Out returns the channel events are delivered on.
	Out() <-chan interface{}
}

// Bus delivers events to subscribers by the concrete type of the event.
//
// Subscribe takes a pointer to an event type, or a []interface{} of
// pointers to subscribe to several types over one channel:
//
//  sub, err := bus.Subscribe(&events.TransactionFinalized{})
//  defer sub.Close()
//  for e := range sub.Out() {
//    tx := e.(*events.TransactionFinalized)
//    [...]
//  }
//
// Emit blocks while a subscriber's channel is full so subscribers must
// keep draining their channel until Close.
type Bus interface {
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)
	Emit(evt interface{})
}
