package events

import (
	"testing"
	"time"
)

func TestBus_SubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	sub1, err := bus.Subscribe(&TransactionFinalized{})
	if err != nil {
		t.Fatal(err)
	}
	sub2, err := bus.Subscribe(&FlowProgress{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		bus.Emit(&TransactionFinalized{TxID: "abc"})
		bus.Emit(&FlowProgress{Flow: "IssueWallet", Step: "Generate"})
	}()

	e1 := <-sub1.Out()
	tf, ok := e1.(*TransactionFinalized)
	if !ok {
		t.Fatal("Event is wrong type")
	}
	if tf.TxID != "abc" {
		t.Errorf("Expected txID abc, got %s", tf.TxID)
	}

	e2 := <-sub2.Out()
	if _, ok := e2.(*FlowProgress); !ok {
		t.Error("Event is wrong type")
	}

	if err := sub1.Close(); err != nil {
		t.Error(err)
	}
	if err := sub2.Close(); err != nil {
		t.Error(err)
	}
}

func TestBus_MultipleTypes(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe([]interface{}{&PeerConnected{}, &PeerDisconnected{}})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	bus.Emit(&PeerConnected{})
	bus.Emit(&PeerDisconnected{})

	if _, ok := (<-sub.Out()).(*PeerConnected); !ok {
		t.Error("Expected PeerConnected first")
	}
	if _, ok := (<-sub.Out()).(*PeerDisconnected); !ok {
		t.Error("Expected PeerDisconnected second")
	}
}

func TestBus_MatchField(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(&FlowProgress{}, MatchField("FlowID", "b"))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	bus.Emit(&FlowProgress{FlowID: "a", Step: "Generate"})
	bus.Emit(&FlowProgress{FlowID: "b", Step: "Verify"})

	select {
	case e := <-sub.Out():
		if e.(*FlowProgress).FlowID != "b" {
			t.Errorf("Expected flowID b, got %s", e.(*FlowProgress).FlowID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting on channel")
	}

	select {
	case e := <-sub.Out():
		t.Errorf("Unexpected event %v", e)
	default:
	}
}

func TestBus_NonPointer(t *testing.T) {
	bus := NewBus()
	if _, err := bus.Subscribe(FlowProgress{}); err == nil {
		t.Error("Expected error subscribing with non-pointer type")
	}
}

func TestBus_CloseUnblocksEmit(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(&FlowProgress{}, BufSize(0))
	if err != nil {
		t.Fatal(err)
	}

	emitted := make(chan struct{})
	go func() {
		bus.Emit(&FlowProgress{})
		close(emitted)
	}()

	time.Sleep(time.Millisecond * 50)
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-emitted:
	case <-time.After(time.Second * 5):
		t.Fatal("Emit still blocked after Close")
	}
}
