package events

import (
	"errors"
	"reflect"
	"sync"
)

// basicBus routes events to subscribers keyed by the event's reflect type.
type basicBus struct {
	mtx  sync.Mutex
	subs map[reflect.Type][]*sub
}

var _ Bus = (*basicBus)(nil)

// NewBus returns an in-process event bus.
func NewBus() Bus {
	return &basicBus{
		subs: make(map[reflect.Type][]*sub),
	}
}

func (b *basicBus) Emit(event interface{}) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, s := range b.subs[reflect.TypeOf(event)] {
		if !s.matches(event) {
			continue
		}
		s.ch <- event
	}
}

func (b *basicBus) Subscribe(evtTypes interface{}, opts ...SubscriptionOpt) (Subscription, error) {
	settings := subSettingsDefault
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, err
		}
	}

	types, ok := evtTypes.([]interface{})
	if !ok {
		types = []interface{}{evtTypes}
	}
	for _, t := range types {
		if reflect.TypeOf(t).Kind() != reflect.Ptr {
			return nil, errors.New("subscribe called with non-pointer type")
		}
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	s := &sub{
		ch:    make(chan interface{}, settings.buffer),
		match: settings.match,
		bus:   b,
	}
	for _, t := range types {
		typ := reflect.TypeOf(t)
		b.subs[typ] = append(b.subs[typ], s)
		s.typs = append(s.typs, typ)
	}
	return s, nil
}

func (b *basicBus) remove(s *sub) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, typ := range s.typs {
		subs := b.subs[typ]
		for i, cur := range subs {
			if cur == s {
				b.subs[typ] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[typ]) == 0 {
			delete(b.subs, typ)
		}
	}
}

type sub struct {
	ch    chan interface{}
	typs  []reflect.Type
	match map[string]string
	bus   *basicBus
	once  sync.Once
}

var _ Subscription = (*sub)(nil)

func (s *sub) Out() <-chan interface{} {
	return s.ch
}

// Close removes the subscription from the bus. Pending events are
// drained so an Emit blocked on this channel can complete.
func (s *sub) Close() error {
	s.once.Do(func() {
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-s.ch:
				case <-done:
					return
				}
			}
		}()
		s.bus.remove(s)
		close(done)
		close(s.ch)
	})
	return nil
}

func (s *sub) matches(event interface{}) bool {
	if len(s.match) == 0 {
		return true
	}
	val := reflect.Indirect(reflect.ValueOf(event))
	for field, want := range s.match {
		f := val.FieldByName(field)
		if !f.IsValid() || f.String() != want {
			return false
		}
	}
	return true
}
