// Copyright (c) 2012, Sean Treadway, SoundCloud Ltd.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Adapted from streadway/amqp's confirms.go: an ordered set of
// outstanding delivery tags, generalized to also fan out individual
// Confirmations to NotifyPublish listeners (spec.md §4.4 "Publisher
// confirms").

package amqp

import (
	"sort"
	"sync"
)

// Confirmation reports the broker's ack/nack for one published delivery
// tag, delivered in delivery-tag order on a NotifyPublish channel.
type Confirmation struct {
	DeliveryTag uint64
	Ack         bool
}

// confirmTracker tracks which delivery tags are still outstanding once a
// channel has called confirm.select. A delivery tag is always assigned
// before the corresponding basic.publish frame is written, so an ack
// racing in from the reader goroutine can never reference a tag this
// tracker has not yet recorded.
type confirmTracker struct {
	mu          sync.Mutex
	enabled     bool
	nextTag     uint64
	unconfirmed map[uint64]struct{}
	anyNack     bool
	listeners   []chan Confirmation
	drain       *sync.Cond
	closed      bool
	closedErr   *ChannelError
}

func newConfirmTracker() *confirmTracker {
	t := &confirmTracker{unconfirmed: make(map[uint64]struct{})}
	t.drain = sync.NewCond(&t.mu)
	return t
}

func (t *confirmTracker) enable() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

// track assigns and records the delivery tag for a publish about to be
// written to the wire. Returns 0 (an otherwise-unused tag, since AMQP
// delivery tags start at 1) when confirm mode is not enabled. Starting a
// new drain window -- the first publish after the unconfirmed set was last
// empty -- resets the any-nack flag, so a nack from a prior window cannot
// fail a WaitForConfirms call that only ever covered later, clean publishes.
func (t *confirmTracker) track() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return 0
	}
	if len(t.unconfirmed) == 0 {
		t.anyNack = false
	}
	t.nextTag++
	t.unconfirmed[t.nextTag] = struct{}{}
	return t.nextTag
}

func (t *confirmTracker) nextPublishSeqNo() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextTag + 1
}

// confirm resolves one or, when multiple is set, every tag up to and
// including deliveryTag, per the basic.ack/basic.nack "multiple" flag
// semantics (spec.md §4.4, edge case "cumulative confirms").
func (t *confirmTracker) confirm(deliveryTag uint64, multiple, ack bool) {
	t.mu.Lock()
	var resolved []uint64
	if multiple {
		for tag := range t.unconfirmed {
			if tag <= deliveryTag {
				resolved = append(resolved, tag)
			}
		}
		sort.Slice(resolved, func(i, j int) bool { return resolved[i] < resolved[j] })
	} else if _, ok := t.unconfirmed[deliveryTag]; ok {
		resolved = []uint64{deliveryTag}
	}
	for _, tag := range resolved {
		delete(t.unconfirmed, tag)
	}
	if !ack && len(resolved) > 0 {
		t.anyNack = true
	}
	empty := len(t.unconfirmed) == 0
	listeners := append([]chan Confirmation(nil), t.listeners...)
	if empty {
		t.drain.Broadcast()
	}
	t.mu.Unlock()

	for _, tag := range resolved {
		c := Confirmation{DeliveryTag: tag, Ack: ack}
		for _, l := range listeners {
			l <- c
		}
	}
}

// waitForConfirms blocks until the unconfirmed set is empty, mirroring
// wait_for_confirms' drain-window semantics: the wait ends at the next
// non-empty-to-empty transition, so publishes tracked while it is waiting
// are waited on too (spec.md §4.4, §9 open question resolution). It
// reports false if any nack landed during the drain window, and raises the
// channel's terminal error if the channel closed before every outstanding
// tag was resolved.
func (t *confirmTracker) waitForConfirms() (bool, *ChannelError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.closed && len(t.unconfirmed) > 0 {
		t.drain.Wait()
	}
	if t.closed && len(t.unconfirmed) > 0 {
		return false, t.closedErr
	}
	return !t.anyNack, nil
}

func (t *confirmTracker) notifyPublish(ch chan Confirmation) chan Confirmation {
	t.mu.Lock()
	t.listeners = append(t.listeners, ch)
	t.mu.Unlock()
	return ch
}

// shutdown wakes every waiter and listener so a connection loss does not
// leave wait_for_confirms or a NotifyPublish reader blocked forever. A
// waiter with tags still outstanding at this point receives chErr (or the
// generic errClosed, for a clean local Close with no recorded protocol
// error) instead of a false "all confirmed".
func (t *confirmTracker) shutdown(chErr *ChannelError) {
	t.mu.Lock()
	t.closed = true
	if chErr != nil {
		t.closedErr = chErr
	} else {
		t.closedErr = errClosed
	}
	listeners := append([]chan Confirmation(nil), t.listeners...)
	t.listeners = nil
	t.drain.Broadcast()
	t.mu.Unlock()

	for _, l := range listeners {
		close(l)
	}
}
