// Copyright 2025. Grounded on streadway/amqp's single-goroutine consumer
// dispatch, reshaped into the worker-pool model described in spec.md
// §4.5: each consumer owns a bounded mailbox and N worker goroutines, so
// one slow handler cannot stall deliveries addressed to a different
// consumer tag on the same channel.

package amqp

import "fmt"

const consumerMailboxSize = 64

// consumer is one basic.consume registration: a mailbox fed by the
// channel's reader-thread dispatch in Channel.finishContent, drained by a
// fixed pool of worker goroutines that each invoke the caller's handler.
type consumer struct {
	tag        string
	channel    *Channel
	deliveries chan Delivery
	handler    func(Delivery)
	workers    int
	done       chan struct{}
}

func newConsumer(ch *Channel, tag string, workers int, handler func(Delivery)) *consumer {
	return &consumer{
		tag:        tag,
		channel:    ch,
		deliveries: make(chan Delivery, consumerMailboxSize),
		handler:    handler,
		workers:    workers,
		done:       make(chan struct{}),
	}
}

func (c *consumer) start() {
	for i := 0; i < c.workers; i++ {
		go c.work()
	}
}

func (c *consumer) work() {
	for {
		select {
		case d, ok := <-c.deliveries:
			if !ok {
				return
			}
			c.invoke(d)
		case <-c.done:
			// drain whatever is already buffered before exiting, so a
			// Cancel racing the last few deliveries does not drop them.
			for {
				select {
				case d, ok := <-c.deliveries:
					if !ok {
						return
					}
					c.invoke(d)
				default:
					return
				}
			}
		}
	}
}

// invoke contains a handler panic: the delivery is logged and dropped,
// not requeued, since the handler's own state may be the reason it
// panicked and blind redelivery risks a poison-message loop.
func (c *consumer) invoke(d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.channel.logger.Errorf("amqp: consumer %s handler panicked on delivery tag %d: %v", c.tag, d.DeliveryTag, fmt.Errorf("%v", r))
		}
	}()
	c.handler(d)
}

// deliver hands one message to this consumer's mailbox. Called only from
// the connection's single reader goroutine; it must not block it for
// long, so a full mailbox is treated as backpressure worth logging rather
// than an unbounded buffer.
func (c *consumer) deliver(d Delivery) {
	select {
	case c.deliveries <- d:
	default:
		c.channel.logger.Warnf("amqp: consumer %s mailbox full, blocking reader until a worker drains it", c.tag)
		c.deliveries <- d
	}
}

// stop signals every worker to drain whatever is already buffered and
// exit. The mailbox itself is never closed -- a racing deliver() from the
// reader goroutine must never panic on a send to a closed channel -- and
// is left for garbage collection once every worker has returned.
func (c *consumer) stop() {
	close(c.done)
}
