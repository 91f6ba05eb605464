// Package events allows for the registering and receiving of events.
package events

import (
	"fmt"
	"strings"
	"sync"
)

// messageBuffer is the number of messages held for a receiver. Since a
// message is dropped if the websocket receiver is not ready to receive,
// this arbitrary buffer should give the receiver enough time to not lose
// a message.
const messageBuffer = 100

// subscriber is a registered receiver and the prefix of the messages it
// wants.
type subscriber struct {
	ch     chan string
	prefix string
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]subscriber
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]subscriber),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, sub := range evt.m {
		delete(evt.m, id)
		close(sub.ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used to
// receive events starting with the prefix. An empty prefix receives every
// event.
func (evt *Events) Acquire(id string, prefix string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if sub, exists := evt.m[id]; exists {
		return sub.ch
	}

	sub := subscriber{
		ch:     make(chan string, messageBuffer),
		prefix: prefix,
	}
	evt.m[id] = sub

	return sub.ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	sub, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(sub.ch)

	return nil
}

// Count returns the number of registered receivers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Send signals a message to every registered channel whose prefix matches.
// Send will not block waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, sub := range evt.m {
		if !strings.HasPrefix(s, sub.prefix) {
			continue
		}

		select {
		case sub.ch <- s:
		default:
		}
	}
}
