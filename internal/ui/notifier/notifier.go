// Package notifier provides a simple broadcast mechanism for SSE updates.
package notifier

import "sync"

// Notifier broadcasts update signals to listeners of one question.
// It uses a simple ping mechanism - listeners receive an empty struct
// when the question's answer changed and should re-read its snapshot.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[int64]map[chan struct{}]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[int64]map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives pings when the question changes.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe(questionID int64) chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	set, ok := n.listeners[questionID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.listeners[questionID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(questionID int64, ch chan struct{}) {
	n.mu.Lock()
	if set, ok := n.listeners[questionID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(n.listeners, questionID)
		}
	}
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends a ping to all listeners of a question.
// Non-blocking: if a listener's channel is full, the ping is skipped.
func (n *Notifier) Broadcast(questionID int64) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners[questionID] {
		select {
		case ch <- struct{}{}:
		default:
			// Channel full, listener already has a pending ping
		}
	}
}

// Listeners returns the number of listeners of a question.
func (n *Notifier) Listeners(questionID int64) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners[questionID])
}
