// Package notify carries transient alerts and the shared "has unseen
// message" flag from the chat sessions to whatever surface presents them.
package notify

import (
	"log"
	"sync"
)

// Alert is one transient notification about an inbound message.
type Alert struct {
	From      string
	Content   string
	Timestamp int64
}

// Notifier receives transient alerts. Implementations must tolerate calls
// from push-channel callbacks.
type Notifier interface {
	Notify(Alert)
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(alert Alert) {
	log.Printf("notify: new message from %s: %s", alert.From, alert.Content)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Alert)

// Notify implements Notifier.
func (f NotifierFunc) Notify(alert Alert) {
	f(alert)
}

// Flag is an observable boolean with defined write ownership. It replaces
// passing a mutable "unseen messages" flag by reference across component
// boundaries: the owning session writes it, observers subscribe.
type Flag struct {
	mu    sync.Mutex
	value bool
	subs  []func(bool)
}

// Set updates the flag and notifies subscribers on every change.
func (f *Flag) Set(value bool) {
	if f == nil {
		return
	}
	f.mu.Lock()
	changed := f.value != value
	f.value = value
	subs := make([]func(bool), len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	if !changed {
		return
	}
	for _, sub := range subs {
		sub(value)
	}
}

// Value returns the current flag state.
func (f *Flag) Value() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Subscribe registers a callback invoked on every state change.
func (f *Flag) Subscribe(fn func(bool)) {
	if f == nil || fn == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}
