package utils

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans values out to channel subscribers. A subscriber whose
// buffer is full when a value is published is dropped and its channel closed.
type Broadcaster[T any] struct {
	name      string
	mu        *sync.RWMutex
	listeners map[chan T]int
	index     int
	closed    bool
}

func NewBroadcaster[T any](name string) *Broadcaster[T] {
	return &Broadcaster[T]{
		name:      name,
		mu:        &sync.RWMutex{},
		listeners: make(map[chan T]int),
	}
}

func (l *Broadcaster[T]) Subscribe(buf int) <-chan T {
	ch := make(chan T, buf)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch
	}
	l.listeners[ch] = l.index
	l.index++
	return ch
}

func (l *Broadcaster[T]) Unsubscribe(ch <-chan T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.listeners {
		if (<-chan T)(c) == ch {
			delete(l.listeners, c)
			close(c)
			break
		}
	}
}

// Publish returns the number of listeners dropped because they were not
// keeping up.
func (l *Broadcaster[T]) Publish(v T) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	listenersToRemove := make([]chan T, 0)
	ids := make([]int, 0)
	for ch, id := range l.listeners {
		select {
		case ch <- v:
		default:
			listenersToRemove = append(listenersToRemove, ch)
			ids = append(ids, id)
		}
	}

	if len(listenersToRemove) > 0 {
		go func() {
			l.remove(listenersToRemove)
			log.WithFields(log.Fields{
				"broadcaster": l.name,
				"ids":         ids,
			}).Warn("dropped listeners that were not consuming events")
		}()
	}
	return len(listenersToRemove)
}

func (l *Broadcaster[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

func (l *Broadcaster[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for ch := range l.listeners {
		close(ch)
	}
	l.listeners = nil
	l.closed = true
}

func (l *Broadcaster[T]) remove(chs []chan T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for _, ch := range chs {
		if _, ok := l.listeners[ch]; !ok {
			continue
		}
		close(ch)
		delete(l.listeners, ch)
	}
}
