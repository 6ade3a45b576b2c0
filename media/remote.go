// Package media adapts players that report their playback state from
// outside the process to the media collaborator a session expects.
package media

import (
	"errors"
	"sync"
)

var (
	ErrNegativePosition = errors.New("negative playback position")
	ErrClosed           = errors.New("media closed")
)

// Remote is a media element whose position and paused state are reported
// by a remote player. Pause and Seek are recorded as requests that the
// player picks up with Requests.
type Remote struct {
	mu       sync.Mutex
	position float64
	paused   bool
	closed   bool

	pauseRequested bool
	seek           *float64

	next      int
	listeners map[int]func(position float64, paused bool)
	order     []int
}

// NewRemote returns a paused Remote positioned at the origin.
func NewRemote() *Remote {
	return &Remote{
		paused:    true,
		listeners: map[int]func(float64, bool){},
	}
}

func (m *Remote) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Remote) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Pause marks the media paused and records the request for the player.
func (m *Remote) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.paused = true
	m.pauseRequested = true
	return nil
}

// Seek moves the position before playback starts and records the
// request for the player.
func (m *Remote) Seek(seconds float64) error {
	if seconds < 0 {
		return ErrNegativePosition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.position = seconds
	m.seek = &seconds
	return nil
}

// Requests returns and clears the pending pause and seek requests.
func (m *Remote) Requests() (pause bool, seek *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pause, seek = m.pauseRequested, m.seek
	m.pauseRequested, m.seek = false, nil
	return pause, seek
}

// Report records the player state and notifies every position listener
// in subscription order with the reported values.
func (m *Remote) Report(position float64, paused bool) error {
	if position < 0 {
		return ErrNegativePosition
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.position, m.paused = position, paused
	fns := make([]func(float64, bool), 0, len(m.order))
	for _, id := range m.order {
		fns = append(fns, m.listeners[id])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(position, paused)
	}
	return nil
}

// OnPositionChanged registers fn to run after every Report.
func (m *Remote) OnPositionChanged(fn func(position float64, paused bool)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.order = append(m.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			order := m.order[:0:0]
			for _, v := range m.order {
				if v != id {
					order = append(order, v)
				}
			}
			m.order = order
		})
	}
}

// Close drops every listener; later calls fail with ErrClosed.
func (m *Remote) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.listeners = map[int]func(float64, bool){}
	m.order = nil
	return nil
}
