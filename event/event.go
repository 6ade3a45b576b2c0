// Package event defines the notifications published by playback
// sessions and the bus capability used to deliver them.
package event

import (
	"time"

	"github.com/cbsinteractive/fragment-window/fragment"
)

// Kind identifies a notification type.
type Kind string

const (
	// KindFragmentParsed is published when a session loads a uri. Its
	// Window is nil when the uri carries no valid temporal fragment.
	KindFragmentParsed Kind = "fragment.parsed"

	// KindBoundaryReached is published once per window, when playback
	// was paused at the end boundary.
	KindBoundaryReached Kind = "boundary.reached"
)

// Kinds lists every notification kind.
var Kinds = []Kind{KindFragmentParsed, KindBoundaryReached}

// Event is a notification about one playback session.
type Event struct {
	Kind     Kind             `json:"kind"`
	Session  string           `json:"session,omitempty"`
	URI      string           `json:"uri,omitempty"`
	Window   *fragment.Window `json:"window,omitempty"`
	Position float64          `json:"position,omitempty"`
	At       time.Time        `json:"at"`
}

// Handler receives events from a bus.
type Handler func(Event)

// Publisher publishes events.
type Publisher interface {
	Publish(Event) error
}

// Bus is a Publisher that can also be subscribed to by kind.
type Bus interface {
	Publisher

	// Subscribe registers h for events of kind k. The returned function
	// removes the subscription.
	Subscribe(k Kind, h Handler) (cancel func())
}
