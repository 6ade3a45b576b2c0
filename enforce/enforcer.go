// Package enforce stops playback at the end of a temporal window.
//
// An Enforcer is driven by periodic position updates. The position it
// observes is rarely exactly the end boundary, so the boundary counts as
// reached once the position is at or past it, and a latch makes sure the
// pause is requested only once per registered window.
package enforce

import (
	"time"

	"github.com/cbsinteractive/fragment-window/event"
	"github.com/cbsinteractive/fragment-window/fragment"
	"github.com/sirupsen/logrus"
)

// State is the state of the boundary latch.
type State int

const (
	// Unarmed means there is no end boundary to enforce.
	Unarmed State = iota
	// Armed means the end boundary has not been reached yet.
	Armed
	// Fired means the end boundary was reached.
	Fired
)

func (s State) String() string {
	switch s {
	case Unarmed:
		return "unarmed"
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pauser pauses playback.
type Pauser interface {
	Pause() error
}

// Enforcer requests a pause the first time the playback position reaches
// the end of the registered window. It is not safe for concurrent use.
type Enforcer struct {
	media   Pauser
	bus     event.Publisher
	log     logrus.FieldLogger
	session string
	now     func() time.Time

	state  State
	window fragment.Window
	end    float64
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Enforcer) { e.log = l }
}

// WithSession sets the session id carried by published events.
func WithSession(id string) Option {
	return func(e *Enforcer) { e.session = id }
}

// New returns an unarmed Enforcer that pauses media and publishes
// boundary notifications to bus.
func New(media Pauser, bus event.Publisher, opts ...Option) *Enforcer {
	e := &Enforcer{
		media: media,
		bus:   bus,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Register replaces the latch for a new window. A nil window, or one
// without an end bound, leaves the enforcer unarmed.
func (e *Enforcer) Register(w *fragment.Window) {
	e.state, e.window, e.end = Unarmed, fragment.Window{}, 0
	if w == nil {
		e.log.Debug("no temporal window, boundary enforcement disabled")
		return
	}
	e.window = *w
	if end, ok := w.End(); ok {
		e.state, e.end = Armed, end
		e.log.WithField("end", end).Debug("boundary armed")
	}
}

// State returns the state of the latch.
func (e *Enforcer) State() State {
	return e.state
}

// OnPosition checks the playback position against the end boundary. It
// should be called on every position change. A failed pause request is
// returned as is and leaves the latch armed.
func (e *Enforcer) OnPosition(position float64, paused bool) error {
	if e.state != Armed || position < e.end {
		return nil
	}
	log := e.log.WithFields(logrus.Fields{"end": e.end, "position": position})
	if paused {
		e.state = Fired
		log.Debug("boundary reached while paused")
		return nil
	}
	if err := e.media.Pause(); err != nil {
		return err
	}
	e.state = Fired
	log.Info("boundary reached, playback paused")

	w := e.window
	return e.bus.Publish(event.Event{
		Kind:     event.KindBoundaryReached,
		Session:  e.session,
		Window:   &w,
		Position: position,
		At:       e.now(),
	})
}
