// Package session ties a temporal window to one playback session: it
// parses the window from the loaded uri, seeds the start position, and
// enforces the end boundary against the live position feed.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/cbsinteractive/fragment-window/enforce"
	"github.com/cbsinteractive/fragment-window/event"
	"github.com/cbsinteractive/fragment-window/fragment"
	"github.com/sirupsen/logrus"
)

// Media is the playback surface a session controls.
type Media interface {
	enforce.Pauser
	Position() float64
	Paused() bool

	// OnPositionChanged registers fn to run on every position change
	// notification with the position and paused state it carries. The
	// returned function removes it.
	OnPositionChanged(fn func(position float64, paused bool)) (cancel func())
}

// Seeder applies the initial playback position before playback starts.
type Seeder interface {
	Seek(seconds float64) error
}

// Session is the state owned by one playback session. Loading a new uri
// replaces the window and the boundary latch as a whole.
type Session struct {
	id      string
	media   Media
	seed    Seeder
	bus     event.Publisher
	log     logrus.FieldLogger
	onError func(error)
	now     func() time.Time

	mu       sync.Mutex
	uri      string
	window   *fragment.Window
	enforcer *enforce.Enforcer
	cancel   func()
}

type Option func(*Session)

// WithSeeder sets the collaborator that receives the window start.
func WithSeeder(s Seeder) Option {
	return func(ss *Session) { ss.seed = s }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithErrorHandler sets the function receiving errors raised while
// handling position changes, such as a failed pause request. The default
// logs them.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// New returns a session with no uri loaded.
func New(id string, m Media, bus event.Publisher, opts ...Option) *Session {
	s := &Session{
		id:    id,
		media: m,
		bus:   bus,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("session", id)
	if s.onError == nil {
		s.onError = func(err error) {
			s.log.WithError(err).Error("enforcing temporal window")
		}
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Media() Media {
	return s.media
}

// Load parses the temporal window of uri and starts enforcing it. It
// reports whether uri carries a valid window. Any previous window and
// its latch are discarded first.
func (s *Session) Load(uri string) (fragment.Window, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.detach()
	s.enforcer = nil
	s.uri = uri
	s.window = nil
	w, ok := fragment.Parse(uri)
	if ok {
		s.window = &w
	}
	log := s.log.WithField("uri", uri)
	if ok {
		log.WithField("window", w).Info("temporal fragment parsed")
	} else {
		log.Debug("no temporal fragment")
	}

	err := s.bus.Publish(event.Event{
		Kind:    event.KindFragmentParsed,
		Session: s.id,
		URI:     uri,
		Window:  s.window,
		At:      s.now(),
	})
	if err != nil {
		return w, ok, fmt.Errorf("publishing parsed fragment: %w", err)
	}

	if start, has := w.Start(); ok && has && s.seed != nil {
		if err := s.seed.Seek(start); err != nil {
			return w, ok, fmt.Errorf("seeding start position %v: %w", start, err)
		}
	}

	s.enforcer = enforce.New(s.media, s.bus, enforce.WithLogger(log), enforce.WithSession(s.id))
	s.enforcer.Register(s.window)
	if s.enforcer.State() == enforce.Armed {
		s.cancel = s.media.OnPositionChanged(s.positionChanged)
	}
	return w, ok, nil
}

func (s *Session) positionChanged(position float64, paused bool) {
	if err := s.check(position, paused); err != nil {
		s.onError(err)
	}
}

// Check runs the boundary check against the current media position.
// Handlers of a synchronous bus must not call back into the session.
func (s *Session) Check() error {
	return s.check(s.media.Position(), s.media.Paused())
}

func (s *Session) check(position float64, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enforcer == nil {
		return nil
	}
	return s.enforcer.OnPosition(position, paused)
}

// URI returns the loaded uri.
func (s *Session) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uri
}

// Window returns the window of the loaded uri, or nil.
func (s *Session) Window() *fragment.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		return nil
	}
	w := *s.window
	return &w
}

// State returns the boundary latch state.
func (s *Session) State() enforce.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enforcer == nil {
		return enforce.Unarmed
	}
	return s.enforcer.State()
}

// Close stops watching the position feed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detach()
	s.enforcer = nil
}

func (s *Session) detach() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
