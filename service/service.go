// Package service exposes temporal fragment parsing and playback sessions
// over HTTP.
//
// 	GET    /fragment?uri=...          parse a uri
// 	GET    /sessions                  list session ids
// 	PUT    /sessions/{id}             load a uri into a session
// 	GET    /sessions/{id}             session status
// 	DELETE /sessions/{id}             close a session
// 	POST   /sessions/{id}/position    report the player position
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbsinteractive/fragment-window/enforce"
	"github.com/cbsinteractive/fragment-window/event"
	"github.com/cbsinteractive/fragment-window/fragment"
	"github.com/cbsinteractive/fragment-window/media"
	"github.com/cbsinteractive/fragment-window/service/exceptions"
	"github.com/cbsinteractive/fragment-window/session"
	"github.com/sirupsen/logrus"
)

var ErrMedia = errors.New("session media is not remote")

type Server struct {
	Sessions *session.Registry

	bus         event.Publisher
	logger      logrus.FieldLogger
	errReporter exceptions.Reporter
}

// NewServer returns a Server publishing session events to bus. A nil
// reporter discards exceptions.
func NewServer(bus event.Publisher, logger logrus.FieldLogger, reporter exceptions.Reporter) *Server {
	if reporter == nil {
		reporter = &exceptions.NoopReporter{}
	}
	return &Server{
		Sessions:    session.NewRegistry(),
		bus:         bus,
		logger:      logger,
		errReporter: reporter,
	}
}

// call is the server state scoped to a single request
type call struct {
	*Server
	request
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	c := &call{Server: s, request: newRequest(rw, r, s.logger)}
	defer c.finalize()
	c.serve()
}

func (c *call) serve() bool {
	switch c.chop() {
	case "fragment":
		if c.method() != http.MethodGet {
			return c.writeerror("method not allowed", http.StatusMethodNotAllowed, nil)
		}
		return c.fragment()
	case "sessions":
		id := c.chop()
		if id == "" {
			switch c.method() {
			case http.MethodGet:
				return c.writebody(sessionList{IDs: c.Sessions.IDs()})
			case http.MethodPut, http.MethodPost:
				return c.load(genID())
			}
			return c.writeerror("method not allowed", http.StatusMethodNotAllowed, nil)
		}
		switch c.chop() {
		case "":
		case "position":
			if c.method() != http.MethodPost {
				return c.writeerror("method not allowed", http.StatusMethodNotAllowed, nil)
			}
			return c.position(id)
		default:
			return c.writeerror("bad request path", http.StatusNotFound, nil)
		}
		switch c.method() {
		case http.MethodPut:
			return c.load(id)
		case http.MethodGet:
			sess, err := c.Sessions.Get(id)
			if err != nil {
				return c.fail("get session failed", err)
			}
			return c.writebody(statusOf(sess))
		case http.MethodDelete:
			if err := c.Sessions.Remove(id); err != nil {
				return c.fail("delete session failed", err)
			}
			return c.writebody(platformOK)
		}
		return c.writeerror("method not allowed", http.StatusMethodNotAllowed, nil)
	}
	return c.writeerror("bad request path", http.StatusNotFound, nil)
}

type fragmentResponse struct {
	Ok     bool             `json:"ok"`
	URI    string           `json:"uri"`
	Window *fragment.Window `json:"window,omitempty"`
	Span   string           `json:"span,omitempty"`
}

func (c *call) fragment() bool {
	uri := c.r.URL.Query().Get("uri")
	if uri == "" {
		return c.writeerror("missing uri parameter", http.StatusBadRequest, nil)
	}
	resp := fragmentResponse{Ok: true, URI: uri}
	if w, ok := fragment.Parse(uri); ok {
		resp.Window, resp.Span = &w, w.String()
	}
	return c.writebody(resp)
}

type loadRequest struct {
	URI string `json:"uri"`
}

type positionRequest struct {
	Position *float64 `json:"position"`
	Paused   bool     `json:"paused"`
}

type sessionList struct {
	IDs []string `json:"sessions"`
}

type sessionStatus struct {
	ID       string           `json:"id"`
	URI      string           `json:"uri"`
	Window   *fragment.Window `json:"window,omitempty"`
	State    enforce.State    `json:"state"`
	Position float64          `json:"position"`
	Paused   bool             `json:"paused"`

	// Pause and Seek are the requests issued to the player since its
	// previous report.
	Pause bool     `json:"pause,omitempty"`
	Seek  *float64 `json:"seek,omitempty"`
}

func statusOf(s *session.Session) sessionStatus {
	m := s.Media()
	return sessionStatus{
		ID:       s.ID(),
		URI:      s.URI(),
		Window:   s.Window(),
		State:    s.State(),
		Position: m.Position(),
		Paused:   m.Paused(),
	}
}

func (c *call) load(id string) bool {
	var req loadRequest
	if !c.UnmarshalJSON(&req) {
		return false
	}
	if req.URI == "" {
		return c.writeerror("missing uri", http.StatusBadRequest, nil)
	}
	sess, _ := c.Sessions.GetOrAdd(id, func() *session.Session { return c.open(id) })
	if _, _, err := sess.Load(req.URI); err != nil {
		return c.fail("load session failed", err)
	}
	return c.respond(sess)
}

func (c *call) open(id string) *session.Session {
	m := media.NewRemote()
	s := c.Server
	log := s.logger.WithField("session", id)
	return session.New(id, m, s.bus,
		session.WithSeeder(m),
		session.WithLogger(s.logger),
		session.WithErrorHandler(func(err error) {
			log.WithError(err).Error("enforcing temporal window")
			s.errReporter.ReportException(fmt.Errorf("session %s: %w", id, err))
		}),
	)
}

func (c *call) position(id string) bool {
	var req positionRequest
	if !c.UnmarshalJSON(&req) {
		return false
	}
	if req.Position == nil {
		return c.writeerror("missing position", http.StatusBadRequest, nil)
	}
	sess, err := c.Sessions.Get(id)
	if err != nil {
		return c.fail("report position failed", err)
	}
	m, ok := sess.Media().(*media.Remote)
	if !ok {
		return c.fail("report position failed", ErrMedia)
	}
	if err := m.Report(*req.Position, req.Paused); err != nil {
		return c.fail("report position failed", err)
	}
	return c.respond(sess)
}

// respond writes the session status along with the player requests
// pending on its media.
func (c *call) respond(sess *session.Session) bool {
	st := statusOf(sess)
	if m, ok := sess.Media().(*media.Remote); ok {
		st.Pause, st.Seek = m.Requests()
	}
	return c.writebody(st)
}

// fail writes err with the status code matching its kind, reporting
// unexpected errors.
func (c *call) fail(msg string, err error) bool {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrExists):
		code = http.StatusConflict
	case errors.Is(err, media.ErrNegativePosition), errors.Is(err, media.ErrClosed):
		code = http.StatusBadRequest
	}
	if code >= http.StatusInternalServerError {
		c.errReporter.ReportException(fmt.Errorf("%s: %w", msg, err))
	}
	return c.writeerror(msg, code, err)
}

// PlatformError implements a well-known error response for http clients
// encountering an error when using the service.
type PlatformError struct {
	Ok     bool   `json:"ok"`
	Status int    `json:"status"`
	Rid    uint64 `json:"rid"`
	Msg    string `json:"msg,omitempty"`
}

var platformOK = struct {
	Ok bool `json:"ok"`
}{true}

// String returns the json-formatted platform response
func (p PlatformError) String() string {
	data, _ := json.Marshal(p)
	return string(data)
}
