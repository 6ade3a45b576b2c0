package service

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/cbsinteractive/fragment-window/event"
	"github.com/cbsinteractive/fragment-window/test"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

type recordingReporter struct {
	errs []error
}

func (r *recordingReporter) ReportException(err error) {
	r.errs = append(r.errs, err)
}

func newTestServer() (*Server, *event.Local) {
	l := logrus.New()
	l.Out = ioutil.Discard
	bus := event.NewLocal()
	return NewServer(bus, l, &recordingReporter{}), bus
}

func do(t *testing.T, s *Server, method, target, body string) (int, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec.Code, rec.Body.Bytes()
}

func TestFragment(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantCode int
		wantBody string
	}{
		{
			name:     "Window",
			uri:      "http://cdn.example.com/v.m3u8#t=npt:0:02:00,0:03:30",
			wantCode: http.StatusOK,
			wantBody: `{"ok":true,"uri":"http://cdn.example.com/v.m3u8#t=npt:0:02:00,0:03:30","window":{"start":120,"end":210},"span":"(2m0s-3m30s)"}`,
		},
		{
			name:     "NoWindow",
			uri:      "http://cdn.example.com/v.m3u8#t=20,10",
			wantCode: http.StatusOK,
			wantBody: `{"ok":true,"uri":"http://cdn.example.com/v.m3u8#t=20,10"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer()
			code, body := do(t, s, http.MethodGet, "/fragment?uri="+url.QueryEscape(tt.uri), "")
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d: %s", code, tt.wantCode, body)
			}
			test.AssertJSON(body, tt.wantBody, "GET /fragment", t)
		})
	}
}

func TestFragmentErrors(t *testing.T) {
	s, _ := newTestServer()
	if code, _ := do(t, s, http.MethodGet, "/fragment", ""); code != http.StatusBadRequest {
		t.Errorf("missing uri: code = %d, want %d", code, http.StatusBadRequest)
	}
	if code, _ := do(t, s, http.MethodPost, "/fragment?uri=x", ""); code != http.StatusMethodNotAllowed {
		t.Errorf("POST: code = %d, want %d", code, http.StatusMethodNotAllowed)
	}
	if code, _ := do(t, s, http.MethodGet, "/nope", ""); code != http.StatusNotFound {
		t.Errorf("unknown path: code = %d, want %d", code, http.StatusNotFound)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, bus := newTestServer()
	var reached []event.Event
	bus.Subscribe(event.KindBoundaryReached, func(e event.Event) { reached = append(reached, e) })

	steps := []struct {
		method, path, body string
		wantCode           int
		wantBody           string
	}{
		{
			http.MethodPut, "/sessions/s1", `{"uri":"v.mp4#t=10,20"}`, http.StatusOK,
			`{"id":"s1","uri":"v.mp4#t=10,20","window":{"start":10,"end":20},"state":"armed","position":10,"paused":true,"seek":10}`,
		},
		{
			http.MethodPost, "/sessions/s1/position", `{"position":15}`, http.StatusOK,
			`{"id":"s1","uri":"v.mp4#t=10,20","window":{"start":10,"end":20},"state":"armed","position":15,"paused":false}`,
		},
		{
			http.MethodPost, "/sessions/s1/position", `{"position":20.1}`, http.StatusOK,
			`{"id":"s1","uri":"v.mp4#t=10,20","window":{"start":10,"end":20},"state":"fired","position":20.1,"paused":true,"pause":true}`,
		},
		{
			http.MethodPost, "/sessions/s1/position", `{"position":20.35}`, http.StatusOK,
			`{"id":"s1","uri":"v.mp4#t=10,20","window":{"start":10,"end":20},"state":"fired","position":20.35,"paused":false}`,
		},
		{
			http.MethodGet, "/sessions", "", http.StatusOK,
			`{"sessions":["s1"]}`,
		},
		{
			http.MethodPut, "/sessions/s1", `{"uri":"v.mp4"}`, http.StatusOK,
			`{"id":"s1","uri":"v.mp4","state":"unarmed","position":20.35,"paused":false}`,
		},
		{
			http.MethodDelete, "/sessions/s1", "", http.StatusOK,
			`{"ok":true}`,
		},
	}
	for _, st := range steps {
		code, body := do(t, s, st.method, st.path, st.body)
		caller := st.method + " " + st.path
		if code != st.wantCode {
			t.Fatalf("%s: code = %d, want %d: %s", caller, code, st.wantCode, body)
		}
		test.AssertJSON(body, st.wantBody, caller, t)
	}
	if len(reached) != 1 {
		t.Errorf("boundary events = %d, want 1", len(reached))
	}
}

func TestSessionErrors(t *testing.T) {
	s, _ := newTestServer()
	do(t, s, http.MethodPut, "/sessions/s1", `{"uri":"v.mp4#t=,5"}`)

	tests := []struct {
		name, method, path, body string
		wantCode                 int
	}{
		{"UnknownSession", http.MethodGet, "/sessions/nope", "", http.StatusNotFound},
		{"UnknownPosition", http.MethodPost, "/sessions/nope/position", `{"position":1}`, http.StatusNotFound},
		{"NegativePosition", http.MethodPost, "/sessions/s1/position", `{"position":-1}`, http.StatusBadRequest},
		{"MissingPosition", http.MethodPost, "/sessions/s1/position", `{"paused":true}`, http.StatusBadRequest},
		{"BadJSON", http.MethodPut, "/sessions/s1", `{"uri":`, http.StatusBadRequest},
		{"MissingURI", http.MethodPut, "/sessions/s1", `{}`, http.StatusBadRequest},
		{"BadSubpath", http.MethodGet, "/sessions/s1/other", "", http.StatusNotFound},
		{"PositionMethod", http.MethodGet, "/sessions/s1/position", "", http.StatusMethodNotAllowed},
		{"BadMethod", http.MethodPatch, "/sessions/s1", "", http.StatusMethodNotAllowed},
		{"DeleteUnknown", http.MethodDelete, "/sessions/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, tt.method, tt.path, tt.body)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d: %s", code, tt.wantCode, body)
			}
		})
	}
	if errs := s.errReporter.(*recordingReporter).errs; len(errs) != 0 {
		t.Errorf("client errors were reported as exceptions: %v", errs)
	}
}

func TestSessionGeneratedID(t *testing.T) {
	s, _ := newTestServer()
	code, body := do(t, s, http.MethodPost, "/sessions", `{"uri":"v.mp4#t=5"}`)
	if code != http.StatusOK {
		t.Fatalf("code = %d: %s", code, body)
	}
	ids := s.Sessions.IDs()
	if len(ids) != 1 || len(ids[0]) != 36 {
		t.Fatalf("session ids = %v, want one uuid", ids)
	}
	if !strings.Contains(string(body), ids[0]) {
		t.Errorf("response %s does not carry id %s", body, ids[0])
	}
}

func TestSessionConcurrentOpen(t *testing.T) {
	s, _ := newTestServer()
	codes := make([]int, 8)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/sessions/s1", strings.NewReader(`{"uri":"v.mp4#t=,20"}`)))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: code = %d, want %d", i, code, http.StatusOK)
		}
	}
	if diff := cmp.Diff([]string{"s1"}, s.Sessions.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(event.Event) error { return errors.New("bus down") }

func TestSessionLoadReportsServerErrors(t *testing.T) {
	l := logrus.New()
	l.Out = ioutil.Discard
	r := &recordingReporter{}
	s := NewServer(failingPublisher{}, l, r)

	code, _ := do(t, s, http.MethodPut, "/sessions/s1", `{"uri":"v.mp4#t=1,2"}`)
	if code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want %d", code, http.StatusInternalServerError)
	}
	if len(r.errs) != 1 {
		t.Errorf("reported exceptions = %v, want 1", r.errs)
	}
}

func TestChop(t *testing.T) {
	tests := []struct {
		in, file, next string
	}{
		{"/sessions/s1/position", "sessions", "/s1/position"},
		{"/s1/position", "s1", "/position"},
		{"/position", "position", "/"},
		{"/", "", "/"},
		{"/sessions/", "sessions", "/"},
	}
	for _, tt := range tests {
		file, next := chop(tt.in)
		if file != tt.file || next != tt.next {
			t.Errorf("chop(%q) = %q, %q, want %q, %q", tt.in, file, next, tt.file, tt.next)
		}
	}
}
