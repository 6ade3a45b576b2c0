package service

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaxBodyLen = 1024 * 1024

// request is always scoped to a single http request handled by the server
type request struct {
	file, path string

	w  http.ResponseWriter
	r  *http.Request
	lg logrus.FieldLogger

	body []byte

	start       time.Time
	rid         uint64 // random request id
	code        int
	read, wrote int
	ip, port    string
	err, logerr error
}

// newRequest initializes request scoped structures and counters
// and logs the start of the request
func newRequest(w http.ResponseWriter, rq *http.Request, lg logrus.FieldLogger) request {
	r := request{
		path:  rq.URL.Path,
		r:     rq,
		w:     w,
		start: time.Now(),
		rid:   rand.Uint64(),
		code:  http.StatusOK,
	}
	r.rid |= 1 << 63 // sacrifice one bit of entropy so they always have the same # digits
	r.lg = lg.WithField("rid", r.rid)
	r.ip = r.r.Header.Get("X-Forwarded-For")
	r.port = r.r.Header.Get("X-Forwarded-Port")
	if r.ip == "" {
		r.ip, r.port, _ = net.SplitHostPort(r.r.RemoteAddr)
	}
	r.log(
		"ip", r.ip,
		"port", r.port,
		"method", r.r.Method,
		"path", r.r.URL.Path,
		"ua", r.r.UserAgent(),
	)
	return r
}

func (r *request) finalize() {
	if r.logerr == nil {
		r.logerr = r.err
	}
	r.log(
		"code", r.code,
		"rx", r.read,
		"tx", r.wrote,
		"dur", time.Since(r.start),
		"err", r.logerr,
	)
}

func (s *request) ok() bool {
	return s.err == nil
}

func (s *request) method() string {
	return s.r.Method
}

// Body reads the request body at most once and
// returns it.
func (s *request) Body() []byte {
	if !s.ok() {
		return nil
	}
	if s.body != nil {
		return s.body
	}
	s.body, s.err = ioutil.ReadAll(io.LimitReader(s.r.Body, defaultMaxBodyLen))
	s.read = len(s.body)
	return s.body
}

func (s *request) writeerror(msg string, code int, err error) bool {
	s.code, s.logerr = code, err
	s.log(
		"msg", msg,
		"code", code,
		"err", err,
	)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	s.w.Header().Set("Content-Type", "application/json")
	s.w.WriteHeader(code)
	fmt.Fprintln(s.w, PlatformError{
		Ok:     false,
		Status: code,
		Rid:    s.rid,
		Msg:    msg,
	}.String())
	return false
}

// log writes the key/value pairs kv as a single log entry
func (s *request) log(kv ...interface{}) {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		v := kv[i+1]
		switch t := v.(type) {
		case nil:
			continue
		case error:
			v = t.Error()
		case fmt.Stringer:
			v = t.String()
		}
		f[fmt.Sprint(kv[i])] = v
	}
	s.lg.WithFields(f).Info()
}

func (s *request) writebody(data interface{}) bool {
	s.w.Header().Set("Content-Type", "application/json")
	switch t := data.(type) {
	case []byte:
		s.wrote, s.err = s.w.Write(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return s.writeerror("encoding response", http.StatusInternalServerError, err)
		}
		s.wrote, s.err = s.w.Write(data)
	}
	return s.ok()
}

func (s *request) UnmarshalJSON(body interface{}) (ok bool) {
	data := s.Body()
	if !s.ok() {
		return s.writeerror("reading body", http.StatusBadRequest, s.err)
	}
	if err := json.Unmarshal(data, body); err != nil {
		return s.writeerror("decoding body", http.StatusBadRequest, err)
	}
	return true
}

func (s *request) chop() string {
	s.file, s.path = chop(s.path)
	return s.file
}

func chop(p string) (file, next string) {
	p = path.Clean("/" + p)[1:]
	if n := strings.Index(p, "/"); n >= 0 {
		return p[:n], p[n:]
	}
	return p, "/"
}
