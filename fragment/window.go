// Package fragment extracts temporal windows from the fragment component
// of media URIs, following the temporal dimension of the W3C Media
// Fragments URI recommendation in its NPT form:
//
// 	http://example.com/video.mp4#t=10,20
// 	http://example.com/video.mp4#t=npt:0:02:00,0:03:30
// 	http://example.com/video.mp4#t=,20
//
// A Window is never partially valid. Any malformed, inverted or out of
// range specification yields no window at all.
package fragment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cbsinteractive/pkg/timecode"
)

// ErrInvalidWindow is returned when decoding a window that violates
// the window invariants.
var ErrInvalidWindow = errors.New("invalid temporal window")

// Window is a playback window in decimal seconds. Either bound may be
// absent, but never both.
type Window struct {
	start, end       float64
	hasStart, hasEnd bool
}

// Between returns the window [start, end).
func Between(start, end float64) (Window, bool) {
	return newWindow(&start, &end)
}

// From returns a window that starts at start and plays to the end of
// the media.
func From(start float64) (Window, bool) {
	return newWindow(&start, nil)
}

// Until returns a window that plays from the origin until end.
func Until(end float64) (Window, bool) {
	return newWindow(nil, &end)
}

func newWindow(start, end *float64) (w Window, ok bool) {
	if start == nil && end == nil {
		return Window{}, false
	}
	if start != nil {
		if *start < 0 {
			return Window{}, false
		}
		w.start, w.hasStart = *start, true
	}
	if end != nil {
		if *end < 0 {
			return Window{}, false
		}
		w.end, w.hasEnd = *end, true
	}
	switch {
	case !w.hasStart && w.end == 0:
		return Window{}, false
	case w.hasStart && w.hasEnd && w.start >= w.end:
		return Window{}, false
	}
	return w, true
}

// Start returns the start bound and whether it is present.
func (w Window) Start() (float64, bool) {
	return w.start, w.hasStart
}

// End returns the end bound and whether it is present.
func (w Window) End() (float64, bool) {
	return w.end, w.hasEnd
}

// Range returns the window as a closed timecode range. An absent start
// is the origin and an absent end is the media duration.
func (w Window) Range(duration float64) timecode.Range {
	r := timecode.Range{0, duration}
	if w.hasStart {
		r[0] = w.start
	}
	if w.hasEnd {
		r[1] = w.end
	}
	return r
}

func (w Window) String() string {
	if w.hasStart && w.hasEnd {
		return w.Range(0).String()
	}
	const s = float64(time.Second)
	if w.hasStart {
		return fmt.Sprintf("(%s-)", time.Duration(w.start*s))
	}
	return fmt.Sprintf("(-%s)", time.Duration(w.end*s))
}

type window struct {
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	var v window
	if w.hasStart {
		v.Start = &w.start
	}
	if w.hasEnd {
		v.End = &w.end
	}
	return json.Marshal(v)
}

func (w *Window) UnmarshalJSON(p []byte) error {
	var v window
	if err := json.Unmarshal(p, &v); err != nil {
		return err
	}
	nw, ok := newWindow(v.Start, v.End)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, p)
	}
	*w = nw
	return nil
}
