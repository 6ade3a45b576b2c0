package fragment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	temporalParam = regexp.MustCompile(`(?:^|&)t=([^&]*)`)

	// Fractions need at least one digit after the point, so "10." is
	// rejected even though npt-sec permits a bare trailing point.
	npt = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+(?:\.\d+)?)$`),
		regexp.MustCompile(`^(\d+):(\d+(?:\.\d+)?)$`),
		regexp.MustCompile(`^(\d+):(\d+):(\d+(?:\.\d+)?)$`),
	}
)

// Parse returns the temporal window carried by the fragment of uri. It
// reports false when the uri has no fragment, no t= parameter, or a t=
// value that does not describe a valid window.
//
// When t= is repeated the last occurrence is used, even if it is
// malformed and an earlier one is not.
func Parse(uri string) (Window, bool) {
	n := strings.IndexByte(uri, '#')
	if n < 0 {
		return Window{}, false
	}
	m := temporalParam.FindAllStringSubmatch(uri[n+1:], -1)
	if len(m) == 0 {
		return Window{}, false
	}
	return parseValue(m[len(m)-1][1])
}

// parseValue parses the value of a single t= parameter.
func parseValue(v string) (Window, bool) {
	v = strings.TrimPrefix(v, "npt:")
	part := strings.Split(v, ",")
	if len(part) > 2 {
		return Window{}, false
	}

	var bound [2]*float64
	for i, p := range part {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		s, ok := parseTime(p)
		if !ok {
			return Window{}, false
		}
		bound[i] = &s
	}
	return newWindow(bound[0], bound[1])
}

// parseTime parses an NPT time in the form S[.f], MM:SS[.f] or
// HH:MM:SS[.f] into decimal seconds. Minutes and seconds must be less
// than 60 when they are not the leading field.
func parseTime(s string) (float64, bool) {
	for _, re := range npt {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		var f [3]float64
		for i, field := range m[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return 0, false
			}
			f[i] = v
		}
		switch len(m) - 1 {
		case 1:
			return f[0], true
		case 2:
			if f[0] >= 60 || f[1] >= 60 {
				return 0, false
			}
			return f[0]*60 + f[1], true
		case 3:
			if f[1] >= 60 || f[2] >= 60 {
				return 0, false
			}
			return f[0]*3600 + f[1]*60 + f[2], true
		}
	}
	return 0, false
}
