// Package test holds assertion helpers shared by package tests.
package test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// AssertWantErr reports whether err is non-nil or an error was wanted,
// failing t when err does not carry the wanted message.
func AssertWantErr(err error, wantErr, caller string, t *testing.T) bool {
	t.Helper()
	if err != nil {
		if wantErr != err.Error() {
			t.Errorf("%s error = %v, wantErr %q", caller, err, wantErr)
		}

		return true
	} else if wantErr != "" {
		t.Errorf("%s expected error %q, did not receive an error", caller, wantErr)
		return true
	}

	return false
}

// AssertJSON fails t unless got and want hold the same JSON value,
// regardless of key order and whitespace.
func AssertJSON(got []byte, want, caller string, t *testing.T) {
	t.Helper()
	var g, w interface{}
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("%s returned invalid json %q: %v", caller, got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("%s: bad expectation %q: %v", caller, want, err)
	}
	if diff := cmp.Diff(w, g); diff != "" {
		t.Errorf("%s body mismatch (-want +got):\n%s", caller, diff)
	}
}
