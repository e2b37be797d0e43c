// Package version compares software version strings.
//
// Catalog versions in the wild are rarely strict semver ("12.2.1b1",
// "2024.1.0.0"), so Compare tries semver first and falls back to a loose,
// zero-padded segment comparison where "10.6" equals "10.6.0".
package version

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
)

// Comparison results. The encoding matches the planner's expectations:
// an installed version that is the Same or Higher than the candidate needs
// no action.
const (
	Lower  = -1
	Same   = 1
	Higher = 2
)

// Compare compares a against b.
// Returns Lower if a is older, Same if equal, Higher if a is newer.
func Compare(a, b string) int {
	if va, err := semver.StrictNewVersion(a); err == nil {
		if vb, err := semver.StrictNewVersion(b); err == nil {
			switch va.Compare(vb) {
			case -1:
				return Lower
			case 0:
				return Same
			}
			return Higher
		}
	}
	return looseCompare(a, b)
}

// TrimVersion strips lone trailing zero components past major.minor:
// "10.0.0.0" becomes "10.0", "10.0.0.1" is unchanged.
func TrimVersion(v string) string {
	if v == "" {
		return ""
	}
	parts := strings.Split(v, ".")
	for len(parts) > 2 && parts[len(parts)-1] == "0" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func looseCompare(a, b string) int {
	as := tokens(a)
	bs := tokens(b)
	for len(as) < len(bs) {
		as = append(as, token{num: 0, numeric: true})
	}
	for len(bs) < len(as) {
		bs = append(bs, token{num: 0, numeric: true})
	}
	for i := range as {
		if c := as[i].compare(bs[i]); c != 0 {
			if c < 0 {
				return Lower
			}
			return Higher
		}
	}
	return Same
}

type token struct {
	num     int
	str     string
	numeric bool
}

func (t token) compare(o token) int {
	switch {
	case t.numeric && o.numeric:
		switch {
		case t.num < o.num:
			return -1
		case t.num > o.num:
			return 1
		}
		return 0
	case t.numeric:
		// numeric components sort after alphabetic ones, so a release
		// ("1.0") is newer than its prerelease ("1.0b1" -> 1, 0, "b", 1).
		return 1
	case o.numeric:
		return -1
	}
	return strings.Compare(t.str, o.str)
}

// tokens splits a version string into numeric and alphabetic runs:
// "2.3b1" -> [2, 3, "b", 1].
func tokens(v string) []token {
	var out []token
	var run []rune
	var runDigit bool

	flush := func() {
		if len(run) == 0 {
			return
		}
		s := string(run)
		if runDigit {
			n, _ := strconv.Atoi(s)
			out = append(out, token{num: n, numeric: true})
		} else {
			out = append(out, token{str: s})
		}
		run = run[:0]
	}

	for _, r := range v {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+' || unicode.IsSpace(r):
			flush()
		case unicode.IsDigit(r):
			if len(run) > 0 && !runDigit {
				flush()
			}
			runDigit = true
			run = append(run, r)
		default:
			if len(run) > 0 && runDigit {
				flush()
			}
			runDigit = false
			run = append(run, r)
		}
	}
	flush()
	if len(out) == 0 {
		out = append(out, token{num: 0, numeric: true})
	}
	return out
}
