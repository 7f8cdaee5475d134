package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// bound is one end of an interval. An unbounded end covers to infinity
// in its direction; open excludes the bound version itself.
type bound struct {
	version   Version
	open      bool
	unbounded bool
}

// interval is one contiguous span [lo, hi] over the version order.
type interval struct {
	lo bound
	hi bound
}

// VersionRange is a canonical union of intervals: sorted by lower
// bound, with no two adjacent intervals mergeable. The empty range has
// no intervals; the universal range has one fully unbounded interval.
type VersionRange struct {
	intervals []interval
}

// AnyVersion is the universal range.
func AnyVersion() VersionRange {
	return VersionRange{intervals: []interval{{
		lo: bound{unbounded: true},
		hi: bound{unbounded: true},
	}}}
}

// EmptyRange is the range containing no versions.
func EmptyRange() VersionRange { return VersionRange{} }

// ExactVersion is the range containing exactly v.
func ExactVersion(v Version) VersionRange {
	return VersionRange{intervals: []interval{{
		lo: bound{version: v},
		hi: bound{version: v},
	}}}
}

func rangeParseError(input string, reason string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: invalid range %q: %s", input, reason))
}

// ParseRange parses a range expression. Atoms are "op version" with op
// one of =, ==, >=, >, <=, <, !=; a bare version is a prefix atom
// covering every version it prefixes ("1.2" covers [1.2, 1.3)); a
// trailing '+' lifts the upper bound ("1.2+" covers [1.2, inf)).
// Commas intersect atoms within a clause, '|' unions clauses. The empty
// string is the universal range.
func ParseRange(input string) (VersionRange, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return AnyVersion(), nil
	}
	result := EmptyRange()
	for _, clause := range strings.Split(trimmed, "|") {
		clauseRange := AnyVersion()
		for _, atom := range strings.Split(clause, ",") {
			atomRange, err := parseAtom(strings.TrimSpace(atom), input)
			if err != nil {
				return VersionRange{}, err
			}
			clauseRange = clauseRange.Intersect(atomRange)
		}
		result = result.Union(clauseRange)
	}
	return result, nil
}

// MustParseRange parses a range known to be well formed.
func MustParseRange(input string) VersionRange {
	r, err := ParseRange(input)
	if err != nil {
		panic(err)
	}
	return r
}

func parseAtom(atom string, input string) (VersionRange, error) {
	if atom == "" {
		return VersionRange{}, rangeParseError(input, "empty atom")
	}
	type opSpec struct {
		token string
		build func(v Version) VersionRange
	}
	// Longer tokens precede shorter ones so ">=" is not read as ">".
	ops := []opSpec{
		{">=", func(v Version) VersionRange {
			return VersionRange{intervals: []interval{{lo: bound{version: v}, hi: bound{unbounded: true}}}}
		}},
		{"<=", func(v Version) VersionRange {
			return VersionRange{intervals: []interval{{lo: bound{unbounded: true}, hi: bound{version: v}}}}
		}},
		{"==", ExactVersion},
		{"!=", func(v Version) VersionRange {
			return VersionRange{intervals: []interval{
				{lo: bound{unbounded: true}, hi: bound{version: v, open: true}},
				{lo: bound{version: v, open: true}, hi: bound{unbounded: true}},
			}}
		}},
		{">", func(v Version) VersionRange {
			return VersionRange{intervals: []interval{{lo: bound{version: v, open: true}, hi: bound{unbounded: true}}}}
		}},
		{"<", func(v Version) VersionRange {
			return VersionRange{intervals: []interval{{lo: bound{unbounded: true}, hi: bound{version: v, open: true}}}}
		}},
		{"=", ExactVersion},
	}
	for _, op := range ops {
		if strings.HasPrefix(atom, op.token) {
			verStr := strings.TrimSpace(atom[len(op.token):])
			v, err := ParseVersion(verStr)
			if err != nil {
				return VersionRange{}, err
			}
			return op.build(v), nil
		}
	}
	// Trailing '+' lifts the upper bound.
	if strings.HasSuffix(atom, "+") {
		v, err := ParseVersion(strings.TrimSuffix(atom, "+"))
		if err != nil {
			return VersionRange{}, err
		}
		return VersionRange{intervals: []interval{{lo: bound{version: v}, hi: bound{unbounded: true}}}}, nil
	}
	// Bare version: prefix atom.
	v, err := ParseVersion(atom)
	if err != nil {
		return VersionRange{}, err
	}
	return VersionRange{intervals: []interval{{
		lo: bound{version: v},
		hi: bound{version: v.bump(), open: true},
	}}}, nil
}

// IsEmpty reports whether the range contains no versions.
func (r VersionRange) IsEmpty() bool { return len(r.intervals) == 0 }

// IsUniversal reports whether the range contains every version.
func (r VersionRange) IsUniversal() bool {
	return len(r.intervals) == 1 &&
		r.intervals[0].lo.unbounded && r.intervals[0].hi.unbounded
}

// Contains reports whether v lies within the range.
func (r VersionRange) Contains(v Version) bool {
	for _, iv := range r.intervals {
		if iv.contains(v) {
			return true
		}
	}
	return false
}

func (iv interval) contains(v Version) bool {
	if !iv.lo.unbounded {
		c := v.Compare(iv.lo.version)
		if c < 0 || c == 0 && iv.lo.open {
			return false
		}
	}
	if !iv.hi.unbounded {
		c := v.Compare(iv.hi.version)
		if c > 0 || c == 0 && iv.hi.open {
			return false
		}
	}
	return true
}

// Intersect returns the canonical meet of two ranges.
func (r VersionRange) Intersect(o VersionRange) VersionRange {
	var out []interval
	for _, a := range r.intervals {
		for _, b := range o.intervals {
			if meet, ok := a.meet(b); ok {
				out = append(out, meet)
			}
		}
	}
	return canonicalize(out)
}

// Union returns the canonical join of two ranges.
func (r VersionRange) Union(o VersionRange) VersionRange {
	out := make([]interval, 0, len(r.intervals)+len(o.intervals))
	out = append(out, r.intervals...)
	out = append(out, o.intervals...)
	return canonicalize(out)
}

// Equal reports whether two canonical ranges contain the same versions.
func (r VersionRange) Equal(o VersionRange) bool {
	if len(r.intervals) != len(o.intervals) {
		return false
	}
	for i := range r.intervals {
		if !boundEqual(r.intervals[i].lo, o.intervals[i].lo) ||
			!boundEqual(r.intervals[i].hi, o.intervals[i].hi) {
			return false
		}
	}
	return true
}

func boundEqual(a, b bound) bool {
	if a.unbounded || b.unbounded {
		return a.unbounded == b.unbounded
	}
	return a.open == b.open && a.version.Equal(b.version)
}

// String renders the canonical form. The universal range renders as
// "" and the empty range as "<empty>".
func (r VersionRange) String() string {
	if r.IsEmpty() {
		return "<empty>"
	}
	if r.IsUniversal() {
		return ""
	}
	parts := make([]string, 0, len(r.intervals))
	for _, iv := range r.intervals {
		parts = append(parts, iv.String())
	}
	return strings.Join(parts, "|")
}

func (iv interval) String() string {
	switch {
	case iv.lo.unbounded && iv.hi.unbounded:
		return ""
	case iv.lo.unbounded:
		if iv.hi.open {
			return "<" + iv.hi.version.String()
		}
		return "<=" + iv.hi.version.String()
	case iv.hi.unbounded:
		if iv.lo.open {
			return ">" + iv.lo.version.String()
		}
		return ">=" + iv.lo.version.String()
	}
	if !iv.lo.open && !iv.hi.open && iv.lo.version.Equal(iv.hi.version) {
		return "==" + iv.lo.version.String()
	}
	var b strings.Builder
	if iv.lo.open {
		b.WriteString(">")
	} else {
		b.WriteString(">=")
	}
	b.WriteString(iv.lo.version.String())
	b.WriteString(",")
	if iv.hi.open {
		b.WriteString("<")
	} else {
		b.WriteString("<=")
	}
	b.WriteString(iv.hi.version.String())
	return b.String()
}

// meet intersects two intervals, reporting whether the result is
// non-empty.
func (a interval) meet(b interval) (interval, bool) {
	lo := maxLo(a.lo, b.lo)
	hi := minHi(a.hi, b.hi)
	if emptySpan(lo, hi) {
		return interval{}, false
	}
	return interval{lo: lo, hi: hi}, true
}

func maxLo(a, b bound) bound {
	switch {
	case a.unbounded:
		return b
	case b.unbounded:
		return a
	}
	c := a.version.Compare(b.version)
	switch {
	case c > 0:
		return a
	case c < 0:
		return b
	}
	// Same version: open is the tighter lower bound.
	if a.open {
		return a
	}
	return b
}

func minHi(a, b bound) bound {
	switch {
	case a.unbounded:
		return b
	case b.unbounded:
		return a
	}
	c := a.version.Compare(b.version)
	switch {
	case c < 0:
		return a
	case c > 0:
		return b
	}
	if a.open {
		return a
	}
	return b
}

// emptySpan reports whether [lo, hi] contains no version.
func emptySpan(lo, hi bound) bool {
	if lo.unbounded || hi.unbounded {
		return false
	}
	c := lo.version.Compare(hi.version)
	if c > 0 {
		return true
	}
	if c == 0 {
		return lo.open || hi.open
	}
	return false
}

// loLess orders intervals by lower bound for canonicalization.
func loLess(a, b bound) bool {
	switch {
	case a.unbounded:
		return !b.unbounded
	case b.unbounded:
		return false
	}
	c := a.version.Compare(b.version)
	if c != 0 {
		return c < 0
	}
	return !a.open && b.open
}

// touches reports whether interval a (with the lower lo) overlaps or is
// adjacent to b so the two merge into one span.
func (a interval) touches(b interval) bool {
	if a.hi.unbounded || b.lo.unbounded {
		return true
	}
	c := a.hi.version.Compare(b.lo.version)
	if c > 0 {
		return true
	}
	if c < 0 {
		return false
	}
	return !a.hi.open || !b.lo.open
}

func canonicalize(intervals []interval) VersionRange {
	if len(intervals) == 0 {
		return VersionRange{}
	}
	sorted := make([]interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return loLess(sorted[i].lo, sorted[j].lo)
	})
	out := []interval{sorted[0]}
	for _, next := range sorted[1:] {
		last := &out[len(out)-1]
		if last.touches(next) {
			if hiLess(last.hi, next.hi) {
				last.hi = next.hi
			}
			continue
		}
		out = append(out, next)
	}
	return VersionRange{intervals: out}
}

// hiLess reports whether upper bound a is strictly below b.
func hiLess(a, b bound) bool {
	switch {
	case b.unbounded:
		return !a.unbounded
	case a.unbounded:
		return false
	}
	c := a.version.Compare(b.version)
	if c != 0 {
		return c < 0
	}
	return a.open && !b.open
}
