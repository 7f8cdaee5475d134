package core

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rez-core/internal/shared"
)

// Requirement is a demand on a package name. Weak requirements prefer
// but do not force presence; conflict requirements forbid any version
// inside the range.
type Requirement struct {
	Name     string
	Range    VersionRange
	Weak     bool
	Conflict bool
}

// ParseRequirement parses a requirement string. Accepted forms:
//
//	python                bare name, any version
//	python-3.9            prefix range (covers 3.9, 3.9.x)
//	python-3.9+           lower bound
//	maya>=2020,<2025      operator range
//	!legacy               conflict with every version
//	~numpy-1.20           weak preference
func ParseRequirement(input string) (Requirement, error) {
	raw := strings.TrimSpace(input)
	req := Requirement{}
	for {
		switch {
		case strings.HasPrefix(raw, "!"):
			if req.Conflict {
				return Requirement{}, requirementParseError(input, "duplicate '!' prefix")
			}
			req.Conflict = true
			raw = raw[1:]
			continue
		case strings.HasPrefix(raw, "~"):
			if req.Weak {
				return Requirement{}, requirementParseError(input, "duplicate '~' prefix")
			}
			req.Weak = true
			raw = raw[1:]
			continue
		}
		break
	}
	if req.Conflict && req.Weak {
		return Requirement{}, requirementParseError(input, "requirement cannot be both weak and conflict")
	}
	nameEnd := 0
	for nameEnd < len(raw) {
		c := raw[nameEnd]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' ||
			nameEnd > 0 && c >= '0' && c <= '9' {
			nameEnd++
			continue
		}
		break
	}
	name := raw[:nameEnd]
	if !shared.ValidPackageName(name) {
		return Requirement{}, requirementParseError(input, "invalid package name")
	}
	req.Name = name
	rest := raw[nameEnd:]
	switch {
	case rest == "":
		req.Range = AnyVersion()
	case rest[0] == '-':
		if rest[1:] == "" {
			return Requirement{}, requirementParseError(input, "missing version after '-'")
		}
		r, err := ParseRange(rest[1:])
		if err != nil {
			return Requirement{}, err
		}
		req.Range = r
	case strings.IndexByte("<>=!", rest[0]) >= 0:
		r, err := ParseRange(rest)
		if err != nil {
			return Requirement{}, err
		}
		req.Range = r
	default:
		return Requirement{}, requirementParseError(input, "unexpected character after package name")
	}
	return req, nil
}

// ParseRequirements parses a list of requirement strings, failing on
// the first malformed entry.
func ParseRequirements(inputs []string) ([]Requirement, error) {
	out := make([]Requirement, 0, len(inputs))
	for _, input := range inputs {
		req, err := ParseRequirement(input)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// MustParseRequirement parses a requirement known to be well formed.
func MustParseRequirement(input string) Requirement {
	req, err := ParseRequirement(input)
	if err != nil {
		panic(err)
	}
	return req
}

func requirementParseError(input string, reason string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: invalid requirement %q: %s", input, reason))
}

// String renders the requirement canonically.
func (r Requirement) String() string {
	var b strings.Builder
	if r.Conflict {
		b.WriteString("!")
	}
	if r.Weak {
		b.WriteString("~")
	}
	b.WriteString(r.Name)
	if !r.Range.IsUniversal() {
		rangeStr := r.Range.String()
		if !strings.ContainsAny(rangeStr[:1], "<>=!") {
			b.WriteString("-")
		}
		b.WriteString(rangeStr)
	}
	return b.String()
}

// Satisfied reports whether the assigned version meets the requirement.
// For conflict requirements the version must fall outside the range.
func (r Requirement) Satisfied(v Version) bool {
	if r.Conflict {
		return !r.Range.Contains(v)
	}
	return r.Range.Contains(v)
}
