package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rez-core/internal/shared"
)

// Token is one version component. Numeric tokens compare as integers,
// alphanumeric tokens as raw bytes, and numeric orders before
// alphanumeric when the kinds differ.
type Token struct {
	Text    string
	Num     uint64
	Numeric bool
}

// Compare returns -1, 0, or 1 ordering t against o.
func (t Token) Compare(o Token) int {
	switch {
	case t.Numeric && o.Numeric:
		switch {
		case t.Num < o.Num:
			return -1
		case t.Num > o.Num:
			return 1
		}
		return 0
	case t.Numeric != o.Numeric:
		if t.Numeric {
			return -1
		}
		return 1
	default:
		return strings.Compare(t.Text, o.Text)
	}
}

// Version is an immutable tokenized version. Tokens are separated by
// one of '.', '-', '_', '+'; the original separators are retained so
// String round-trips the parsed input.
type Version struct {
	tokens []Token
	seps   []byte
	raw    string
}

const versionSeparators = ".-_+"

func isSeparator(c byte) bool {
	return strings.IndexByte(versionSeparators, c) >= 0
}

func isTokenChar(c byte) bool {
	return c >= '0' && c <= '9' ||
		c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z'
}

// parser states for the version automaton.
type parseState int

const (
	stateStart parseState = iota
	stateInToken
	stateInSeparator
)

func versionParseError(input string, index int, reason string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("parse_error: invalid version %q at index %d: %s", input, index, reason))
}

// ParseVersion tokenizes a version string. The automaton walks three
// states (start, in-token, in-separator); a separator is only legal
// immediately after a token, and the string must start and end on a
// token character.
func ParseVersion(input string) (Version, error) {
	if input == "" {
		return Version{}, versionParseError(input, 0, "empty version")
	}
	var (
		tokens []Token
		seps   []byte
		state  = stateStart
		start  int
	)
	closeToken := func(end int) {
		text := input[start:end]
		if shared.IsDigits(text) {
			// Fits uint64 for any sane token; overflow falls back to
			// lexicographic alphanumeric handling.
			if num, err := strconv.ParseUint(text, 10, 64); err == nil {
				tokens = append(tokens, Token{Text: text, Num: num, Numeric: true})
				return
			}
		}
		tokens = append(tokens, Token{Text: text})
	}
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch state {
		case stateStart, stateInSeparator:
			if !isTokenChar(c) {
				return Version{}, versionParseError(input, i, "expected token character")
			}
			start = i
			state = stateInToken
		case stateInToken:
			switch {
			case isTokenChar(c):
			case isSeparator(c):
				closeToken(i)
				seps = append(seps, c)
				state = stateInSeparator
			default:
				return Version{}, versionParseError(input, i, "illegal character")
			}
		}
	}
	if state != stateInToken {
		return Version{}, versionParseError(input, len(input), "trailing separator")
	}
	closeToken(len(input))
	return Version{tokens: tokens, seps: seps, raw: input}, nil
}

// MustParseVersion parses a version known to be well formed. It is
// reserved for literals in tests and internal constants.
func MustParseVersion(input string) Version {
	v, err := ParseVersion(input)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original input string.
func (v Version) String() string { return v.raw }

// IsZero reports whether v is the zero Version (no tokens).
func (v Version) IsZero() bool { return len(v.tokens) == 0 }

// Tokens returns the token sequence. The returned slice must not be
// mutated.
func (v Version) Tokens() []Token { return v.tokens }

// Compare orders two versions token-pairwise. A shorter version that is
// a prefix of the longer compares less.
func (v Version) Compare(o Version) int {
	n := len(v.tokens)
	if len(o.tokens) < n {
		n = len(o.tokens)
	}
	for i := 0; i < n; i++ {
		if c := v.tokens[i].Compare(o.tokens[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.tokens) < len(o.tokens):
		return -1
	case len(v.tokens) > len(o.tokens):
		return 1
	}
	return 0
}

// Equal reports exact token equality.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// LessThan reports v < o.
func (v Version) LessThan(o Version) bool { return v.Compare(o) < 0 }

// bump returns the smallest version strictly greater than every version
// prefixed by v. Used to model rez-style prefix atoms ("1.2" covers
// [1.2, 1.3)). For an alphanumeric final token the bound uses an
// internal sentinel byte ('~') that orders after all token characters;
// such a bound shows up when its range is rendered, e.g. in conflict
// details.
func (v Version) bump() Version {
	tokens := make([]Token, len(v.tokens))
	copy(tokens, v.tokens)
	last := tokens[len(tokens)-1]
	if last.Numeric {
		last.Num++
		last.Text = strconv.FormatUint(last.Num, 10)
	} else {
		last.Text += "~"
	}
	tokens[len(tokens)-1] = last
	seps := make([]byte, len(v.seps))
	copy(seps, v.seps)
	return Version{tokens: tokens, seps: seps, raw: renderTokens(tokens, seps)}
}

func renderTokens(tokens []Token, seps []byte) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 {
			sep := byte('.')
			if i-1 < len(seps) {
				sep = seps[i-1]
			}
			b.WriteByte(sep)
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
