package signature

import (
	"fmt"
	"strconv"
	"strings"
)

// Elem matches one byte, or any byte when it is a wildcard.
type Elem struct {
	value byte
	wild  bool
}

var Any = Elem{wild: true}

func Byte(b byte) Elem {
	return Elem{value: b}
}

func (e Elem) Value() (byte, bool) {
	return e.value, !e.wild
}

func (e Elem) IsWildcard() bool {
	return e.wild
}

func (e Elem) Match(b byte) bool {
	return e.wild || e.value == b
}

func (e Elem) String() string {
	if e.wild {
		return "??"
	}
	return fmt.Sprintf("%02X", e.value)
}

// Pattern is an immutable sequence of byte matchers.
type Pattern struct {
	elems  []Elem
	anchor int
}

func New(elems ...Elem) Pattern {
	p := Pattern{elems: append([]Elem(nil), elems...), anchor: -1}
	for i, e := range p.elems {
		if !e.wild {
			p.anchor = i
			break
		}
	}
	return p
}

// ParseToken reads one pattern token. "?" and "??" are wildcards; a token
// that is not a hex byte also yields a wildcard, with ok reporting false.
func ParseToken(tok string) (e Elem, ok bool) {
	if tok == "?" || tok == "??" {
		return Any, true
	}
	b, err := strconv.ParseUint(tok, 16, 8)
	if err != nil {
		return Any, false
	}
	return Byte(byte(b)), true
}

// Parse reads a whitespace separated pattern such as "48 8B ?? 05".
func Parse(s string) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Pattern{}, ErrEmptyPattern
	}
	elems := make([]Elem, len(fields))
	for i, tok := range fields {
		elems[i], _ = ParseToken(tok)
	}
	return New(elems...), nil
}

func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Len() int {
	return len(p.elems)
}

func (p Pattern) At(i int) Elem {
	return p.elems[i]
}

func (p Pattern) Elems() []Elem {
	return append([]Elem(nil), p.elems...)
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i, e := range p.elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Match reports whether data starts with the pattern.
func (p Pattern) Match(data []byte) bool {
	if len(data) < len(p.elems) {
		return false
	}
	for i, e := range p.elems {
		if !e.Match(data[i]) {
			return false
		}
	}
	return true
}
