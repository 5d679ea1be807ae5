package command

import (
	"fmt"
	"strings"
)

// CharClass is a set of runes an argument capture may consume.
// The syntax mirrors a regex bracket body: "A-Za-z0-9_-" lists ranges
// and literals, a trailing '-' is literal, '\' escapes the next rune, and
// "." alone matches any rune except a newline.
type CharClass struct {
	spec   string
	any    bool
	ranges []runeRange
}

type runeRange struct {
	lo rune
	hi rune
}

// ParseClass compiles a class spec.
func ParseClass(spec string) (CharClass, error) {
	if spec == "" {
		return CharClass{}, fmt.Errorf("empty character class")
	}
	if spec == "." {
		return CharClass{spec: spec, any: true}, nil
	}

	runes := []rune(spec)
	class := CharClass{spec: spec}
	for i := 0; i < len(runes); i++ {
		lo := runes[i]
		if lo == '\\' {
			if i+1 >= len(runes) {
				return CharClass{}, fmt.Errorf("character class %q: dangling escape", spec)
			}
			i++
			lo = runes[i]
		}
		if i+2 < len(runes) && runes[i+1] == '-' {
			hi := runes[i+2]
			if hi < lo {
				return CharClass{}, fmt.Errorf("character class %q: range %c-%c out of order", spec, lo, hi)
			}
			class.ranges = append(class.ranges, runeRange{lo: lo, hi: hi})
			i += 2
			continue
		}
		class.ranges = append(class.ranges, runeRange{lo: lo, hi: lo})
	}
	return class, nil
}

// Match reports whether r belongs to the class.
func (c CharClass) Match(r rune) bool {
	if c.any {
		return r != '\n'
	}
	for _, rr := range c.ranges {
		if r >= rr.lo && r <= rr.hi {
			return true
		}
	}
	return false
}

// MatchesSpace reports whether a capture of this class can run across a word boundary.
func (c CharClass) MatchesSpace() bool {
	return c.Match(' ') || c.Match('\t')
}

func (c CharClass) String() string {
	if c.any {
		return "[.]"
	}
	return "[" + strings.TrimSpace(c.spec) + "]"
}
