package command

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saker-ai/spiritio-client/internal/protocol"
)

// Directory resolves display names to user ids. Matching is case-sensitive and exact.
type Directory interface {
	LookupID(name string) (protocol.ID, bool)
}

// Arg is one captured argument.
type Arg struct {
	Name   string
	Value  string
	// ID is set when Value resolved through the Directory.
	ID     protocol.ID
	Secret bool
}

// Detail is the value placed in the work order details.
func (a Arg) Detail() any {
	if a.ID != "" {
		return a.ID
	}
	return a.Value
}

// Command is the immutable result of one Parse call.
type Command struct {
	Phrase string
	Order  string
	Args   []Arg
}

// Arg returns the argument named name.
func (c Command) Arg(name string) (Arg, bool) {
	for _, arg := range c.Args {
		if arg.Name == name {
			return arg, true
		}
	}
	return Arg{}, false
}

// Sensitive reports whether any argument is secret.
func (c Command) Sensitive() bool {
	for _, arg := range c.Args {
		if arg.Secret {
			return true
		}
	}
	return false
}

// Details maps argument names to their values; nil for commands without arguments.
func (c Command) Details() map[string]any {
	if len(c.Args) == 0 {
		return nil
	}
	details := make(map[string]any, len(c.Args))
	for _, arg := range c.Args {
		details[arg.Name] = arg.Detail()
	}
	return details
}

// WorkOrder converts the command to its outbound message.
func (c Command) WorkOrder() protocol.WorkOrder {
	order := protocol.WorkOrder{Order: c.Order}
	if details := c.Details(); details != nil {
		order.Details = details
	}
	return order
}

// Parse turns one line of input into a Command. dir may be nil.
func Parse(input string, g *Grammar, dir Directory) (Command, error) {
	if g == nil {
		return Command{}, fmt.Errorf("parse: nil grammar")
	}

	s := &scanner{src: []rune(input)}
	var spec Spec
	if entry, ok := g.matchAlias(input); ok {
		s.pos = len([]rune(entry.alias))
		spec = g.commands[entry.phrase]
	} else if strings.HasPrefix(input, g.sigil) {
		s.pos = len([]rune(g.sigil))
		matched, err := g.matchPhrase(s)
		if err != nil {
			return Command{}, err
		}
		spec = matched
	} else {
		return Command{}, ErrNotCommand
	}

	args, err := parseArgs(s, spec, dir)
	if err != nil {
		return Command{}, err
	}
	return Command{Phrase: spec.Phrase, Order: spec.WorkOrder, Args: args}, nil
}

// matchPhrase accumulates letter runs left to right and stops at the first
// phrase in the grammar. There is no backtracking.
func (g *Grammar) matchPhrase(s *scanner) (Spec, error) {
	var words []string
	for len(words) < g.maxWords {
		word := s.readWhile(isWordRune, -1)
		if word != "" {
			words = append(words, strings.ToLower(word))
			if spec, ok := g.commands[strings.Join(words, " ")]; ok {
				return spec, nil
			}
		}
		if s.eof() {
			break
		}
		if !s.skipSpace() && word == "" {
			break
		}
	}

	if len(words) == 0 {
		return Spec{}, ErrNoSuchCommand
	}
	return Spec{}, fmt.Errorf("%w: %s", ErrNoSuchCommand, strings.Join(words, " "))
}

func parseArgs(s *scanner, spec Spec, dir Directory) ([]Arg, error) {
	want := len(spec.Args)
	args := make([]Arg, 0, want)
	for _, decl := range spec.Args {
		s.skipSpace()
		value := strings.TrimRightFunc(s.readWhile(decl.Class.Match, -1), unicode.IsSpace)
		if utf8.RuneCountInString(value) > MaxCapture {
			return nil, fmt.Errorf("%w: %s exceeds %d characters", ErrCaptureTooLong, decl.Name, MaxCapture)
		}
		if value == "" {
			break
		}
		arg := Arg{Name: decl.Name, Value: value, Secret: decl.Secret}
		if decl.Resolve && dir != nil {
			if id, ok := dir.LookupID(value); ok {
				arg.ID = id
			}
		}
		args = append(args, arg)
	}

	s.skipSpace()
	have := len(args)
	if have < want {
		return nil, &ArityError{Command: spec.Phrase, Have: have, Want: want}
	}
	if !s.eof() {
		extra := len(strings.Fields(string(s.src[s.pos:])))
		return nil, &ArityError{Command: spec.Phrase, Have: have + extra, Want: want}
	}
	return args, nil
}

type scanner struct {
	src []rune
	pos int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

// readWhile consumes at most max runes matching fn; max < 0 means no bound.
func (s *scanner) readWhile(fn func(rune) bool, max int) string {
	start := s.pos
	for s.pos < len(s.src) && fn(s.src[s.pos]) {
		if max >= 0 && s.pos-start >= max {
			break
		}
		s.pos++
	}
	return string(s.src[start:s.pos])
}

func (s *scanner) skipSpace() bool {
	return s.readWhile(unicode.IsSpace, -1) != ""
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
