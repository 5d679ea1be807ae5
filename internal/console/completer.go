package console

import (
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/saker-ai/spiritio-client/internal/command"
)

// Completer completes command phrases after the sigil and participant
// names after '@' or in a command's name argument.
type Completer struct {
	grammar *command.Grammar
	names   func() []string
}

var _ readline.AutoCompleter = (*Completer)(nil)

// NewCompleter creates a completer. names may be nil.
func NewCompleter(grammar *command.Grammar, names func() []string) *Completer {
	return &Completer{grammar: grammar, names: names}
}

// Do implements readline.AutoCompleter. It returns suffixes for the word
// under the cursor and that word's length.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	head := string(line[:pos])
	word := head[strings.LastIndexAny(head, " \t")+1:]

	if strings.HasPrefix(word, "@") {
		return c.completeName(word[1:])
	}
	if c.grammar != nil && strings.HasPrefix(head, c.grammar.Sigil()) {
		typed := head[len(c.grammar.Sigil()):]
		if prefix, ok := c.nameArgument(typed); ok {
			return c.completeName(prefix)
		}
		return c.completePhrase(typed, word)
	}
	return nil, 0
}

// nameArgument reports whether typed is a full phrase followed by a partial
// first argument that resolves through the participant list.
func (c *Completer) nameArgument(typed string) (string, bool) {
	for _, phrase := range c.grammar.Phrases() {
		words := strings.Fields(phrase)
		fields := strings.Fields(typed)
		if len(fields) != len(words)+1 || strings.HasSuffix(typed, " ") {
			continue
		}
		if strings.ToLower(strings.Join(fields[:len(words)], " ")) != phrase {
			continue
		}
		spec, ok := c.grammar.Lookup(phrase)
		if ok && len(spec.Args) > 0 && spec.Args[0].Resolve {
			return fields[len(words)], true
		}
	}
	return "", false
}

func (c *Completer) completePhrase(typed, word string) ([][]rune, int) {
	typed = strings.ToLower(strings.Join(strings.Fields(typed), " "))
	if word == "" && typed != "" {
		typed += " "
	}
	var out [][]rune
	for _, phrase := range c.grammar.Phrases() {
		if strings.HasPrefix(phrase, typed) && phrase != strings.TrimSpace(typed) {
			out = append(out, []rune(phrase[len(typed):]+" "))
		}
	}
	return out, len([]rune(word))
}

func (c *Completer) completeName(prefix string) ([][]rune, int) {
	if c.names == nil {
		return nil, 0
	}
	names := c.names()
	sort.Strings(names)
	var out [][]rune
	for _, name := range names {
		if strings.HasPrefix(name, prefix) && name != prefix {
			out = append(out, []rune(name[len(prefix):]+" "))
		}
	}
	return out, len([]rune(prefix))
}
