package command

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	appdefaults "github.com/saker-ai/spiritio-client/config"
)

// Argument declares one positional argument of a command.
type Argument struct {
	Name  string
	Class CharClass
	// Resolve sends the captured text through the name to id lookup.
	Resolve bool
	// Secret keeps lines carrying this argument out of the command log.
	Secret bool
}

// Spec is one grammar entry.
type Spec struct {
	Phrase    string
	WorkOrder string
	Args      []Argument
	Aliases   []string
}

func (s Spec) clone() Spec {
	s.Args = append([]Argument(nil), s.Args...)
	s.Aliases = append([]string(nil), s.Aliases...)
	return s
}

// Grammar is the read-only command table. It is safe for concurrent use.
type Grammar struct {
	sigil    string
	commands map[string]Spec
	aliases  []aliasEntry
	maxWords int
}

type aliasEntry struct {
	alias  string
	phrase string
}

// NewGrammar validates specs and builds a grammar.
func NewGrammar(sigil string, specs []Spec) (*Grammar, error) {
	if sigil == "" || strings.IndexFunc(sigil, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsSpace(r) }) >= 0 {
		return nil, fmt.Errorf("invalid command sigil %q", sigil)
	}

	g := &Grammar{sigil: sigil, commands: make(map[string]Spec, len(specs))}
	for _, spec := range specs {
		phrase, err := normalizePhrase(spec.Phrase)
		if err != nil {
			return nil, err
		}
		if _, dup := g.commands[phrase]; dup {
			return nil, fmt.Errorf("duplicate command %q", phrase)
		}
		if strings.TrimSpace(spec.WorkOrder) == "" {
			return nil, fmt.Errorf("command %q: missing work order", phrase)
		}
		if err := validateArgs(phrase, spec.Args); err != nil {
			return nil, err
		}
		spec = spec.clone()
		spec.Phrase = phrase
		g.commands[phrase] = spec
		if words := len(strings.Fields(phrase)); words > g.maxWords {
			g.maxWords = words
		}
	}

	seen := make(map[string]string)
	for _, phrase := range g.Phrases() {
		for _, alias := range g.commands[phrase].Aliases {
			if err := g.validateAlias(alias); err != nil {
				return nil, fmt.Errorf("command %q: %w", phrase, err)
			}
			if owner, dup := seen[alias]; dup {
				return nil, fmt.Errorf("alias %q used by %q and %q", alias, owner, phrase)
			}
			seen[alias] = phrase
			g.aliases = append(g.aliases, aliasEntry{alias: alias, phrase: phrase})
		}
	}
	sort.SliceStable(g.aliases, func(i, j int) bool {
		return len(g.aliases[i].alias) > len(g.aliases[j].alias)
	})
	return g, nil
}

func normalizePhrase(raw string) (string, error) {
	words := strings.Fields(strings.ToLower(raw))
	if len(words) == 0 {
		return "", fmt.Errorf("empty command phrase")
	}
	for _, word := range words {
		for _, r := range word {
			if !isWordRune(r) {
				return "", fmt.Errorf("command %q: phrases may only contain letters", raw)
			}
		}
	}
	return strings.Join(words, " "), nil
}

func validateArgs(phrase string, args []Argument) error {
	names := make(map[string]struct{}, len(args))
	for i, arg := range args {
		if arg.Name == "" {
			return fmt.Errorf("command %q: argument %d has no name", phrase, i)
		}
		if _, dup := names[arg.Name]; dup {
			return fmt.Errorf("command %q: duplicate argument %q", phrase, arg.Name)
		}
		names[arg.Name] = struct{}{}
		if arg.Class.spec == "" {
			return fmt.Errorf("command %q: argument %q has no character class", phrase, arg.Name)
		}
		if arg.Class.MatchesSpace() && i != len(args)-1 {
			return fmt.Errorf("command %q: only the last argument may capture whitespace", phrase)
		}
	}
	return nil
}

func (g *Grammar) validateAlias(alias string) error {
	switch {
	case alias == "":
		return fmt.Errorf("empty alias")
	case strings.IndexFunc(alias, unicode.IsSpace) >= 0:
		return fmt.Errorf("alias %q contains whitespace", alias)
	case strings.HasPrefix(alias, g.sigil) || strings.HasPrefix(g.sigil, alias):
		return fmt.Errorf("alias %q overlaps the command sigil", alias)
	}
	if _, clash := g.commands[strings.ToLower(alias)]; clash {
		return fmt.Errorf("alias %q collides with a command phrase", alias)
	}
	return nil
}

// Sigil returns the command sigil.
func (g *Grammar) Sigil() string {
	return g.sigil
}

// Lookup returns a copy of the spec registered for phrase.
func (g *Grammar) Lookup(phrase string) (Spec, bool) {
	spec, ok := g.commands[phrase]
	if !ok {
		return Spec{}, false
	}
	return spec.clone(), true
}

// Phrases lists command phrases in sorted order.
func (g *Grammar) Phrases() []string {
	phrases := make([]string, 0, len(g.commands))
	for phrase := range g.commands {
		phrases = append(phrases, phrase)
	}
	sort.Strings(phrases)
	return phrases
}

// IsCommand reports whether line would be handed to the parser.
func (g *Grammar) IsCommand(line string) bool {
	if strings.HasPrefix(line, g.sigil) {
		return true
	}
	_, ok := g.matchAlias(line)
	return ok
}

// Recordable reports whether line belongs in the command log: a command
// that parses and carries no secret argument.
func (g *Grammar) Recordable(line string) bool {
	if g == nil || !g.IsCommand(line) {
		return false
	}
	cmd, err := Parse(line, g, nil)
	return err == nil && !cmd.Sensitive()
}

func (g *Grammar) matchAlias(line string) (aliasEntry, bool) {
	for _, entry := range g.aliases {
		if strings.HasPrefix(line, entry.alias) {
			return entry, true
		}
	}
	return aliasEntry{}, false
}

type grammarFile struct {
	CommandSigil string                 `yaml:"command_sigil"`
	Classes      map[string]string      `yaml:"classes"`
	Commands     map[string]commandFile `yaml:"commands"`
}

type commandFile struct {
	WorkOrder string    `yaml:"work_order"`
	Aliases   []string  `yaml:"aliases"`
	Args      []argFile `yaml:"args"`
}

type argFile struct {
	Name    string `yaml:"name"`
	Class   string `yaml:"class"`
	Resolve bool   `yaml:"resolve"`
	Secret  bool   `yaml:"secret"`
}

// LoadGrammar decodes and validates a YAML grammar.
func LoadGrammar(data []byte) (*Grammar, error) {
	var file grammarFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode grammar: %w", err)
	}

	classes := make(map[string]CharClass, len(file.Classes))
	for name, spec := range file.Classes {
		class, err := ParseClass(spec)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
		classes[name] = class
	}

	specs := make([]Spec, 0, len(file.Commands))
	for phrase, cmd := range file.Commands {
		spec := Spec{Phrase: phrase, WorkOrder: cmd.WorkOrder, Aliases: cmd.Aliases}
		for _, arg := range cmd.Args {
			class, ok := classes[arg.Class]
			if !ok {
				return nil, fmt.Errorf("command %q: argument %q uses unknown class %q", phrase, arg.Name, arg.Class)
			}
			spec.Args = append(spec.Args, Argument{Name: arg.Name, Class: class, Resolve: arg.Resolve, Secret: arg.Secret})
		}
		specs = append(specs, spec)
	}

	sigil := file.CommandSigil
	if sigil == "" {
		sigil = "/"
	}
	return NewGrammar(sigil, specs)
}

// DefaultGrammar loads the embedded grammar.
func DefaultGrammar() (*Grammar, error) {
	return LoadGrammar(appdefaults.Grammar)
}
