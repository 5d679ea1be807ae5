// Package console reads chat input from a terminal prompt.
package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/command"
	"github.com/saker-ai/spiritio-client/internal/storage"
)

// QuitCommand ends the session from the prompt.
const QuitCommand = "/quit"

// Session receives what the user types.
type Session interface {
	SubmitAsync(line string)
	Leave()
}

// Options configures a Console.
type Options struct {
	Prompt  string
	Grammar *command.Grammar
	// Names lists participants for '@' completion.
	Names func() []string
	// History seeds up/down recall, oldest first.
	History []string
	Stdin   io.ReadCloser
	Stdout  io.Writer
	Logger  *zap.Logger
}

// Console is a readline prompt bound to one session.
type Console struct {
	rl      *readline.Instance
	session Session
	grammar *command.Grammar
	logger  *zap.Logger

	mu     sync.Mutex
	recall *storage.Recall
}

// New creates the prompt.
func New(opts Options, session Session) (*Console, error) {
	if session == nil {
		return nil, errors.New("console: nil session")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Prompt == "" {
		opts.Prompt = "> "
	}

	c := &Console{
		session: session,
		grammar: opts.Grammar,
		logger:  opts.Logger,
		recall:  storage.NewRecall(opts.History),
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 opts.Prompt,
		AutoComplete:           NewCompleter(opts.Grammar, opts.Names),
		InterruptPrompt:        "^C",
		EOFPrompt:              QuitCommand,
		DisableAutoSaveHistory: true,
		Listener:               readline.FuncListener(c.onKey),
		Stdin:                  opts.Stdin,
		Stdout:                 opts.Stdout,
	})
	if err != nil {
		return nil, err
	}
	c.rl = rl
	return c, nil
}

// Output is a writer that keeps the prompt intact while printing.
func (c *Console) Output() io.Writer {
	return c.rl.Stdout()
}

// onKey replaces the line while browsing the command log.
func (c *Console) onKey(line []rune, pos int, key rune) ([]rune, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		next string
		ok   bool
	)
	switch key {
	case readline.CharPrev:
		next, ok = c.recall.Prev()
	case readline.CharNext:
		next, ok = c.recall.Next()
	default:
		return nil, 0, false
	}
	if !ok {
		return nil, 0, false
	}
	runes := []rune(next)
	return runes, len(runes), true
}

// Run reads lines until ctx ends, the input closes or the user quits.
// Leaving the prompt leaves the session.
func (c *Console) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.rl.Close() })
	defer stop()

	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				c.session.Leave()
				return nil
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("console read failed", zap.Error(err))
			}
			c.session.Leave()
			return nil
		}

		c.handleLine(line)
		if strings.TrimSpace(line) == QuitCommand {
			return nil
		}
	}
}

func (c *Console) handleLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if trimmed == QuitCommand {
		c.session.Leave()
		return
	}

	c.mu.Lock()
	if c.grammar.Recordable(line) {
		c.recall.Push(line)
	} else {
		c.recall.Reset()
	}
	c.mu.Unlock()
	c.session.SubmitAsync(line)
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}
