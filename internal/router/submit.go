package router

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/command"
	"github.com/saker-ai/spiritio-client/internal/protocol"
)

// submit parses a line of input into a work order. Lines that are not
// commands are sent as chat. Parse failures become diagnostics. Only
// commands without secret arguments reach the command log.
func (r *Router) submit(ctx context.Context, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	cmd, err := command.Parse(line, r.grammar, r.roster)
	switch {
	case errors.Is(err, command.ErrNotCommand):
		return r.send(protocol.OrderUserMessage, line)
	case err != nil:
		r.diagnostic(err.Error())
		return nil
	}

	if !cmd.Sensitive() {
		r.record(ctx, line)
	}
	order := cmd.WorkOrder()
	return r.send(order.Order, order.Details)
}

func (r *Router) record(ctx context.Context, line string) {
	if r.commandLog == nil {
		return
	}
	if err := r.commandLog.Append(ctx, line); err != nil {
		r.logger.Warn("command log append failed", zap.Error(err))
	}
}
