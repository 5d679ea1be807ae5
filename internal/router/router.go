// Package router is the signaling engine of a chat session. It dispatches
// inbound server messages, turns local actions into work orders and owns
// every call into the media session.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/command"
	"github.com/saker-ai/spiritio-client/internal/protocol"
	"github.com/saker-ai/spiritio-client/internal/roster"
	"github.com/saker-ai/spiritio-client/internal/transport"
)

// ErrStopped is returned by Run when called twice.
var ErrStopped = errors.New("router: already running or stopped")

// Options wires a router to its collaborators. Credentials and CommandLog may be nil.
type Options struct {
	SessionID   string
	Location    transport.Location
	Grammar     *command.Grammar
	Sender      Sender
	Media       Media
	Presenter   Presenter
	Credentials Credentials
	CommandLog  CommandLog
	Roster      *roster.Roster
	TaskQueue   int
	Logger      *zap.Logger
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Router serializes all session work through one task loop. Transport and
// media callbacks only enqueue tasks; each task runs to completion before
// the next one starts.
type Router struct {
	sessionID   string
	grammar     *command.Grammar
	sender      Sender
	media       Media
	presenter   Presenter
	credentials Credentials
	commandLog  CommandLog
	roster      *roster.Roster
	logger      *zap.Logger

	tasks   chan task
	stopped chan struct{}
	closed  chan struct{}

	runOnce   sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once

	// Owned by the task loop.
	location    transport.Location
	seenStreams map[string]struct{}
	videos      map[string]VideoHandle

	mu     sync.RWMutex
	status Status
}

// New creates a router. Call Callbacks to obtain the transport hooks, then Run.
func New(opts Options) (*Router, error) {
	if opts.Sender == nil || opts.Media == nil || opts.Presenter == nil {
		return nil, errors.New("router: sender, media and presenter are required")
	}
	if opts.Grammar == nil {
		g, err := command.DefaultGrammar()
		if err != nil {
			return nil, err
		}
		opts.Grammar = g
	}
	if opts.Roster == nil {
		opts.Roster = roster.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TaskQueue <= 0 {
		opts.TaskQueue = 256
	}

	r := &Router{
		sessionID:   opts.SessionID,
		grammar:     opts.Grammar,
		sender:      opts.Sender,
		media:       opts.Media,
		presenter:   opts.Presenter,
		credentials: opts.Credentials,
		commandLog:  opts.CommandLog,
		roster:      opts.Roster,
		logger:      opts.Logger,
		tasks:       make(chan task, opts.TaskQueue),
		stopped:     make(chan struct{}),
		closed:      make(chan struct{}),
		seenStreams: make(map[string]struct{}),
		videos:      make(map[string]VideoHandle),
	}
	r.status = Status{
		SessionID: opts.SessionID,
		PageURL:   opts.Location.String(),
		Room:      opts.Location.Room(),
		Channel:   ChannelConnecting,
		Media:     string(opts.Media.State()),
	}
	r.location = opts.Location
	return r, nil
}

// Callbacks returns the transport hooks. Each enqueues a task.
func (r *Router) Callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnOpen: func() {
			r.post("open", func(context.Context) error {
				r.handleOpen()
				return nil
			})
		},
		OnError: func(err error) {
			r.post("transport error", func(context.Context) error {
				r.handleTransportError(err)
				return nil
			})
		},
		OnMessage: func(data []byte) {
			raw := append([]byte(nil), data...)
			r.post("message", func(ctx context.Context) error {
				return r.dispatch(ctx, raw)
			})
		},
		OnClose: func(err error) {
			r.post("close", func(context.Context) error {
				r.handleClose(err)
				return nil
			})
		},
	}
}

// Run executes tasks until ctx ends. It returns ctx.Err().
func (r *Router) Run(ctx context.Context) error {
	started := false
	r.runOnce.Do(func() { started = true })
	if !started {
		return ErrStopped
	}
	defer r.stopOnce.Do(func() { close(r.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-r.tasks:
			r.execute(ctx, t)
		}
	}
}

// Closed is closed once the signaling channel has closed and media is torn down.
func (r *Router) Closed() <-chan struct{} {
	return r.closed
}

// HandleMessage dispatches one raw inbound message inside the failure boundary.
// It must not run concurrently with Run.
func (r *Router) HandleMessage(ctx context.Context, data []byte) {
	r.execute(ctx, task{name: "message", fn: func(ctx context.Context) error {
		return r.dispatch(ctx, data)
	}})
}

// Submit handles one line of user input inside the failure boundary.
// It must not run concurrently with Run.
func (r *Router) Submit(ctx context.Context, line string) {
	r.execute(ctx, task{name: "submit", fn: func(ctx context.Context) error {
		return r.submit(ctx, line)
	}})
}

// SubmitAsync enqueues a line of user input for the task loop.
func (r *Router) SubmitAsync(line string) {
	r.post("submit", func(ctx context.Context) error {
		return r.submit(ctx, line)
	})
}

// Leave ends the session from the local side: the server is told the
// connection is closing and the channel is closed.
func (r *Router) Leave() {
	r.post("leave", func(context.Context) error {
		return r.leave()
	})
}

func (r *Router) post(name string, fn func(ctx context.Context) error) {
	select {
	case r.tasks <- task{name: name, fn: fn}:
	case <-r.stopped:
		r.logger.Debug("router stopped, task dropped", zap.String("task", name))
	}
}

// execute is the failure boundary: errors and panics become diagnostics,
// except decode errors which are only logged.
func (r *Router) execute(ctx context.Context, t task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("router task panicked",
				zap.String("task", t.name),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			r.diagnostic(fmt.Sprintf("error: %v", rec))
		}
	}()

	err := t.fn(ctx)
	if err == nil {
		return
	}
	if protocol.IsDecodeError(err) {
		r.logger.Warn("inbound message dropped", zap.String("task", t.name), zap.Error(err))
		return
	}
	r.logger.Warn("router task failed", zap.String("task", t.name), zap.Error(err))
	r.diagnostic(fmt.Sprintf("error: %v", err))
}

// drain runs queued tasks without a loop. Only used where Run is not active.
func (r *Router) drain(ctx context.Context) {
	for {
		select {
		case t := <-r.tasks:
			r.execute(ctx, t)
		default:
			return
		}
	}
}

func (r *Router) diagnostic(text string) {
	r.presenter.AddMessage(Message{Kind: KindDiagnostic, From: AdminSender, Text: text, Private: true})
}

func (r *Router) notice(text string) {
	r.presenter.AddMessage(Message{Kind: KindNotice, Text: text})
}

func (r *Router) send(order string, details any) error {
	if err := r.sender.Send(protocol.WorkOrder{Order: order, Details: details}); err != nil {
		return fmt.Errorf("send %s: %w", order, err)
	}
	r.logger.Debug("work order sent", zap.String("order", order))
	return nil
}

func (r *Router) handleOpen() {
	r.updateStatus(func(s *Status) { s.Channel = ChannelOpen })
	r.diagnostic("able to receive messages")
}

func (r *Router) handleTransportError(err error) {
	r.logger.Warn("signaling error", zap.Error(err))
	r.diagnostic(fmt.Sprintf("error: %v", err))
}

func (r *Router) handleClose(err error) {
	if err != nil {
		r.logger.Info("signaling closed", zap.Error(err))
	}
	r.updateStatus(func(s *Status) { s.Channel = ChannelClosed })
	r.diagnostic("unable to receive messages")

	if closeErr := r.media.ClosePeerConnection(); closeErr != nil {
		r.logger.Warn("media teardown failed", zap.Error(closeErr))
	}
	r.presenter.RemoveRemoteVideos()
	r.videos = make(map[string]VideoHandle)
	r.updateStatus(func(s *Status) {
		s.Media = string(r.media.State())
		s.RemoteStreams = 0
	})
	r.closeOnce.Do(func() { close(r.closed) })
}

func (r *Router) leave() error {
	if r.sender.Open() {
		if err := r.send(protocol.OrderCloseConnection, ""); err != nil {
			r.logger.Warn("close notification failed", zap.Error(err))
		}
	}
	return r.sender.Close()
}
