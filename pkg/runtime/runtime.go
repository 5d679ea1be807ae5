package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/capture"
	"github.com/saker-ai/spiritio-client/internal/command"
	appconfig "github.com/saker-ai/spiritio-client/internal/config"
	"github.com/saker-ai/spiritio-client/internal/console"
	apphttp "github.com/saker-ai/spiritio-client/internal/http"
	applogger "github.com/saker-ai/spiritio-client/internal/logger"
	"github.com/saker-ai/spiritio-client/internal/media"
	"github.com/saker-ai/spiritio-client/internal/presenter"
	"github.com/saker-ai/spiritio-client/internal/roster"
	"github.com/saker-ai/spiritio-client/internal/router"
	"github.com/saker-ai/spiritio-client/internal/storage"
	"github.com/saker-ai/spiritio-client/internal/transport"
)

const leaveTimeout = 5 * time.Second

// newBaseLogger builds the configured logger, falling back when the
// configured sinks cannot be opened.
func newBaseLogger(cfg applogger.Config, fallback func(...zap.Option) (*zap.Logger, error)) *zap.Logger {
	logger, err := applogger.New(cfg)
	if err == nil {
		return logger
	}
	logger, fallbackErr := fallback()
	if fallbackErr != nil {
		return zap.NewNop()
	}
	logger.Warn("logger config invalid, using defaults", zap.Error(err))
	return logger
}

// Overrides replace config values from the command line. Empty fields are ignored.
type Overrides struct {
	PageURL    string
	Room       string
	StatusAddr string
}

// IO binds the client to a terminal. Nil fields use the process streams.
type IO struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Client is one chat session: signaling, media, console and the optional status API.
type Client struct {
	cfg       appconfig.Config
	logger    *zap.Logger
	sessionID string

	channel    *transport.Channel
	router     *router.Router
	roster     *roster.Roster
	console    *console.Console
	commandLog *storage.CommandLog
	status     *apphttp.Server

	shutdownOnce sync.Once
}

// New loads the config and assembles a session. Nothing connects until Run.
func New(configPath string, overrides Overrides, stdio IO) (*Client, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load spiritio config: %w", err)
	}
	applyOverrides(&cfg, overrides)

	baseLogger := newBaseLogger(cfg.Log, zap.NewProduction)
	sessionID := uuid.NewString()
	logger := applogger.ForSession(baseLogger, sessionID)
	logger.Info("spiritio config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("page_url", cfg.PageURL),
		zap.String("room", cfg.Room),
		zap.String("level", cfg.Log.Level),
	)

	loc, err := transport.ParseLocation(cfg.PageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if cfg.Room != "" {
		loc = loc.WithRoom(cfg.Room)
	}

	grammar, err := loadGrammar(cfg.GrammarPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	commandLog, err := storage.OpenCommandLog(cfg.Storage.CommandLogPath)
	if err != nil {
		return nil, err
	}
	history, err := commandLog.All(context.Background())
	if err != nil {
		logger.Warn("command log unreadable", zap.Error(err))
		history = nil
	}

	credentials := storage.NewCredentialStore(
		cfg.Storage.CredentialService,
		cfg.Storage.CredentialKey,
		cfg.Storage.CredentialFile,
		logger,
	)

	channel := transport.New(transport.Config{
		URL:              loc.Endpoint(cfg.WSPath),
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		SendQueue:        cfg.Transport.SendQueue,
	}, logger.Named("transport"))

	devices := capture.New(capture.Config{
		Enabled:     cfg.Media.Enabled,
		Video:       cfg.Media.Video,
		Audio:       cfg.Media.Audio,
		AudioFile:   cfg.Media.AudioFile,
		VideoFile:   cfg.Media.VideoFile,
		SampleRate:  cfg.Media.SampleRate,
		FrameMs:     cfg.Media.FrameMs,
		OpusBitrate: cfg.Media.OpusBitrate,
	}, logger.Named("capture"))

	session, err := media.NewSession(media.Config{
		ICEServers:  cfg.Media.ICEServers,
		Constraints: media.Constraints{Video: cfg.Media.Video, Audio: cfg.Media.Audio},
	}, devices, logger.Named("media"))
	if err != nil {
		_ = commandLog.Close()
		return nil, err
	}

	stdout := stdio.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	term := presenter.New(stdout, presenter.Options{
		RecordDir: cfg.Media.RecordDir,
		Logger:    logger.Named("presenter"),
	})

	members := roster.New()
	r, err := router.New(router.Options{
		SessionID:   sessionID,
		Location:    loc,
		Grammar:     grammar,
		Sender:      channel,
		Media:       session,
		Presenter:   term,
		Credentials: credentials,
		CommandLog:  commandLog,
		Roster:      members,
		TaskQueue:   cfg.Router.TaskQueue,
		Logger:      logger.Named("router"),
	})
	if err != nil {
		_ = commandLog.Close()
		return nil, err
	}
	channel.AssignCallbacks(r.Callbacks())

	prompt, err := console.New(console.Options{
		Grammar: grammar,
		Names:   members.Names,
		History: history,
		Stdin:   stdio.Stdin,
		Stdout:  stdout,
		Logger:  logger.Named("console"),
	}, r)
	if err != nil {
		_ = commandLog.Close()
		return nil, fmt.Errorf("open console: %w", err)
	}
	term.SetOutput(prompt.Output())

	client := &Client{
		cfg:        cfg,
		logger:     logger,
		sessionID:  sessionID,
		channel:    channel,
		router:     r,
		roster:     members,
		console:    prompt,
		commandLog: commandLog,
	}
	if cfg.StatusAddr != "" {
		engine := apphttp.NewRouter(r, members, logger.Named("http"))
		client.status = apphttp.NewServer(cfg.StatusAddr, engine, logger.Named("http"))
	}
	return client, nil
}

func applyOverrides(cfg *appconfig.Config, overrides Overrides) {
	if v := strings.TrimSpace(overrides.PageURL); v != "" {
		cfg.PageURL = v
	}
	if v := strings.TrimSpace(overrides.Room); v != "" {
		cfg.Room = v
	}
	if v := strings.TrimSpace(overrides.StatusAddr); v != "" {
		cfg.StatusAddr = v
	}
}

func loadGrammar(path string) (*command.Grammar, error) {
	if path == "" {
		return command.DefaultGrammar()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar: %w", err)
	}
	grammar, err := command.LoadGrammar(data)
	if err != nil {
		return nil, fmt.Errorf("load grammar %s: %w", path, err)
	}
	return grammar, nil
}

// SessionID identifies this run in logs and in the status API.
func (c *Client) SessionID() string {
	if c == nil {
		return ""
	}
	return c.sessionID
}

// Run connects and serves the prompt until the session ends or ctx is cancelled.
// Cancelling ctx leaves the room before returning.
func (c *Client) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() {
		if err := c.router.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("router stopped", zap.Error(err))
		}
	}()

	statusErr := make(chan error, 1)
	if c.status != nil {
		go func() { statusErr <- c.status.Serve() }()
	}

	go func() {
		if err := c.channel.Connect(ctx); err != nil {
			c.logger.Warn("signaling connect failed", zap.Error(err))
		}
	}()

	promptCtx, stopPrompt := context.WithCancel(ctx)
	defer stopPrompt()
	go func() {
		if err := c.console.Run(promptCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("console stopped", zap.Error(err))
		}
	}()

	var runErr error
	select {
	case <-c.router.Closed():
	case <-ctx.Done():
		c.router.Leave()
		c.waitClosed()
	case err := <-statusErr:
		if err != nil {
			runErr = fmt.Errorf("status server: %w", err)
			c.router.Leave()
			c.waitClosed()
		}
	}

	stopPrompt()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (c *Client) waitClosed() {
	timer := time.NewTimer(leaveTimeout)
	defer timer.Stop()
	select {
	case <-c.router.Closed():
	case <-timer.C:
		c.logger.Warn("leave timed out")
	}
}

// Shutdown releases the prompt, the status server and local storage.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var err error
	c.shutdownOnce.Do(func() {
		_ = c.console.Close()
		if c.status != nil {
			if shutdownErr := c.status.Shutdown(ctx); shutdownErr != nil {
				c.logger.Error("status server shutdown failed", zap.Error(shutdownErr))
			}
		}
		err = c.commandLog.Close()
		_ = c.logger.Sync()
	})
	return err
}
