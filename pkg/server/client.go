package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/elk/pkg/distribution"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

const (
	defaultStopTimeout = time.Second
	defaultStderrGrace = 50 * time.Millisecond
	exitStderrTimeout  = time.Second
)

// Installer provides a runnable server installation.
// *distribution.Manager implements it.
type Installer interface {
	Ensure(ctx context.Context) (distribution.Installation, error)
}

// Options configures a [Client].
type Options struct {
	// Script is the server launcher. When empty, Installer is asked for one
	// on every process start.
	Script    string
	Installer Installer

	// Env is appended to the inherited environment of the server process.
	Env []string

	// StderrLog receives every stderr line of the server, e.g. a rotating
	// file from NewStderrLog.
	StderrLog io.Writer

	// StderrGrace is how long to wait after a response for stderr output
	// that belongs to it.
	StderrGrace time.Duration

	// StopTimeout is how long Close waits after SIGTERM before killing.
	StopTimeout time.Duration

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.StderrGrace <= 0 {
		o.StderrGrace = defaultStderrGrace
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaultStopTimeout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Client talks to a single ELK server process. It is safe for concurrent
// use; requests are serialized.
type Client struct {
	opts Options

	mu     sync.Mutex
	proc   *process
	closed bool
}

// NewClient creates a Client. No process is started until the first request.
func NewClient(opts Options) *Client {
	return &Client{opts: opts.withDefaults()}
}

// Layout validates g, sends it to the server and decodes the layout.
func (c *Client) Layout(ctx context.Context, g *graph.Graph) (graph.LayoutData, error) {
	if err := graph.Validate(g); err != nil {
		return nil, err
	}
	payload, err := graph.MarshalGraph(g)
	if err != nil {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidGraph, err, "cannot encode graph %q", g.ID)
	}
	line, err := c.LayoutRaw(ctx, payload)
	if err != nil {
		return nil, err
	}
	data, err := graph.DecodeResponse(line)
	if err != nil {
		var se *graph.ServerError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, elkerrors.Wrap(elkerrors.ErrCodeServerError, err, "invalid response from ELK server")
	}
	return data, nil
}

// LayoutRaw sends one pre-encoded graph and returns the raw response line
// without its trailing newline. payload must not contain newlines.
func (c *Client) LayoutRaw(ctx context.Context, payload []byte) ([]byte, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "empty request")
	}
	if bytes.ContainsAny(payload, "\r\n") {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "request must be a single line of JSON")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, elkerrors.New(elkerrors.ErrCodeServerUnavailable, "ELK server client is closed")
	}
	p, err := c.ensureProcess(ctx)
	if err != nil {
		return nil, err
	}
	for _, line := range p.drainStderr() {
		c.opts.Logger.Debug("Discarding stale ELK server output", "line", line)
	}

	type result struct {
		line []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := c.exchange(p, payload)
		ch <- result{line, err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		// The protocol state is unknown once a request is abandoned.
		p.kill()
		<-ch
		c.proc = nil
		return nil, ctx.Err()
	}
}

// exchange writes one request and reads one response. Called with c.mu held.
func (c *Client) exchange(p *process, payload []byte) ([]byte, error) {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(append(buf, payload...), '\n')
	if _, err := p.stdin.Write(buf); err != nil {
		c.discard(p)
		return nil, elkerrors.Wrap(elkerrors.ErrCodeConnectionFailed, err, "ELK server connection failed: %v", err)
	}

	line, err := p.stdout.ReadBytes('\n')
	line = bytes.TrimRight(line, "\r\n")
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			stderr := p.remainingStderr(exitStderrTimeout)
			c.discard(p)
			return nil, elkerrors.New(elkerrors.ErrCodeServerFailed, "ELK server failed: %s", strings.Join(stderr, "\n"))
		}
		c.discard(p)
		return nil, elkerrors.Wrap(elkerrors.ErrCodeConnectionFailed, err, "ELK server connection failed: %v", err)
	}
	if len(line) == 0 {
		// Anything the server writes after a blank line would be paired
		// with the next request.
		c.discard(p)
		return nil, elkerrors.New(elkerrors.ErrCodeServerFailed, "ELK server failed: empty response")
	}

	if msg, ok := firstError(p.collectStderr(c.opts.StderrGrace)); ok {
		return nil, elkerrors.New(elkerrors.ErrCodeServerError, "ELK server error: %s", msg)
	}
	return line, nil
}

// discard stops p and forgets it so the next request starts a new process.
func (c *Client) discard(p *process) {
	go p.kill()
	if c.proc == p {
		c.proc = nil
	}
}

// ensureProcess returns the live process, starting one if needed.
// Called with c.mu held.
func (c *Client) ensureProcess(ctx context.Context) (*process, error) {
	if c.proc != nil && !c.proc.exited() {
		return c.proc, nil
	}
	if c.proc != nil {
		c.opts.Logger.Info("ELK server exited, restarting", "pid", c.proc.pid(), "err", c.proc.waitErr)
		c.proc.kill()
		c.proc = nil
	}

	inst, err := c.installation(ctx)
	if err != nil {
		return nil, err
	}
	p, err := startProcess(ctx, processConfig{
		inst:      inst,
		args:      []string{"--stdio"},
		env:       c.opts.Env,
		stderrLog: c.opts.StderrLog,
		logger:    c.opts.Logger,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, elkerrors.Wrap(elkerrors.ErrCodeServerUnavailable, err, "failed to start ELK server %s", inst.Script)
	}
	c.proc = p
	return p, nil
}

func (c *Client) installation(ctx context.Context) (distribution.Installation, error) {
	if c.opts.Script != "" {
		return distribution.Installation{Script: c.opts.Script}, nil
	}
	if c.opts.Installer == nil {
		return distribution.Installation{}, elkerrors.New(elkerrors.ErrCodeServerUnavailable, "no ELK server script or installer configured")
	}
	return c.opts.Installer.Ensure(ctx)
}

// PID returns the process id of the running server, or 0.
func (c *Client) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc == nil || c.proc.exited() {
		return 0
	}
	return c.proc.pid()
}

// Close stops the server process. Further requests fail with
// SERVER_UNAVAILABLE. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.proc != nil {
		c.proc.stop(c.opts.StopTimeout)
		c.proc = nil
	}
	return nil
}
