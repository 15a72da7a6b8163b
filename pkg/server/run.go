package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/elk/pkg/distribution"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// Server modes accepted by [Run].
const (
	ModeStdio  = "stdio"
	ModeSocket = "socket"
)

// RunOptions configures [Run].
type RunOptions struct {
	Mode      string
	Script    string
	Installer Installer
	Env       []string
	StderrLog io.Writer

	Stdin  io.Reader // default os.Stdin
	Stdout io.Writer // default os.Stdout
	Logger *log.Logger
}

// Run starts a server in the given mode and connects it to the caller.
//
// In stdio mode every non-empty stdin line is forwarded and the matching
// response line is written to Stdout; at stdin EOF the server's stdin is
// closed and its remaining output drained. In socket mode the server's
// output is logged until it exits. The server is always stopped on return;
// a cancelled ctx stops it early and is not an error.
func Run(ctx context.Context, opts RunOptions) error {
	if opts.Mode != ModeStdio && opts.Mode != ModeSocket {
		return elkerrors.New(elkerrors.ErrCodeInvalidInput, "invalid mode: %s. Must be 'stdio' or 'socket'", opts.Mode)
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := NewClient(Options{Script: opts.Script, Installer: opts.Installer, Logger: opts.Logger})
	inst, err := c.installation(ctx)
	if err != nil {
		return err
	}

	opts.Logger.Info("Running ELK server", "mode", opts.Mode, "command", inst.Script+" --"+opts.Mode)
	p, err := startProcess(ctx, processConfig{
		inst:      inst,
		args:      []string{"--" + opts.Mode},
		env:       opts.Env,
		stderrLog: opts.StderrLog,
		logger:    opts.Logger,
	})
	if err != nil {
		return elkerrors.Wrap(elkerrors.ErrCodeServerUnavailable, err, "failed to start ELK server %s", inst.Script)
	}
	defer p.stop(defaultStopTimeout)

	go logStderr(p, opts.Logger)

	errc := make(chan error, 1)
	go func() {
		if opts.Mode == ModeStdio {
			errc <- pipeStdio(p, opts.Stdin, opts.Stdout)
		} else {
			errc <- logStdout(p, opts.Logger)
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		opts.Logger.Info("Stopping ELK server")
		return nil
	}
}

// pipeStdio forwards requests line by line, then drains the remaining output.
func pipeStdio(p *process, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		req := make([]byte, 0, len(line)+1)
		req = append(append(req, line...), '\n')
		if _, err := p.stdin.Write(req); err != nil {
			return elkerrors.Wrap(elkerrors.ErrCodeConnectionFailed, err, "ELK server connection failed: %v", err)
		}
		resp, err := p.stdout.ReadBytes('\n')
		if len(resp) > 0 {
			if _, werr := out.Write(append(bytes.TrimRight(resp, "\r\n"), '\n')); werr != nil {
				return werr
			}
		}
		if err != nil {
			return serverGone(err)
		}
	}
	if err := sc.Err(); err != nil {
		return elkerrors.Wrap(elkerrors.ErrCodeInvalidInput, err, "reading requests")
	}

	_ = p.stdin.Close()
	_, err := io.Copy(out, p.stdout)
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	<-p.done
	return nil
}

// logStdout logs server output until the process closes stdout.
func logStdout(p *process, logger *log.Logger) error {
	for {
		line, err := p.stdout.ReadString('\n')
		if trimmed := bytes.TrimRight([]byte(line), "\r\n"); len(trimmed) > 0 {
			logger.Info(string(trimmed))
		}
		if err != nil {
			<-p.done
			return nil
		}
	}
}

func logStderr(p *process, logger *log.Logger) {
	for line := range p.stderr {
		if !isBenign(line) {
			logger.Error(line)
		}
	}
}

func serverGone(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return elkerrors.New(elkerrors.ErrCodeServerFailed, "ELK server exited")
	}
	return elkerrors.Wrap(elkerrors.ErrCodeConnectionFailed, err, "ELK server connection failed: %v", err)
}

var _ Installer = (*distribution.Manager)(nil)
