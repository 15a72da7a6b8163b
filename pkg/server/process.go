package server

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/elk/pkg/distribution"
	"github.com/matzehuels/elk/pkg/graph"
	"github.com/matzehuels/elk/pkg/observability"
)

// stderrBuffer bounds the stderr lines queued for the request in flight.
const stderrBuffer = 256

// process is one running ELK server with its pipes.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	outR   *os.File

	// stderr yields lines written by the server; closed at stderr EOF.
	stderr chan string
	// done is closed once the process has been reaped; waitErr is set before.
	done    chan struct{}
	waitErr error
}

type processConfig struct {
	inst      distribution.Installation
	args      []string
	env       []string
	stderrLog io.Writer
	logger    *log.Logger
}

// startProcess launches the server. The returned process lives until it
// exits or is stopped; ctx only bounds the launch itself.
func startProcess(ctx context.Context, cfg processConfig) (*process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.inst.Script, cfg.args...)
	cmd.Env = append(os.Environ(), cfg.env...)
	if cfg.inst.Java.Source == "JAVA_HOME" {
		cmd.Env = append(cmd.Env, "JAVA_HOME="+filepath.Dir(filepath.Dir(cfg.inst.Java.Path)))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// Own the read ends so cmd.Wait never closes them under a reader.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, err
	}
	outW.Close()
	errW.Close()

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(outR),
		outR:   outR,
		stderr: make(chan string, stderrBuffer),
		done:   make(chan struct{}),
	}

	pid := cmd.Process.Pid
	hooks := observability.Server()
	hooks.OnServerStart(context.Background(), pid)
	cfg.logger.Debug("Started ELK server", "pid", pid, "script", cfg.inst.Script)

	go p.readStderr(errR, cfg)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
		hooks.OnServerExit(context.Background(), pid, p.waitErr)
		cfg.logger.Debug("ELK server exited", "pid", pid, "err", p.waitErr)
	}()
	return p, nil
}

func (p *process) readStderr(r *os.File, cfg processConfig) {
	defer close(p.stderr)
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		observability.Server().OnServerStderr(context.Background(), line)
		if cfg.stderrLog != nil {
			_, _ = io.WriteString(cfg.stderrLog, line+"\n")
		}
		cfg.logger.Debug("ELK server stderr", "line", line)
		select {
		case p.stderr <- line:
		default:
			// Nobody is consuming; keep the newest lines.
			select {
			case <-p.stderr:
			default:
			}
			select {
			case p.stderr <- line:
			default:
			}
		}
	}
}

// exited reports whether the process has been reaped.
func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *process) pid() int { return p.cmd.Process.Pid }

// drainStderr discards queued stderr lines and returns them.
func (p *process) drainStderr() []string {
	var lines []string
	for {
		select {
		case line, ok := <-p.stderr:
			if !ok {
				return lines
			}
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

// collectStderr returns the stderr lines that followed a response. The
// server prints at least one line per request, so it waits up to grace for
// the first line and then takes whatever else is queued.
func (p *process) collectStderr(grace time.Duration) []string {
	if lines := p.drainStderr(); len(lines) > 0 {
		return lines
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case line, ok := <-p.stderr:
		if !ok {
			return nil
		}
		return append([]string{line}, p.drainStderr()...)
	case <-t.C:
		return nil
	}
}

// remainingStderr waits up to timeout for stderr to reach EOF and returns
// everything still queued.
func (p *process) remainingStderr(timeout time.Duration) []string {
	var lines []string
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case line, ok := <-p.stderr:
			if !ok {
				return lines
			}
			lines = append(lines, line)
		case <-t.C:
			return lines
		}
	}
}

// firstError returns the first stderr line that is not the benign
// end-of-input notice.
func firstError(lines []string) (string, bool) {
	for _, line := range lines {
		if isBenign(line) {
			continue
		}
		return line, true
	}
	return "", false
}

func isBenign(line string) bool {
	line = strings.TrimRight(line, " \r")
	return line == "" || strings.HasSuffix(line, graph.BenignServerMessage)
}

// stop closes stdin, asks the process to terminate and kills it if it has
// not exited after timeout. Safe to call more than once.
func (p *process) stop(timeout time.Duration) {
	_ = p.stdin.Close()
	if !p.exited() {
		if runtime.GOOS == "windows" {
			_ = p.cmd.Process.Kill()
		} else {
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
		}
		t := time.NewTimer(timeout)
		select {
		case <-p.done:
		case <-t.C:
			_ = p.cmd.Process.Kill()
			<-p.done
		}
		t.Stop()
	}
	_ = p.outR.Close()
}

// kill terminates the process immediately.
func (p *process) kill() {
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	<-p.done
	_ = p.outR.Close()
}
