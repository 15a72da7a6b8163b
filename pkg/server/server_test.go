package server

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/elk/pkg/distribution"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

// fakeServer answers each request according to the graph id it contains.
const fakeServer = `#!/bin/sh
if [ "$1" = "--socket" ]; then
  echo "Listening on port 5007"
  echo "socket closed" >&2
  exit 0
fi
while IFS= read -r line; do
  case "$line" in
    *'"id":"crash"'*)
      echo "java.lang.OutOfMemoryError: Java heap space" >&2
      exit 3 ;;
    *'"id":"warn"'*)
      echo '{"warn":{"position":{"x":0,"y":0},"size":{"width":10,"height":10}}}'
      echo "java.lang.IllegalStateException: bad port side" >&2 ;;
    *'"id":"reject"'*)
      echo '{"message":"Unknown layout algorithm: nope","name":"UnsupportedConfigurationException"}' ;;
    *'"id":"blank"'*)
      echo ''
      echo '{"blank":{"position":{"x":0,"y":0},"size":{"width":1,"height":1}}}' ;;
    *'"id":"garbage"'*)
      echo 'not json' ;;
    *'"id":"slow"'*)
      sleep 2
      echo '{}' ;;
    *)
      echo '{"root":{"position":{"x":0,"y":0},"size":{"width":100,"height":60}},"n1":{"position":{"x":12,"y":12},"size":{"width":30,"height":30}},"n2":{"position":{"x":62,"y":12},"size":{"width":30,"height":30}},"e1":{"route":[{"x":42,"y":27},{"x":62,"y":27}]}}'
      echo 'com.google.gson.JsonSyntaxException: java.io.EOFException: End of input at line 2 column 1 path $' >&2 ;;
  esac
done
`

func writeFakeServer(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ELK server is a shell script")
	}
	path := filepath.Join(t.TempDir(), "elk-server")
	require.NoError(t, os.WriteFile(path, []byte(fakeServer), 0o755))
	return path
}

func newTestClient(t *testing.T, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		Script:      writeFakeServer(t),
		Logger:      log.New(io.Discard),
		StderrGrace: 300 * time.Millisecond,
	}
	for _, f := range mutate {
		f(&opts)
	}
	c := NewClient(opts)
	t.Cleanup(func() { c.Close() })
	return c
}

func testGraph(id string) *graph.Graph {
	return &graph.Graph{
		ID:            id,
		LayoutOptions: graph.Options{graph.OptionAlgorithm: "layered"},
		Children: []graph.Node{
			{ID: "n1", Width: graph.Float(30), Height: graph.Float(30)},
			{ID: "n2", Width: graph.Float(30), Height: graph.Float(30)},
		},
		Edges: []graph.Edge{{ID: "e1", Sources: []string{"n1"}, Targets: []string{"n2"}}},
	}
}

func TestClientLayout(t *testing.T) {
	c := newTestClient(t)

	data, err := c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	assert.Empty(t, data.Missing(testGraph("root")))

	n2, ok := data.Shape("n2")
	require.True(t, ok)
	assert.Equal(t, 62.0, n2.Position.X)

	route, ok := data.Route("e1")
	require.True(t, ok)
	assert.Len(t, route, 2)
}

func TestClientReusesProcess(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Layout(ctx, testGraph("root"))
	require.NoError(t, err)
	pid := c.PID()
	require.NotZero(t, pid)

	for range 3 {
		_, err := c.Layout(ctx, testGraph("root"))
		require.NoError(t, err)
	}
	assert.Equal(t, pid, c.PID())
}

func TestClientRestartsAfterCrash(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Layout(ctx, testGraph("root"))
	require.NoError(t, err)
	first := c.PID()

	_, err = c.Layout(ctx, testGraph("crash"))
	require.Error(t, err)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerFailed), "got %v", err)
	assert.Contains(t, err.Error(), "ELK server failed")
	assert.Contains(t, err.Error(), "OutOfMemoryError")

	_, err = c.Layout(ctx, testGraph("root"))
	require.NoError(t, err)
	assert.NotEqual(t, first, c.PID())
}

func TestClientStderrError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Layout(context.Background(), testGraph("warn"))
	require.Error(t, err)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerError), "got %v", err)
	assert.Contains(t, err.Error(), "ELK server error: java.lang.IllegalStateException: bad port side")

	// The process survives a reported error.
	_, err = c.Layout(context.Background(), testGraph("root"))
	assert.NoError(t, err)
}

func TestClientServerErrorObject(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Layout(context.Background(), testGraph("reject"))
	var se *graph.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Unknown layout algorithm: nope", se.Message)
	assert.Equal(t, "UnsupportedConfigurationException", se.Name)
}

func TestClientBlankResponseRestartsProcess(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Layout(ctx, testGraph("blank"))
	require.Error(t, err)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerFailed), "got %v", err)
	assert.Contains(t, err.Error(), "empty response")

	// Output following the blank line must not answer the next request.
	data, err := c.Layout(ctx, testGraph("root"))
	require.NoError(t, err)
	_, stale := data.Shape("blank")
	assert.False(t, stale)
	_, ok := data.Shape("root")
	assert.True(t, ok)
}

func TestClientMalformedResponse(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Layout(context.Background(), testGraph("garbage"))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerError), "got %v", err)
}

func TestClientValidatesBeforeStarting(t *testing.T) {
	c := newTestClient(t)

	g := testGraph("root")
	g.Edges[0].Targets = []string{"missing"}
	_, err := c.Layout(context.Background(), g)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidGraph), "got %v", err)
	assert.Zero(t, c.PID(), "no process should be started for an invalid graph")
}

func TestClientLayoutRaw(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	resp, err := c.LayoutRaw(ctx, []byte(`{"id":"root","children":[]}`+"\n"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(resp, []byte(`{"root":`)))

	_, err = c.LayoutRaw(ctx, []byte("{\"id\":\n\"root\"}"))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidInput), "got %v", err)

	_, err = c.LayoutRaw(ctx, []byte("  "))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidInput), "got %v", err)
}

func TestClientContextCancelKillsProcess(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	first := c.PID()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = c.Layout(ctx, testGraph("slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, c.PID())

	_, err = c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	assert.NotEqual(t, first, c.PID())
}

func TestClientClose(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Zero(t, c.PID())

	_, err = c.Layout(context.Background(), testGraph("root"))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerUnavailable), "got %v", err)
}

func TestClientStartFailure(t *testing.T) {
	c := NewClient(Options{
		Script: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger: log.New(io.Discard),
	})
	defer c.Close()

	_, err := c.Layout(context.Background(), testGraph("root"))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerUnavailable), "got %v", err)
}

type stubInstaller struct {
	inst  distribution.Installation
	err   error
	calls int
}

func (s *stubInstaller) Ensure(context.Context) (distribution.Installation, error) {
	s.calls++
	return s.inst, s.err
}

func TestClientUsesInstaller(t *testing.T) {
	script := writeFakeServer(t)
	inst := &stubInstaller{inst: distribution.Installation{Script: script}}
	c := NewClient(Options{Installer: inst, Logger: log.New(io.Discard)})
	defer c.Close()

	_, err := c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	_, err = c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	assert.Equal(t, 1, inst.calls)

	failing := NewClient(Options{
		Installer: &stubInstaller{err: elkerrors.New(elkerrors.ErrCodeJavaNotFound, "no java")},
		Logger:    log.New(io.Discard),
	})
	_, err = failing.Layout(context.Background(), testGraph("root"))
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeJavaNotFound), "got %v", err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestClientStderrLog(t *testing.T) {
	var stderr syncBuffer
	c := newTestClient(t, func(o *Options) { o.StderrLog = &stderr })

	_, err := c.Layout(context.Background(), testGraph("root"))
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), graph.BenignServerMessage)
}

func TestNewStderrLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "elk-server.log")
	w := NewStderrLog(LogFileOptions{Filename: path, MaxSizeMB: 1})
	_, err := io.WriteString(w, "line\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestIsBenign(t *testing.T) {
	assert.True(t, isBenign("com.google.gson.JsonSyntaxException: java.io.EOFException: End of input at line 2 column 1 path $"))
	assert.True(t, isBenign("End of input at line 2 column 1 path $\r"))
	assert.True(t, isBenign(""))
	assert.False(t, isBenign("java.lang.IllegalStateException"))
	assert.False(t, isBenign("End of input at line 2 column 1 path $ and more"))
}

func TestPool(t *testing.T) {
	script := writeFakeServer(t)
	p := NewPool(3, Options{Script: script, Logger: log.New(io.Discard)})
	defer p.Close()
	assert.Equal(t, 3, p.Size())

	var wg sync.WaitGroup
	errs := make(chan error, 9)
	for range 9 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Layout(context.Background(), testGraph("root"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	pids := map[int]bool{}
	for _, c := range p.clients {
		if pid := c.PID(); pid != 0 {
			pids[pid] = true
		}
	}
	assert.NotEmpty(t, pids)
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	p := NewPool(1, Options{Script: "unused", Logger: log.New(io.Discard)})
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(c)
	require.NoError(t, p.Close())
	_, err = p.Acquire(context.Background())
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeServerUnavailable), "got %v", err)
}

func TestRunStdio(t *testing.T) {
	script := writeFakeServer(t)
	in := strings.NewReader(`{"id":"root"}` + "\n\n" + `{"id":"reject"}` + "\n")
	var out bytes.Buffer

	err := Run(context.Background(), RunOptions{
		Mode:   ModeStdio,
		Script: script,
		Stdin:  in,
		Stdout: &out,
		Logger: log.New(io.Discard),
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `{"root":`))
	assert.Contains(t, lines[1], "Unknown layout algorithm")
}

func TestRunSocket(t *testing.T) {
	script := writeFakeServer(t)
	var logs syncBuffer

	err := Run(context.Background(), RunOptions{
		Mode:   ModeSocket,
		Script: script,
		Logger: log.New(&logs),
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Listening on port 5007")
}

func TestRunInvalidMode(t *testing.T) {
	err := Run(context.Background(), RunOptions{Mode: "tcp", Script: "unused"})
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidInput), "got %v", err)
	assert.Contains(t, err.Error(), "Must be 'stdio' or 'socket'")
}
