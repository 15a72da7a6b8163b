package distribution

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/java"
)

const testVersion = "0.2.0"

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func releaseZip(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"elk-server-0.2.0/bin/elk-server":           "#!/bin/sh\nexit 0\n",
		"elk-server-0.2.0/lib/elk-server-0.2.0.jar": "jar",
	})
}

type release struct {
	srv  *httptest.Server
	hits atomic.Int32
}

func serveRelease(t *testing.T, handler func(n int32, w http.ResponseWriter)) *release {
	t.Helper()
	r := &release{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler(r.hits.Add(1), w)
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func serveBytes(data []byte) func(int32, http.ResponseWriter) {
	return func(_ int32, w http.ResponseWriter) { w.Write(data) }
}

func noJava() java.Options {
	return java.Options{
		LookupEnv: func(string) (string, bool) { return "", false },
		LookPath:  func(string) (string, error) { return "", exec.ErrNotFound },
	}
}

func newManager(t *testing.T, url string, mutate ...func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		Version:    testVersion,
		URL:        url,
		Dir:        t.TempDir(),
		Java:       noJava(),
		Logger:     log.New(io.Discard),
		RetryDelay: time.Millisecond,
	}
	for _, f := range mutate {
		f(&opts)
	}
	m, err := New(opts)
	require.NoError(t, err)
	return m
}

func digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	m, err := New(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultVersion, m.Version())
	assert.Equal(t, "https://github.com/TypeFox/elk-server/releases/download/v0.2.0/elk-server-0.2.0.zip", m.URL())
	assert.Equal(t, "elk-server", filepath.Base(m.Dir()))
	assert.Equal(t, "elk-server-0.2.0.zip", filepath.Base(m.ArchivePath()))
	assert.Equal(t, filepath.Join(m.Dir(), "elk-server-0.2.0"), m.InstallDir())
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(Options{URL: "ftp://example.com/x.zip", Dir: t.TempDir()})
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidInput), "got %v", err)

	_, err = New(Options{SHA256: "xyz", Dir: t.TempDir()})
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidConfig), "got %v", err)
}

func TestFetch_DownloadsOnce(t *testing.T) {
	data := releaseZip(t)
	rel := serveRelease(t, serveBytes(data))
	m := newManager(t, rel.srv.URL+"/elk-server-0.2.0.zip")

	var progressed int64
	m.opts.Progress = func(done, _ int64) { progressed = done }

	path, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.ArchivePath(), path)
	assert.Equal(t, int64(len(data)), progressed)

	again, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), rel.hits.Load())

	mf, ok := m.Manifest()
	require.True(t, ok)
	assert.Equal(t, digest(data), mf.SHA256)
	assert.Equal(t, int64(len(data)), mf.Size)

	entries, _ := os.ReadDir(m.Dir())
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".download-"), "temp file left behind: %s", e.Name())
	}
}

func TestFetch_PinnedChecksum(t *testing.T) {
	data := releaseZip(t)
	rel := serveRelease(t, serveBytes(data))

	m := newManager(t, rel.srv.URL, func(o *Options) { o.SHA256 = strings.ToUpper(digest(data)) })
	_, err := m.Fetch(context.Background())
	require.NoError(t, err)

	bad := newManager(t, rel.srv.URL, func(o *Options) { o.SHA256 = strings.Repeat("0", 64) })
	_, err = bad.Fetch(context.Background())
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeChecksumMismatch), "got %v", err)
	assert.NoFileExists(t, bad.ArchivePath())
}

func TestFetch_RedownloadsCorruptArchive(t *testing.T) {
	data := releaseZip(t)
	rel := serveRelease(t, serveBytes(data))
	m := newManager(t, rel.srv.URL)

	_, err := m.Fetch(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.ArchivePath(), []byte("truncated"), 0o644))

	_, err = m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), rel.hits.Load())

	got, _ := os.ReadFile(m.ArchivePath())
	assert.Equal(t, data, got)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	data := releaseZip(t)
	rel := serveRelease(t, func(n int32, w http.ResponseWriter) {
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(data)
	})
	m := newManager(t, rel.srv.URL)

	_, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), rel.hits.Load())
}

func TestFetch_NotFound(t *testing.T) {
	rel := serveRelease(t, func(_ int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})
	m := newManager(t, rel.srv.URL)

	_, err := m.Fetch(context.Background())
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeDownloadFailed), "got %v", err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, int32(1), rel.hits.Load())
	assert.NoFileExists(t, m.ArchivePath())
}

func TestExtract(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("launcher script name differs on windows")
	}
	m := newManager(t, "https://example.com/x.zip")
	zipPath := filepath.Join(t.TempDir(), "release.zip")
	require.NoError(t, os.WriteFile(zipPath, releaseZip(t), 0o644))

	script, err := m.Extract(zipPath)
	require.NoError(t, err)
	assert.Equal(t, m.ScriptPath(), script)
	assert.FileExists(t, filepath.Join(m.InstallDir(), "lib", "elk-server-0.2.0.jar"))
	assert.True(t, m.Installed())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(script)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}

	// An installed tree is reused without reading the archive.
	require.NoError(t, os.Remove(zipPath))
	again, err := m.Extract(zipPath)
	require.NoError(t, err)
	assert.Equal(t, script, again)
}

func TestExtract_RemovesStaleInstall(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("launcher script name differs on windows")
	}
	m := newManager(t, "https://example.com/x.zip")
	stale := filepath.Join(m.InstallDir(), "lib", "stale.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, nil, 0o644))

	zipPath := filepath.Join(t.TempDir(), "release.zip")
	require.NoError(t, os.WriteFile(zipPath, releaseZip(t), 0o644))

	_, err := m.Extract(zipPath)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestExtract_RejectsUnsafeEntries(t *testing.T) {
	m := newManager(t, "https://example.com/x.zip")
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, map[string]string{
		"../escaped": "x",
	}), 0o644))

	_, err := m.Extract(zipPath)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeExtractFailed), "got %v", err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(m.Dir()), "escaped"))
}

func TestExtract_MissingScript(t *testing.T) {
	m := newManager(t, "https://example.com/x.zip")
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	require.NoError(t, os.WriteFile(zipPath, buildZip(t, map[string]string{"README": "hi"}), 0o644))

	_, err := m.Extract(zipPath)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeExtractFailed), "got %v", err)
}

func TestEnsure_FailsFastWithoutJava(t *testing.T) {
	rel := serveRelease(t, serveBytes(releaseZip(t)))
	m := newManager(t, rel.srv.URL)

	_, err := m.Ensure(context.Background())
	require.Error(t, err)
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeJavaNotFound), "got %v", err)
	assert.Contains(t, err.Error(), "failed to ensure ELK server is available")
	assert.Equal(t, int32(0), rel.hits.Load())
}

func TestEnsure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake java is a shell script")
	}
	home := t.TempDir()
	javaPath := filepath.Join(home, "bin", "java")
	require.NoError(t, os.MkdirAll(filepath.Dir(javaPath), 0o755))
	require.NoError(t, os.WriteFile(javaPath,
		[]byte("#!/bin/sh\necho 'openjdk version \"21.0.2\" 2024-01-16' >&2\n"), 0o755))

	rel := serveRelease(t, serveBytes(releaseZip(t)))
	m := newManager(t, rel.srv.URL, func(o *Options) { o.Java.Home = home })

	inst, err := m.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.ScriptPath(), inst.Script)
	assert.Equal(t, 21, inst.Java.Version)
	assert.Equal(t, testVersion, inst.Version)

	require.NoError(t, m.Remove())
	assert.False(t, m.Installed())
	assert.NoFileExists(t, m.ArchivePath())
}
