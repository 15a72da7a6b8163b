// Package distribution downloads, verifies and unpacks the ELK server.
//
// The server ships as a zip archive on GitHub releases. A [Manager] keeps
// the archive and its extracted tree in a per-user cache directory so the
// download happens once per version:
//
//	~/.cache/elk-server/
//	├── elk-server-0.2.0.zip
//	├── elk-server-0.2.0/bin/elk-server
//	└── manifests/            release manifests (url, sha256, size, time)
//
// [Manager.Ensure] is the entry point used by the server client: it checks
// for Java first, so a machine without a JVM fails before any download.
package distribution

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/httputil"
	"github.com/matzehuels/elk/pkg/java"
)

const (
	// DefaultVersion is the ELK server release used when none is configured.
	DefaultVersion = "0.2.0"

	// URLTemplate produces the release archive URL; %[1]s is the version.
	URLTemplate = "https://github.com/TypeFox/elk-server/releases/download/v%[1]s/elk-server-%[1]s.zip"

	// cacheName is the directory below the cache root.
	cacheName = "elk-server"
)

// Options configures a [Manager]. Zero values select the defaults.
type Options struct {
	Version string // Release version, default DefaultVersion
	URL     string // Archive URL, default derived from URLTemplate
	SHA256  string // Expected archive digest; empty disables pinning
	Dir     string // Cache directory, default $XDG_CACHE_HOME/elk-server

	Java java.Options // Java discovery used by Ensure

	HTTPClient *http.Client      // nil uses httputil.NewHTTPClient
	Progress   httputil.Progress // Optional download progress callback
	Logger     *log.Logger       // nil uses log.Default()
	Attempts   int               // Download attempts, default 3
	RetryDelay time.Duration     // Initial backoff, default 1s
}

// Manifest records a completed download.
type Manifest struct {
	URL          string    `json:"url"`
	SHA256       string    `json:"sha256"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Installation is a ready-to-run server: the launcher script and the Java
// runtime it should run on.
type Installation struct {
	Script  string
	Java    java.Runtime
	Version string
}

// Manager owns one version of the server inside a cache directory.
// Ensure is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex // serializes Ensure
	opts      Options
	client    *httputil.Client
	manifests *httputil.Store[Manifest]
	logger    *log.Logger
}

// New validates opts and prepares the cache directory.
func New(opts Options) (*Manager, error) {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.URL == "" {
		opts.URL = fmt.Sprintf(URLTemplate, opts.Version)
	}
	if err := elkerrors.ValidateURL(opts.URL); err != nil {
		return nil, err
	}
	if err := elkerrors.ValidateSHA256(opts.SHA256); err != nil {
		return nil, err
	}
	if opts.Dir == "" {
		dir, err := httputil.CacheDir(cacheName)
		if err != nil {
			return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidPath, err, "cannot determine cache directory")
		}
		opts.Dir = dir
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	manifests, err := httputil.NewStore[Manifest](filepath.Join(opts.Dir, "manifests"), 0)
	if err != nil {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidPath, err, "cannot create cache directory %s", opts.Dir)
	}

	return &Manager{
		opts:      opts,
		client:    httputil.NewClient(opts.HTTPClient, nil),
		manifests: manifests.Namespace("manifest:"),
		logger:    logger,
	}, nil
}

// Version returns the managed release version.
func (m *Manager) Version() string { return m.opts.Version }

// URL returns the archive download URL.
func (m *Manager) URL() string { return m.opts.URL }

// Dir returns the cache directory.
func (m *Manager) Dir() string { return m.opts.Dir }

// ArchivePath returns where the release archive is stored.
func (m *Manager) ArchivePath() string {
	return filepath.Join(m.opts.Dir, "elk-server-"+m.opts.Version+".zip")
}

// InstallDir returns the directory the archive extracts into.
func (m *Manager) InstallDir() string {
	return filepath.Join(m.opts.Dir, "elk-server-"+m.opts.Version)
}

// ScriptPath returns the launcher script inside InstallDir.
func (m *Manager) ScriptPath() string {
	name := "elk-server"
	if runtime.GOOS == "windows" {
		name += ".bat"
	}
	return filepath.Join(m.InstallDir(), "bin", name)
}

// Installed reports whether the launcher script is already present.
func (m *Manager) Installed() bool {
	return isFile(m.ScriptPath())
}

// Manifest returns the recorded manifest for this version, if any.
func (m *Manager) Manifest() (Manifest, bool) {
	mf, ok, err := m.manifests.Get(m.opts.Version)
	if err != nil || !ok {
		return Manifest{}, false
	}
	return mf, true
}

// Ensure makes the server runnable: it finds Java, downloads the archive
// if needed and extracts it. Failures keep their original code.
func (m *Manager) Ensure(ctx context.Context) (Installation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, err := java.Find(ctx, m.opts.Java)
	if err != nil {
		return Installation{}, ensureErr(ctx, err)
	}
	m.logger.Debug("Using Java runtime", "version", rt.Version, "path", rt.Path)

	zipPath, err := m.Fetch(ctx)
	if err != nil {
		return Installation{}, ensureErr(ctx, err)
	}
	script, err := m.Extract(zipPath)
	if err != nil {
		return Installation{}, ensureErr(ctx, err)
	}
	return Installation{Script: script, Java: rt, Version: m.opts.Version}, nil
}

func ensureErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	code := elkerrors.GetCode(err)
	if code == "" {
		code = elkerrors.ErrCodeServerUnavailable
	}
	return elkerrors.Wrap(code, err, "failed to ensure ELK server is available")
}

// Fetch returns the path of the release archive, downloading it when it is
// missing or fails verification.
func (m *Manager) Fetch(ctx context.Context) (string, error) {
	path := m.ArchivePath()
	if isFile(path) {
		want := m.expectedDigest()
		if want == "" {
			return path, nil
		}
		got, err := fileDigest(path)
		if err == nil && strings.EqualFold(got, want) {
			return path, nil
		}
		m.logger.Warn("Cached ELK server archive failed verification, downloading again", "path", path)
		_ = os.Remove(path)
	}

	if err := os.MkdirAll(m.opts.Dir, 0o755); err != nil {
		return "", elkerrors.Wrap(elkerrors.ErrCodeInvalidPath, err, "cannot create cache directory %s", m.opts.Dir)
	}

	m.logger.Info("Downloading ELK server", "version", m.opts.Version, "url", m.opts.URL)
	tmp, digest, size, err := m.download(ctx)
	if err != nil {
		return "", err
	}

	if m.opts.SHA256 != "" && !strings.EqualFold(digest, m.opts.SHA256) {
		os.Remove(tmp)
		return "", elkerrors.New(elkerrors.ErrCodeChecksumMismatch,
			"checksum mismatch for %s: expected %s, got %s", m.opts.URL, m.opts.SHA256, digest)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", elkerrors.Wrap(elkerrors.ErrCodeDownloadFailed, err, "failed to store ELK server archive")
	}

	mf := Manifest{URL: m.opts.URL, SHA256: digest, Size: size, DownloadedAt: time.Now().UTC()}
	if err := m.manifests.Set(m.opts.Version, mf); err != nil {
		m.logger.Warn("Failed to record download manifest", "error", err)
	}
	m.logger.Debug("Downloaded ELK server", "bytes", size, "sha256", digest)
	return path, nil
}

// download writes the archive to a temp file in the cache directory and
// returns its path, hex digest and size.
func (m *Manager) download(ctx context.Context) (string, string, int64, error) {
	f, err := os.CreateTemp(m.opts.Dir, ".download-*")
	if err != nil {
		return "", "", 0, elkerrors.Wrap(elkerrors.ErrCodeDownloadFailed, err, "cannot create temporary file")
	}
	tmp := f.Name()
	defer f.Close()

	h := sha256.New()
	var size int64
	name := filepath.Base(m.ArchivePath())
	err = httputil.Retry(ctx, m.opts.Attempts, m.opts.RetryDelay, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := f.Truncate(0); err != nil {
			return err
		}
		h.Reset()
		n, err := m.client.Download(ctx, m.opts.URL, name, io.MultiWriter(f, h), m.opts.Progress)
		size = n
		if err != nil && httputil.IsRetryable(err) {
			m.logger.Debug("Download attempt failed", "error", err)
		}
		return err
	})
	if err == nil {
		err = f.Close()
	}
	if err != nil {
		os.Remove(tmp)
		switch {
		case ctx.Err() != nil:
			return "", "", 0, ctx.Err()
		case errors.Is(err, httputil.ErrNotFound):
			return "", "", 0, elkerrors.Wrap(elkerrors.ErrCodeDownloadFailed, err,
				"ELK server %s not found at %s", m.opts.Version, m.opts.URL)
		default:
			return "", "", 0, elkerrors.Wrap(elkerrors.ErrCodeDownloadFailed, err,
				"failed to download ELK server from %s", m.opts.URL)
		}
	}
	return tmp, hex.EncodeToString(h.Sum(nil)), size, nil
}

// expectedDigest is the configured digest, or the one recorded when the
// archive was first downloaded from the same URL.
func (m *Manager) expectedDigest() string {
	if m.opts.SHA256 != "" {
		return m.opts.SHA256
	}
	if mf, ok := m.Manifest(); ok && mf.URL == m.opts.URL {
		return mf.SHA256
	}
	return ""
}

// Remove deletes the archive, the extracted tree and the manifest.
func (m *Manager) Remove() error {
	if err := os.RemoveAll(m.InstallDir()); err != nil {
		return err
	}
	if err := os.Remove(m.ArchivePath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return m.manifests.Delete(m.opts.Version)
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
