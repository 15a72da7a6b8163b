// Package java locates a Java runtime suitable for running the ELK server.
//
// The ELK server distribution is a JVM application. [Find] checks
// $JAVA_HOME first and then the java executable on PATH, accepting the first
// runtime whose major version lies within the configured range.
package java

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// Supported Java major versions.
const (
	MinVersion = 17
	MaxVersion = 23
)

// versionTimeout bounds a single "java -version" invocation.
const versionTimeout = 15 * time.Second

// Options controls runtime discovery. Zero values select the defaults.
type Options struct {
	// Home overrides $JAVA_HOME when non-empty.
	Home string
	// MinVersion and MaxVersion bound the accepted major version (inclusive).
	MinVersion int
	MaxVersion int
	// LookupEnv and LookPath replace os.LookupEnv and exec.LookPath in tests.
	LookupEnv func(string) (string, bool)
	LookPath  func(string) (string, error)
}

func (o Options) withDefaults() Options {
	if o.MinVersion == 0 {
		o.MinVersion = MinVersion
	}
	if o.MaxVersion == 0 {
		o.MaxVersion = MaxVersion
	}
	if o.LookupEnv == nil {
		o.LookupEnv = os.LookupEnv
	}
	if o.LookPath == nil {
		o.LookPath = exec.LookPath
	}
	return o
}

// Runtime is a discovered Java installation.
type Runtime struct {
	Path    string // Absolute path of the java executable
	Version int    // Major version
	Source  string // "JAVA_HOME" or "PATH"
}

// String formats the runtime for display.
func (r Runtime) String() string {
	return fmt.Sprintf("Java %d (%s, from %s)", r.Version, r.Path, r.Source)
}

// Find returns the first suitable runtime from $JAVA_HOME or PATH.
//
// A runtime that exists but cannot report its version is an error rather
// than a reason to keep searching; a runtime with an unsupported version is
// skipped.
func Find(ctx context.Context, opts Options) (Runtime, error) {
	opts = opts.withDefaults()

	home := opts.Home
	if home == "" {
		home, _ = opts.LookupEnv("JAVA_HOME")
	}
	if home != "" {
		javaPath := filepath.Join(home, "bin", executableName())
		if isFile(javaPath) {
			v, err := Version(ctx, javaPath)
			if err != nil {
				return Runtime{}, elkerrors.Wrap(elkerrors.ErrCodeJavaVersion, err, "failed to check Java version in JAVA_HOME")
			}
			if inRange(v, opts) {
				return Runtime{Path: javaPath, Version: v, Source: "JAVA_HOME"}, nil
			}
		}
	}

	if javaPath, err := opts.LookPath("java"); err == nil {
		v, err := Version(ctx, javaPath)
		if err != nil {
			return Runtime{}, elkerrors.Wrap(elkerrors.ErrCodeJavaVersion, err, "failed to check Java version in PATH")
		}
		if inRange(v, opts) {
			return Runtime{Path: javaPath, Version: v, Source: "PATH"}, nil
		}
	}

	return Runtime{}, elkerrors.New(elkerrors.ErrCodeJavaNotFound,
		"No Java %d-%d installation found. Please install Java or set JAVA_HOME.",
		opts.MinVersion, opts.MaxVersion)
}

// Version runs "<javaPath> -version" and returns the major version.
func Version(ctx context.Context, javaPath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	var stderr, stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, javaPath, "-version")
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("run %s -version: %w", javaPath, err)
	}

	// Java prints the banner on stderr; some wrappers use stdout.
	out := stderr.Bytes()
	if len(bytes.TrimSpace(out)) == 0 {
		out = stdout.Bytes()
	}
	return ParseVersion(firstLine(out))
}

// ParseVersion extracts the major version from the first line of
// "java -version" output, e.g. `openjdk version "17.0.2" 2022-01-18`.
// Legacy "1.x" versions report x.
func ParseVersion(line string) (int, error) {
	parts := strings.Split(line, `"`)
	if len(parts) < 2 || parts[1] == "" {
		return 0, fmt.Errorf("unrecognized java version output: %q", line)
	}
	version := parts[1]
	fields := strings.Split(version, ".")
	major := fields[0]
	if major == "1" && len(fields) > 1 {
		major = fields[1]
	}
	// Early-access builds look like "24-ea".
	major = strings.SplitN(major, "-", 2)[0]
	major = strings.SplitN(major, "+", 2)[0]
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("unrecognized java version %q: %w", version, err)
	}
	return n, nil
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}

func inRange(v int, opts Options) bool {
	return opts.MinVersion <= v && v <= opts.MaxVersion
}

func executableName() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
