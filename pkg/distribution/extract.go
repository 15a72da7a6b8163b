package distribution

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// Extract unpacks zipPath into the cache directory and returns the launcher
// script path. An existing script short-circuits extraction; a partial
// install directory without a script is removed and extracted again.
func (m *Manager) Extract(zipPath string) (string, error) {
	script := m.ScriptPath()
	if isFile(script) {
		return script, nil
	}

	if err := os.RemoveAll(m.InstallDir()); err != nil {
		return "", elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "cannot remove stale %s", m.InstallDir())
	}

	m.logger.Info("Extracting ELK server", "archive", filepath.Base(zipPath))
	if err := unzip(zipPath, m.opts.Dir); err != nil {
		return "", err
	}

	if !isFile(script) {
		return "", elkerrors.New(elkerrors.ErrCodeExtractFailed,
			"archive %s does not contain %s", filepath.Base(zipPath), relPath(m.opts.Dir, script))
	}
	if err := os.Chmod(script, 0o755); err != nil {
		return "", elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "cannot make %s executable", script)
	}
	return script, nil
}

func unzip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "cannot open archive %s", zipPath)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "cannot resolve %s", dest)
	}

	for _, f := range r.File {
		if err := elkerrors.ValidateArchivePath(f.Name); err != nil {
			return elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "unsafe archive entry")
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return elkerrors.New(elkerrors.ErrCodeExtractFailed, "archive entry %q escapes %s", f.Name, dest)
		}
		if err := extractFile(f, target); err != nil {
			return elkerrors.Wrap(elkerrors.ErrCodeExtractFailed, err, "cannot extract %s", f.Name)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func relPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
