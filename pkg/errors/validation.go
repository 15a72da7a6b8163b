package errors

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"
)

// maxIDLength bounds element identifiers sent to the ELK server.
const maxIDLength = 512

// ValidateElementID validates the identifier of a graph element.
//
// The ELK JSON format only requires ids to be non-empty strings, but ids end
// up as cache keys, log fields and SVG attributes, so control characters and
// unreasonably long values are rejected.
func ValidateElementID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidGraph, "element id cannot be empty")
	}
	if len(id) > maxIDLength {
		return New(ErrCodeInvalidGraph, "element id too long (max %d characters)", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGraph, "element id %q contains control characters", id)
		}
	}
	return nil
}

// ValidateArchivePath validates a path taken from an archive entry.
// It prevents entries from escaping the extraction directory ("zip slip").
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..) after cleaning
func ValidateArchivePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	slashed := filepath.ToSlash(path)
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(path) || filepath.VolumeName(path) != "" {
		return New(ErrCodeInvalidPath, "path must be relative: %q", path)
	}

	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..): %q", path)
		}
	}

	return nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "malformed URL %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidInput, "URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return New(ErrCodeInvalidInput, "URL %q has no host", rawURL)
	}
	return nil
}

// ValidateSHA256 checks a hex-encoded SHA-256 digest. An empty digest means
// the download is not pinned.
func ValidateSHA256(digest string) error {
	if digest == "" {
		return nil
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return Wrap(ErrCodeInvalidConfig, err, "sha256 digest is not hex")
	}
	if len(raw) != sha256.Size {
		return New(ErrCodeInvalidConfig, "sha256 digest must be %d bytes, got %d", sha256.Size, len(raw))
	}
	return nil
}
