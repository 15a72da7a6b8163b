package graph

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// Input formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatForPath returns the input format implied by a file extension.
// Anything other than .yaml/.yml is treated as JSON.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadGraph decodes a graph in the given format from r. Unknown members are
// ignored, as the ELK JSON format has extensions this model does not carry.
func ReadGraph(r io.Reader, format string) (*Graph, error) {
	var g Graph
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&g); err != nil {
			return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidFormat, err, "decode JSON graph")
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&g); err != nil {
			return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidFormat, err, "decode YAML graph")
		}
	default:
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidFormat, "unsupported graph format %q", format)
	}
	return &g, nil
}

// ReadGraphFile reads a graph from path, choosing the format by extension.
func ReadGraphFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeFileNotFound, err, "graph file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f, FormatForPath(path))
}

// UnmarshalGraph decodes a JSON graph.
func UnmarshalGraph(data []byte) (*Graph, error) {
	return ReadGraph(bytes.NewReader(data), FormatJSON)
}

// MarshalGraph encodes g as compact single-line JSON, the form written to
// the server's stdin. Absent optional fields are omitted, never null.
func MarshalGraph(g *Graph) ([]byte, error) {
	return json.Marshal(g)
}

// Hash returns the hex SHA-256 of the canonical JSON encoding of g.
// encoding/json sorts map keys, so equal graphs hash equally.
func Hash(g *Graph) (string, error) {
	data, err := MarshalGraph(g)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// WriteGraphFile writes g as indented JSON or YAML depending on the extension.
func WriteGraphFile(g *Graph, path string) error {
	var (
		data []byte
		err  error
	)
	if FormatForPath(path) == FormatYAML {
		data, err = yaml.Marshal(g)
	} else {
		data, err = json.MarshalIndent(g, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MarshalLayout serializes layout data to pretty-printed JSON bytes.
func MarshalLayout(d LayoutData) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// UnmarshalLayout deserializes layout data from JSON bytes.
func UnmarshalLayout(data []byte) (LayoutData, error) {
	var d LayoutData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	return d, nil
}

// WriteLayoutFile writes layout data to a JSON file.
func WriteLayoutFile(d LayoutData, path string) error {
	data, err := MarshalLayout(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadLayoutFile reads layout data from a JSON file.
func ReadLayoutFile(path string) (LayoutData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
