package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

// Output formats.
const (
	formatJSON = "json"
	formatSVG  = "svg"
	formatDOT  = "dot"
)

// stdinPath names standard input on the command line.
const stdinPath = "-"

// readGraph loads a graph from path, or from stdin when path is "-" or
// empty. Stdin is decoded as inputFormat (json or yaml).
func (c *CLI) readGraph(path, inputFormat string) (*graph.Graph, error) {
	if path == "" || path == stdinPath {
		return graph.ReadGraph(c.Stdin, inputFormat)
	}
	return graph.ReadGraphFile(path)
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
// It reports whether a file was written.
func (c *CLI) writeOutput(path string, data []byte) (bool, error) {
	if path == "" || path == stdinPath {
		_, err := c.Stdout.Write(data)
		return false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	return true, os.WriteFile(path, data, 0o644)
}

// outputPath derives "<input>.layout.<ext>" next to the input, or inside
// dir when it is set.
func outputPath(input, dir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".layout." + ext
	if dir != "" {
		return filepath.Join(dir, base)
	}
	return filepath.Join(filepath.Dir(input), base)
}

// queryJSON evaluates a JSONPath expression against a JSON document and
// returns the indented result.
func queryJSON(data []byte, expr string) ([]byte, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "empty jsonpath expression")
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidFormat, err, "layout is not valid JSON")
	}
	val, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidInput, err, "jsonpath %s", expr)
	}
	out, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// validateFormat checks an output format flag.
func validateFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return elkerrors.New(elkerrors.ErrCodeInvalidFormat, "unsupported format %q (want %s)", format, strings.Join(allowed, " or "))
}
