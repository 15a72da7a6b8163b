package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Well-known layout option keys.
const (
	OptionAlgorithm      = "elk.algorithm"
	OptionDirection      = "elk.direction"
	PropertyAlgorithm    = "algorithm"
	DefaultAlgorithmName = "layered"
)

// Options holds layout options or properties of a graph element.
//
// ELK option values are strings on the wire, but graph files commonly write
// numbers and booleans unquoted. Options accepts any JSON scalar and stores
// its string form.
type Options map[string]string

// UnmarshalJSON decodes an object of scalar values into Options.
func (o *Options) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Options, len(raw))
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("option %q: %w", k, err)
		}
		out[k] = s
	}
	*o = out
	return nil
}

// UnmarshalYAML decodes a mapping of scalar values into Options. Null values
// are dropped so the server applies its defaults.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		*o = nil
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("options must be a mapping")
	}
	out := make(Options, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("option %q: value must be a scalar", k.Value)
		}
		if v.ShortTag() == "!!null" {
			continue
		}
		out[k.Value] = v.Value
	}
	*o = out
	return nil
}

func scalarString(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch v[0] {
	case '"':
		var s string
		err := json.Unmarshal(v, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("value must be a scalar")
	case 't', 'f':
		b, err := strconv.ParseBool(string(v))
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	default:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// Graph is the root element of an ELK layout request.
type Graph struct {
	ID            string  `json:"id" yaml:"id" validate:"required"`
	LayoutOptions Options `json:"layoutOptions,omitempty" yaml:"layoutOptions,omitempty"`
	Properties    Options `json:"properties,omitempty" yaml:"properties,omitempty"`
	Children      []Node  `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
	Edges         []Edge  `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
}

// Node is a (possibly hierarchical) node of the graph.
type Node struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	X             *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y             *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Width         *float64 `json:"width,omitempty" yaml:"width,omitempty" validate:"omitempty,gte=0"`
	Height        *float64 `json:"height,omitempty" yaml:"height,omitempty" validate:"omitempty,gte=0"`
	LayoutOptions Options  `json:"layoutOptions,omitempty" yaml:"layoutOptions,omitempty"`
	Properties    Options  `json:"properties,omitempty" yaml:"properties,omitempty"`
	Labels        []Label  `json:"labels,omitempty" yaml:"labels,omitempty" validate:"dive"`
	Ports         []Port   `json:"ports,omitempty" yaml:"ports,omitempty" validate:"dive"`
	Children      []Node   `json:"children,omitempty" yaml:"children,omitempty" validate:"dive"`
	Edges         []Edge   `json:"edges,omitempty" yaml:"edges,omitempty" validate:"dive"`
}

// Port is a connection point on the border of a node.
type Port struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	X             *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y             *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Width         *float64 `json:"width,omitempty" yaml:"width,omitempty" validate:"omitempty,gte=0"`
	Height        *float64 `json:"height,omitempty" yaml:"height,omitempty" validate:"omitempty,gte=0"`
	LayoutOptions Options  `json:"layoutOptions,omitempty" yaml:"layoutOptions,omitempty"`
	Properties    Options  `json:"properties,omitempty" yaml:"properties,omitempty"`
	Labels        []Label  `json:"labels,omitempty" yaml:"labels,omitempty" validate:"dive"`
}

// Label is a text label attached to a node, port or edge.
// Labels may carry an id; when present it must be unique like any other id.
type Label struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Text   string   `json:"text" yaml:"text" validate:"required"`
	X      *float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Width  *float64 `json:"width,omitempty" yaml:"width,omitempty" validate:"omitempty,gte=0"`
	Height *float64 `json:"height,omitempty" yaml:"height,omitempty" validate:"omitempty,gte=0"`
}

// Edge connects one or more sources to one or more targets. Sources and
// targets reference node or port ids anywhere in the graph.
type Edge struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Sources       []string `json:"sources" yaml:"sources" validate:"required,min=1,dive,required"`
	Targets       []string `json:"targets" yaml:"targets" validate:"required,min=1,dive,required"`
	LayoutOptions Options  `json:"layoutOptions,omitempty" yaml:"layoutOptions,omitempty"`
	Properties    Options  `json:"properties,omitempty" yaml:"properties,omitempty"`
	Labels        []Label  `json:"labels,omitempty" yaml:"labels,omitempty" validate:"dive"`
}

// Float returns a pointer to v, for building graphs in code.
func Float(v float64) *float64 { return &v }

// Algorithm returns the layout algorithm requested on the root graph.
// layoutOptions take precedence over properties; the result is empty when
// neither names one, in which case the server applies its own default.
func (g *Graph) Algorithm() string {
	if a := g.LayoutOptions[OptionAlgorithm]; a != "" {
		return a
	}
	if a := g.LayoutOptions[PropertyAlgorithm]; a != "" {
		return a
	}
	if a := g.Properties[OptionAlgorithm]; a != "" {
		return a
	}
	return g.Properties[PropertyAlgorithm]
}

// Stats summarizes the size of a graph.
type Stats struct {
	Nodes  int
	Edges  int
	Ports  int
	Labels int
}

// Stats counts the elements of the graph, including nested ones.
func (g *Graph) Stats() Stats {
	var s Stats
	Walk(g, Visitor{
		Node:  func(*Node, string) { s.Nodes++ },
		Edge:  func(*Edge, string) { s.Edges++ },
		Port:  func(*Port, string) { s.Ports++ },
		Label: func(*Label, string) { s.Labels++ },
	})
	return s
}

// Visitor receives the elements of a graph during [Walk]. The parent
// argument is the id of the enclosing node (or the root graph). Nil
// callbacks are skipped.
type Visitor struct {
	Node  func(n *Node, parent string)
	Edge  func(e *Edge, parent string)
	Port  func(p *Port, node string)
	Label func(l *Label, owner string)
}

// Walk visits every element of g depth-first in document order.
func Walk(g *Graph, v Visitor) {
	walkLevel(g.ID, g.Children, g.Edges, v)
}

func walkLevel(parent string, children []Node, edges []Edge, v Visitor) {
	for i := range children {
		n := &children[i]
		if v.Node != nil {
			v.Node(n, parent)
		}
		walkLabels(n.ID, n.Labels, v)
		for j := range n.Ports {
			p := &n.Ports[j]
			if v.Port != nil {
				v.Port(p, n.ID)
			}
			walkLabels(p.ID, p.Labels, v)
		}
		walkLevel(n.ID, n.Children, n.Edges, v)
	}
	for i := range edges {
		e := &edges[i]
		if v.Edge != nil {
			v.Edge(e, parent)
		}
		walkLabels(e.ID, e.Labels, v)
	}
}

func walkLabels(owner string, labels []Label, v Visitor) {
	if v.Label == nil {
		return
	}
	for i := range labels {
		v.Label(&labels[i], owner)
	}
}
