package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// BenignServerMessage is the stderr line the ELK server prints when its
// JSON reader reaches the end of a request line. It follows successful
// layouts and is not an error.
const BenignServerMessage = "End of input at line 2 column 1 path $"

// Point is a position in 2D space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dimension is the size of a shape.
type Dimension struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// ShapeLayout is the computed placement of a graph, node, port or label.
// Position is relative to the parent element.
type ShapeLayout struct {
	Position Point     `json:"position" yaml:"position"`
	Size     Dimension `json:"size" yaml:"size"`
}

// EdgeLayout is the computed route of an edge: start point, bend points and
// end point, in the coordinate system of the edge's container.
type EdgeLayout struct {
	Route []Point `json:"route" yaml:"route"`
}

// Element is the layout of a single element. Exactly one of Shape and Edge
// is set.
type Element struct {
	Shape *ShapeLayout
	Edge  *EdgeLayout
}

// IsEdge reports whether the element is an edge route.
func (e Element) IsEdge() bool { return e.Edge != nil }

// MarshalJSON encodes the populated variant.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.Edge != nil {
		return json.Marshal(e.Edge)
	}
	if e.Shape != nil {
		return json.Marshal(e.Shape)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes an edge layout when the object has a "route" key
// and a shape layout otherwise.
func (e *Element) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["route"]; ok {
		var el EdgeLayout
		if err := json.Unmarshal(data, &el); err != nil {
			return err
		}
		*e = Element{Edge: &el}
		return nil
	}
	_, hasPos := probe["position"]
	_, hasSize := probe["size"]
	if !hasPos && !hasSize {
		return fmt.Errorf("layout element has neither route nor position/size")
	}
	var sl ShapeLayout
	if err := json.Unmarshal(data, &sl); err != nil {
		return err
	}
	*e = Element{Shape: &sl}
	return nil
}

// LayoutData maps element ids to their computed layout. It is the response
// of the ELK server for one graph.
type LayoutData map[string]Element

// Shape returns the shape layout for id.
func (d LayoutData) Shape(id string) (ShapeLayout, bool) {
	el, ok := d[id]
	if !ok || el.Shape == nil {
		return ShapeLayout{}, false
	}
	return *el.Shape, true
}

// Route returns the edge route for id.
func (d LayoutData) Route(id string) ([]Point, bool) {
	el, ok := d[id]
	if !ok || el.Edge == nil {
		return nil, false
	}
	return el.Edge.Route, true
}

// IDs returns the element ids in sorted order.
func (d LayoutData) IDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Missing returns the ids of the root graph, nodes and edges of g that have
// no entry in d, in sorted order.
func (d LayoutData) Missing(g *Graph) []string {
	var missing []string
	check := func(id string) {
		if _, ok := d[id]; !ok {
			missing = append(missing, id)
		}
	}
	check(g.ID)
	Walk(g, Visitor{
		Node: func(n *Node, _ string) { check(n.ID) },
		Edge: func(e *Edge, _ string) { check(e.ID) },
	})
	sort.Strings(missing)
	return missing
}

// ServerError is the JSON error object the ELK server returns for a request
// it cannot lay out.
type ServerError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Stack   string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("ELK server error: %s: %s", e.Name, e.Message)
	}
	return "ELK server error: " + e.Message
}

// DecodeResponse decodes one response line of the ELK server.
//
// A layout response is an object of element layouts. An error response is an
// object whose "message" (and "name") members are strings; it is returned as
// a *ServerError. Element entries are always objects, so the two cannot be
// confused even when a graph uses "message" as an element id.
func DecodeResponse(line []byte) (LayoutData, error) {
	line = bytes.TrimSpace(line)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("decode layout response: %w", err)
	}
	if msg, ok := probe["message"]; ok && isJSONString(msg) {
		var se ServerError
		if err := json.Unmarshal(line, &se); err != nil {
			return nil, fmt.Errorf("decode server error: %w", err)
		}
		return nil, &se
	}
	var data LayoutData
	if err := json.Unmarshal(line, &data); err != nil {
		return nil, fmt.Errorf("decode layout response: %w", err)
	}
	return data, nil
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
