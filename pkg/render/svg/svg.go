// Package svg draws a computed ELK layout as a static SVG image.
//
// ELK reports every shape position relative to its parent and every edge
// route relative to the node that declares the edge. [Render] walks the
// input graph alongside the layout data, accumulating offsets so that
// nested nodes, ports and labels end up at absolute coordinates.
//
//	data, _ := client.Layout(ctx, g)
//	img, err := svg.Render(g, data, svg.Options{})
package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

const (
	defaultPadding  = 20
	defaultFontSize = 12
	arrowSize       = 6
)

// Options controls the drawing.
type Options struct {
	Padding    float64 // Margin around the root, default 20
	FontSize   float64 // Label font size, default 12
	HideLabels bool
	// Title becomes the SVG <title>; empty uses the graph id.
	Title string
}

func (o Options) withDefaults(g *graph.Graph) Options {
	if o.Padding <= 0 {
		o.Padding = defaultPadding
	}
	if o.FontSize <= 0 {
		o.FontSize = defaultFontSize
	}
	if o.Title == "" {
		o.Title = g.ID
	}
	return o
}

type renderer struct {
	buf  bytes.Buffer
	data graph.LayoutData
	opts Options
}

// Render returns the SVG document for g laid out as data. Elements without
// layout data are skipped; a missing root shape is an error because the
// canvas size comes from it.
func Render(g *graph.Graph, data graph.LayoutData, opts Options) ([]byte, error) {
	if g == nil {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "graph is nil")
	}
	root, ok := data.Shape(g.ID)
	if !ok {
		return nil, elkerrors.New(elkerrors.ErrCodeInvalidInput, "layout has no entry for root %q", g.ID)
	}
	opts = opts.withDefaults(g)

	r := &renderer{data: data, opts: opts}
	w := root.Size.Width + 2*opts.Padding
	h := root.Size.Height + 2*opts.Padding
	fmt.Fprintf(&r.buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		w, h, w, h)
	fmt.Fprintf(&r.buf, "  <title>%s</title>\n", escape(opts.Title))
	r.defs()
	fmt.Fprintf(&r.buf, `  <g transform="translate(%s %s)">`+"\n", num(opts.Padding), num(opts.Padding))

	origin := graph.Point{}
	r.level(g.Children, g.Edges, origin)

	r.buf.WriteString("  </g>\n</svg>\n")
	return r.buf.Bytes(), nil
}

func (r *renderer) defs() {
	fmt.Fprintf(&r.buf, `  <defs>
    <marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="%d" markerHeight="%d" orient="auto-start-reverse">
      <path d="M 0 0 L 10 5 L 0 10 z" fill="#333"/>
    </marker>
    <style>
      .node { fill: #fff; stroke: #333; stroke-width: 1; }
      .compound { fill: #f6f8fa; }
      .port { fill: #333; }
      .edge { fill: none; stroke: #333; stroke-width: 1; }
      .label { font-family: sans-serif; fill: #111; }
    </style>
  </defs>
`, arrowSize, arrowSize)
}

// level draws the nodes and edges of one container whose absolute
// position is offset. Nodes are drawn before edges so routes stay visible.
func (r *renderer) level(children []graph.Node, edges []graph.Edge, offset graph.Point) {
	for i := range children {
		r.node(&children[i], offset)
	}
	for i := range edges {
		r.edge(&edges[i], offset)
	}
}

func (r *renderer) node(n *graph.Node, offset graph.Point) {
	s, ok := r.data.Shape(n.ID)
	if !ok {
		return
	}
	abs := add(offset, s.Position)
	class := "node"
	if len(n.Children) > 0 {
		class += " compound"
	}
	fmt.Fprintf(&r.buf, `    <rect id="%s" class="%s" x="%s" y="%s" width="%s" height="%s"/>`+"\n",
		escape(n.ID), class, num(abs.X), num(abs.Y), num(s.Size.Width), num(s.Size.Height))

	for i := range n.Ports {
		p := &n.Ports[i]
		ps, ok := r.data.Shape(p.ID)
		if !ok {
			continue
		}
		pa := add(abs, ps.Position)
		fmt.Fprintf(&r.buf, `    <rect id="%s" class="port" x="%s" y="%s" width="%s" height="%s"/>`+"\n",
			escape(p.ID), num(pa.X), num(pa.Y), num(ps.Size.Width), num(ps.Size.Height))
	}

	r.labels(n.Labels, abs, s.Size, len(n.Children) > 0)
	r.level(n.Children, n.Edges, abs)
}

func (r *renderer) edge(e *graph.Edge, offset graph.Point) {
	route, ok := r.data.Route(e.ID)
	if !ok || len(route) < 2 {
		return
	}
	var pts bytes.Buffer
	for i, p := range route {
		if i > 0 {
			pts.WriteByte(' ')
		}
		a := add(offset, p)
		pts.WriteString(num(a.X) + "," + num(a.Y))
	}
	fmt.Fprintf(&r.buf, `    <polyline id="%s" class="edge" points="%s" marker-end="url(#arrow)"/>`+"\n",
		escape(e.ID), pts.String())

	if r.opts.HideLabels {
		return
	}
	mid := midpoint(route)
	for i := range e.Labels {
		l := &e.Labels[i]
		pos := add(offset, mid)
		if l.ID != "" {
			if ls, ok := r.data.Shape(l.ID); ok {
				pos = add(offset, graph.Point{X: ls.Position.X + ls.Size.Width/2, Y: ls.Position.Y + ls.Size.Height/2})
			}
		}
		r.text(l.Text, pos, "middle")
	}
}

// labels draws node labels. Laid-out labels use their computed box;
// others are centered, or placed at the top of compound nodes.
func (r *renderer) labels(labels []graph.Label, abs graph.Point, size graph.Dimension, compound bool) {
	if r.opts.HideLabels {
		return
	}
	for i := range labels {
		l := &labels[i]
		if l.ID != "" {
			if ls, ok := r.data.Shape(l.ID); ok {
				c := add(abs, graph.Point{X: ls.Position.X + ls.Size.Width/2, Y: ls.Position.Y + ls.Size.Height/2})
				r.text(l.Text, c, "middle")
				continue
			}
		}
		c := graph.Point{X: abs.X + size.Width/2, Y: abs.Y + size.Height/2}
		if compound {
			c.Y = abs.Y + r.opts.FontSize
		}
		c.Y += float64(i) * r.opts.FontSize * 1.2
		r.text(l.Text, c, "middle")
	}
}

func (r *renderer) text(s string, at graph.Point, anchor string) {
	fmt.Fprintf(&r.buf, `    <text class="label" x="%s" y="%s" font-size="%s" text-anchor="%s" dominant-baseline="central">%s</text>`+"\n",
		num(at.X), num(at.Y), num(r.opts.FontSize), anchor, escape(s))
}

func add(a, b graph.Point) graph.Point {
	return graph.Point{X: a.X + b.X, Y: a.Y + b.Y}
}

// midpoint returns the point halfway along the polyline.
func midpoint(route []graph.Point) graph.Point {
	var total float64
	for i := 1; i < len(route); i++ {
		total += dist(route[i-1], route[i])
	}
	half := total / 2
	for i := 1; i < len(route); i++ {
		d := dist(route[i-1], route[i])
		if half <= d && d > 0 {
			t := half / d
			return graph.Point{
				X: route[i-1].X + t*(route[i].X-route[i-1].X),
				Y: route[i-1].Y + t*(route[i].Y-route[i-1].Y),
			}
		}
		half -= d
	}
	return route[len(route)-1]
}

func dist(a, b graph.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// num formats a coordinate with at most two decimals and no trailing zeros.
func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
