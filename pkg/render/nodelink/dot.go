package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/elk/pkg/graph"
)

// Options configures the DOT output.
type Options struct {
	// Detailed adds port lists and layout options to node labels.
	// When false, nodes show their first label or their id.
	Detailed bool
	// RankDir is the Graphviz rank direction, default derived from the
	// graph's elk.direction option ("LR" for RIGHT, "TB" otherwise).
	RankDir string
}

// ToDOT converts an ELK graph to Graphviz DOT. Compound nodes become
// clusters and edges attached to ports are drawn from the owning node.
func ToDOT(g *graph.Graph, opts Options) string {
	owner := portOwners(g)
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = rankDir(g)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", g.ID)
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	writeLevel(&buf, g.Children, g.Edges, owner, opts, "  ")

	buf.WriteString("}\n")
	return buf.String()
}

func writeLevel(buf *bytes.Buffer, children []graph.Node, edges []graph.Edge, owner map[string]string, opts Options, indent string) {
	for i := range children {
		n := &children[i]
		if len(n.Children) == 0 {
			fmt.Fprintf(buf, "%s%q [label=%q];\n", indent, n.ID, nodeLabel(n, opts.Detailed))
			continue
		}
		fmt.Fprintf(buf, "%ssubgraph %q {\n", indent, "cluster_"+n.ID)
		fmt.Fprintf(buf, "%s  label=%q;\n", indent, nodeLabel(n, opts.Detailed))
		buf.WriteString(indent + "  style=\"rounded\";\n")
		writeLevel(buf, n.Children, n.Edges, owner, opts, indent+"  ")
		buf.WriteString(indent + "}\n")
	}
	for i := range edges {
		e := &edges[i]
		for _, s := range e.Sources {
			for _, t := range e.Targets {
				attrs := []string{}
				if len(e.Labels) > 0 {
					attrs = append(attrs, fmt.Sprintf("label=%q", e.Labels[0].Text))
				}
				if sp, ok := owner[s]; ok && opts.Detailed {
					attrs = append(attrs, fmt.Sprintf("taillabel=%q", s))
					s = sp
				} else if ok {
					s = sp
				}
				if tp, ok := owner[t]; ok && opts.Detailed {
					attrs = append(attrs, fmt.Sprintf("headlabel=%q", t))
					t = tp
				} else if ok {
					t = tp
				}
				if len(attrs) > 0 {
					fmt.Fprintf(buf, "%s%q -> %q [%s];\n", indent, s, t, strings.Join(attrs, ", "))
				} else {
					fmt.Fprintf(buf, "%s%q -> %q;\n", indent, s, t)
				}
			}
		}
	}
}

func nodeLabel(n *graph.Node, detailed bool) string {
	label := n.ID
	if len(n.Labels) > 0 && n.Labels[0].Text != "" {
		label = n.Labels[0].Text
	}
	if !detailed {
		return label
	}
	var parts []string
	if len(n.Ports) > 0 {
		ids := make([]string, len(n.Ports))
		for i, p := range n.Ports {
			ids[i] = p.ID
		}
		parts = append(parts, "ports: "+strings.Join(ids, ", "))
	}
	if n.Width != nil && n.Height != nil {
		parts = append(parts, fmt.Sprintf("size: %gx%g", *n.Width, *n.Height))
	}
	if len(parts) == 0 {
		return label
	}
	return label + "\n" + strings.Join(parts, "\n")
}

// portOwners maps port ids to the id of the node that owns them.
func portOwners(g *graph.Graph) map[string]string {
	owners := map[string]string{}
	graph.Walk(g, graph.Visitor{
		Port: func(p *graph.Port, node string) { owners[p.ID] = node },
	})
	return owners
}

func rankDir(g *graph.Graph) string {
	dir := g.LayoutOptions[graph.OptionDirection]
	if dir == "" {
		dir = g.Properties[graph.OptionDirection]
	}
	switch strings.ToUpper(dir) {
	case "RIGHT":
		return "LR"
	case "LEFT":
		return "RL"
	case "UP":
		return "BT"
	default:
		return "TB"
	}
}

// RenderSVG renders DOT source to SVG with the embedded Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-based svg header with a plain
// viewBox so the image scales like the layout SVGs.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
