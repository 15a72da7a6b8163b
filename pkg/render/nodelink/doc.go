// Package nodelink previews an ELK input graph as a Graphviz diagram.
//
// The preview shows the structure of a graph before it is sent to the ELK
// server: nodes as boxes, compound nodes as clusters and edges as arrows.
// It needs no Java runtime because Graphviz is embedded through
// [github.com/goccy/go-graphviz].
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(dot)
//
// Edges that attach to ports are drawn from the port's node; with
// Options.Detailed the port ids appear as head and tail labels.
package nodelink
