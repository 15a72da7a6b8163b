package svg

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/graph"
)

func shape(x, y, w, h float64) graph.Element {
	return graph.Element{Shape: &graph.ShapeLayout{
		Position: graph.Point{X: x, Y: y},
		Size:     graph.Dimension{Width: w, Height: h},
	}}
}

func route(pts ...float64) graph.Element {
	var r []graph.Point
	for i := 0; i+1 < len(pts); i += 2 {
		r = append(r, graph.Point{X: pts[i], Y: pts[i+1]})
	}
	return graph.Element{Edge: &graph.EdgeLayout{Route: r}}
}

func nestedGraph() (*graph.Graph, graph.LayoutData) {
	g := &graph.Graph{
		ID: "root",
		Children: []graph.Node{
			{
				ID:     "parent",
				Labels: []graph.Label{{Text: "Parent & Co"}},
				Children: []graph.Node{
					{ID: "a", Labels: []graph.Label{{Text: "A"}}, Ports: []graph.Port{{ID: "a.out"}}},
					{ID: "b", Labels: []graph.Label{{Text: "B"}}},
				},
				Edges: []graph.Edge{{
					ID: "inner", Sources: []string{"a.out"}, Targets: []string{"b"},
					Labels: []graph.Label{{Text: "calls"}},
				}},
			},
			{ID: "c"},
		},
		Edges: []graph.Edge{{ID: "outer", Sources: []string{"parent"}, Targets: []string{"c"}}},
	}
	data := graph.LayoutData{
		"root":   shape(0, 0, 300, 200),
		"parent": shape(10, 20, 200, 150),
		"a":      shape(5, 5, 40, 30),
		"a.out":  shape(40, 12, 5, 5),
		"b":      shape(100, 5, 40, 30),
		"c":      shape(250, 50, 40, 30),
		"inner":  route(45, 20, 100, 20),
		"outer":  route(210, 65, 250, 65),
	}
	return g, data
}

func TestRender_AbsolutePositions(t *testing.T) {
	g, data := nestedGraph()
	out, err := Render(g, data, Options{})
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, `viewBox="0 0 340.0 240.0"`)
	assert.Contains(t, s, `<rect id="parent" class="node compound" x="10" y="20" width="200" height="150"/>`)
	// a sits at parent(10,20) + (5,5)
	assert.Contains(t, s, `<rect id="a" class="node" x="15" y="25" width="40" height="30"/>`)
	// port is relative to its node
	assert.Contains(t, s, `<rect id="a.out" class="port" x="55" y="37" width="5" height="5"/>`)
	// edges declared in parent are offset by the parent
	assert.Contains(t, s, `points="55,40 110,40"`)
	assert.Contains(t, s, `points="210,65 250,65"`)
}

func TestRender_EscapesText(t *testing.T) {
	g, data := nestedGraph()
	out, err := Render(g, data, Options{Title: "<graph>"})
	require.NoError(t, err)

	assert.Contains(t, string(out), "Parent &amp; Co")
	assert.Contains(t, string(out), "<title>&lt;graph&gt;</title>")

	var doc struct{ XMLName xml.Name }
	require.NoError(t, xml.Unmarshal(out, &doc), "output must be well-formed XML")
	assert.Equal(t, "svg", doc.XMLName.Local)
}

func TestRender_HideLabels(t *testing.T) {
	g, data := nestedGraph()
	out, err := Render(g, data, Options{HideLabels: true})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<text")
}

func TestRender_SkipsElementsWithoutLayout(t *testing.T) {
	g, data := nestedGraph()
	delete(data, "c")
	delete(data, "outer")
	out, err := Render(g, data, Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(out), `id="c"`)
	assert.NotContains(t, string(out), `id="outer"`)
}

func TestRender_MissingRoot(t *testing.T) {
	g, data := nestedGraph()
	delete(data, "root")
	_, err := Render(g, data, Options{})
	assert.True(t, elkerrors.Is(err, elkerrors.ErrCodeInvalidInput), "got %v", err)
}

func TestMidpoint(t *testing.T) {
	tests := []struct {
		name  string
		route []graph.Point
		want  graph.Point
	}{
		{"straight", []graph.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, graph.Point{X: 5, Y: 0}},
		{"bend", []graph.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, graph.Point{X: 10, Y: 0}},
		{"degenerate", []graph.Point{{X: 3, Y: 3}, {X: 3, Y: 3}}, graph.Point{X: 3, Y: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, midpoint(tt.route))
		})
	}
}

func TestNum(t *testing.T) {
	for in, want := range map[float64]string{0: "0", 1.5: "1.5", 2.25: "2.25", 10: "10", -0.001: "0", 3.333: "3.33"} {
		assert.Equal(t, want, num(in), "num(%v)", in)
	}
	assert.False(t, strings.Contains(num(100), "."))
}
