package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/elk/pkg/graph"
)

// statusOut receives all status output; stdout is reserved for data.
var statusOut io.Writer = os.Stderr

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleCommand     = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// mark is the leading glyph of a status line.
type mark struct {
	icon  string
	style lipgloss.Style
}

var (
	markSuccess = mark{"✓", lipgloss.NewStyle().Foreground(colorGreen)}
	markError   = mark{"✗", lipgloss.NewStyle().Foreground(colorRed)}
	markWarning = mark{"!", lipgloss.NewStyle().Foreground(colorYellow)}
	markInfo    = mark{"›", lipgloss.NewStyle().Foreground(colorGray)}
)

func (m mark) line(text string) {
	fmt.Fprintln(statusOut, m.style.Render(m.icon)+" "+text)
}

func printSuccess(format string, args ...any) { markSuccess.line(fmt.Sprintf(format, args...)) }
func printError(format string, args ...any)   { markError.line(fmt.Sprintf(format, args...)) }
func printInfo(format string, args ...any)    { markInfo.line(fmt.Sprintf(format, args...)) }

func printWarning(format string, args ...any) {
	markWarning.line(StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, dimmed line under the previous status.
func printDetail(format string, args ...any) {
	fmt.Fprintln(statusOut, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile announces a written output file.
func printFile(path string) {
	fmt.Fprintln(statusOut, "  "+StyleDim.Render("→")+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(statusOut, styleKey.Render(key)+" "+StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Fprintln(statusOut, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

func printNewline() { fmt.Fprintln(statusOut) }

// printStats prints one summary line per laid-out graph.
func printStats(s graph.Stats, cached bool, elapsed time.Duration) {
	fmt.Fprintln(statusOut, "  "+statsLine(s, cached, elapsed))
}

// statsLine renders e.g. "12 nodes · 14 edges · 3 ports · cached · 8ms".
// Zero counts are left out.
func statsLine(s graph.Stats, cached bool, elapsed time.Duration) string {
	var parts []string
	add := func(n int, unit string) {
		if n > 0 {
			parts = append(parts, StyleDim.Render(fmt.Sprintf("%d %s", n, unit)))
		}
	}
	add(s.Nodes, "nodes")
	add(s.Edges, "edges")
	add(s.Ports, "ports")
	add(s.Labels, "labels")

	if cached {
		parts = append(parts, markSuccess.style.Render("cached"))
	} else {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorGray).Render("fresh"))
	}
	if elapsed > 0 {
		parts = append(parts, StyleDim.Render(elapsed.Round(time.Millisecond).String()))
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}
