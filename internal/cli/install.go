package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/elk/pkg/distribution"
)

// installCommand downloads and unpacks the ELK server.
func (c *CLI) installCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download and unpack the ELK server",
		Long: `Download and unpack the configured ELK server release.

The archive is verified against server.sha256 when set and cached under
$XDG_CACHE_HOME/elk-server, so later runs start without a download. A Java
runtime (17 or newer) must be available first. --force re-downloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd.Context(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove any existing download first")
	return cmd
}

func (c *CLI) runInstall(ctx context.Context, force bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		inst distribution.Installation
		err  error
	)
	if isTerminal() {
		inst, err = c.installInteractive(ctx, cancel, force)
	} else {
		inst, err = c.install(ctx, force, nil)
	}
	if err != nil {
		return err
	}

	printSuccess("ELK server %s is installed", inst.Version)
	printKeyValue("Script", inst.Script)
	printKeyValue("Java", inst.Java.String())
	printNewline()
	printNextStep("Lay out a graph", "elk layout graph.json")
	return nil
}

func (c *CLI) install(ctx context.Context, force bool, progress func(done, total int64)) (distribution.Installation, error) {
	mgr, err := c.manager(progress)
	if err != nil {
		return distribution.Installation{}, err
	}
	if force {
		if err := mgr.Remove(); err != nil {
			return distribution.Installation{}, err
		}
		c.Logger.Debug("Removed previous download", "dir", mgr.Dir())
	}
	return mgr.Ensure(ctx)
}

// installInteractive runs install behind a bubbletea progress view.
func (c *CLI) installInteractive(ctx context.Context, cancel context.CancelFunc, force bool) (distribution.Installation, error) {
	p := tea.NewProgram(newInstallModel(c.Config.Server.Version), tea.WithContext(ctx), tea.WithOutput(statusOut))

	go func() {
		inst, err := c.install(ctx, force, func(done, total int64) {
			p.Send(downloadMsg{done: done, total: total})
		})
		p.Send(installDoneMsg{inst: inst, err: err})
	}()

	final, runErr := p.Run()
	if ctx.Err() != nil {
		return distribution.Installation{}, ctx.Err()
	}
	if runErr != nil {
		return distribution.Installation{}, runErr
	}
	m := final.(installModel)
	if m.aborted {
		cancel()
		return distribution.Installation{}, context.Canceled
	}
	return m.inst, m.err
}

// =============================================================================
// installModel - Download progress view
// =============================================================================

type downloadMsg struct{ done, total int64 }

type installDoneMsg struct {
	inst distribution.Installation
	err  error
}

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	barWidth    = 30
	barMinWidth = 10
)

// installModel shows download progress until installation finishes.
type installModel struct {
	version  string
	done     int64
	total    int64
	width    int
	finished bool
	aborted  bool
	inst     distribution.Installation
	err      error
}

func newInstallModel(version string) installModel {
	return installModel{version: version, width: barWidth}
}

func (m installModel) Init() tea.Cmd {
	return nil
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case downloadMsg:
		m.done, m.total = msg.done, msg.total
	case installDoneMsg:
		m.finished = true
		m.inst, m.err = msg.inst, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-40, barMinWidth), barWidth)
	}
	return m, nil
}

func (m installModel) View() string {
	if m.finished || m.aborted {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Installing ELK server " + m.version))
	b.WriteString("\n")

	switch {
	case m.total > 0:
		frac := float64(m.done) / float64(m.total)
		filled := min(int(frac*float64(m.width)), m.width)
		b.WriteString(barFullStyle.Render(strings.Repeat("█", filled)))
		b.WriteString(barEmptyStyle.Render(strings.Repeat("░", m.width-filled)))
		b.WriteString(StyleDim.Render(fmt.Sprintf(" %3.0f%%  %s / %s", frac*100, formatBytes(m.done), formatBytes(m.total))))
	case m.done > 0:
		b.WriteString(StyleDim.Render("Downloading... " + formatBytes(m.done)))
	default:
		b.WriteString(StyleDim.Render("Checking Java and cached files..."))
	}
	b.WriteString("\n")
	return b.String()
}

// formatBytes formats n in binary units, e.g. "12.3 MiB".
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
