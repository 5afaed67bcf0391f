package control

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tsiyukino/yukiframe/internal/registry"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	crashedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "RUNNING", "STARTING":
		return runningStyle
	case "CRASHED", "ERROR":
		return crashedStyle
	default:
		return stoppedStyle
	}
}

func renderList(rows []row) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-20s %-10s %s", "NAME", "STATUS", "PID")))
	b.WriteByte('\n')
	for _, r := range rows {
		pid := "-"
		if r.pid > 0 {
			pid = fmt.Sprintf("%d", r.pid)
		}
		line := fmt.Sprintf("%-20s %-10s %s", r.name, r.status, pid)
		b.WriteString(statusStyle(r.status).Render(line))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(t *registry.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(t.Name()))
	fmt.Fprintf(&b, "  Status: %s\n", statusStyle(t.Status.String()).Render(t.Status.String()))
	fmt.Fprintf(&b, "  command:        %s\n", t.Command)
	fmt.Fprintf(&b, "  pid:            %d\n", t.PID())
	fmt.Fprintf(&b, "  restart policy: %s (on_crash=%v, count=%d/%d)\n",
		t.RestartPolicy, t.RestartOnCrash, t.RestartCount, t.MaxRestarts)
	fmt.Fprintf(&b, "  subscriptions:  %s\n", strings.Join(t.Subscriptions, ", "))
	fmt.Fprintf(&b, "  inbox:          %d/%d (delivered=%d dropped=%d)\n",
		t.Inbox.Count(), t.Inbox.Capacity(), t.Inbox.Delivered(), t.Inbox.Dropped())
	if !t.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  started at:     %s\n", t.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Banner renders the interactive console's startup banner.
func Banner(version string, toolCount int) string {
	return bannerStyle.Render(fmt.Sprintf("yuki-frame %s — %d tool(s) registered. Type 'help' for commands.", version, toolCount))
}
