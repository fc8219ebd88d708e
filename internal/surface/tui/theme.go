package tui

import "github.com/charmbracelet/lipgloss"

// palette 会话界面的颜色 / palette holds the colors of the session screen
type palette struct {
	accent  lipgloss.Color
	live    lipgloss.Color
	busy    lipgloss.Color
	good    lipgloss.Color
	quiet   lipgloss.Color
	text    lipgloss.Color
	border  lipgloss.Color
	backing lipgloss.Color
}

// Theme 按用途命名的样式 / Theme holds styles named by what they decorate
type Theme struct {
	colors palette

	Heading lipgloss.Style
	Banner  lipgloss.Style
	Pane    lipgloss.Style
	Query   lipgloss.Style
	Done    lipgloss.Style
	Dim     lipgloss.Style
	Cursor  lipgloss.Style
	Alert   lipgloss.Style
	Footer  lipgloss.Style
}

// NewTheme builds the default dark theme.
func NewTheme() Theme {
	c := palette{
		accent:  lipgloss.Color("#2563EB"),
		live:    lipgloss.Color("#DC2626"),
		busy:    lipgloss.Color("#D97706"),
		good:    lipgloss.Color("#059669"),
		quiet:   lipgloss.Color("#6B7280"),
		text:    lipgloss.Color("#E5E7EB"),
		border:  lipgloss.Color("#374151"),
		backing: lipgloss.Color("#111827"),
	}
	return Theme{
		colors:  c,
		Heading: lipgloss.NewStyle().Foreground(c.accent).Bold(true),
		Banner:  lipgloss.NewStyle().Foreground(c.busy),
		Pane: lipgloss.NewStyle().
			Foreground(c.text).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(c.border).
			Padding(0, 1),
		Query: lipgloss.NewStyle().
			Foreground(c.text).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(c.border),
		Done:   lipgloss.NewStyle().Foreground(c.good),
		Dim:    lipgloss.NewStyle().Foreground(c.quiet),
		Cursor: lipgloss.NewStyle().Foreground(c.accent).Bold(true),
		Alert:  lipgloss.NewStyle().Foreground(c.live).Bold(true),
		Footer: lipgloss.NewStyle().Foreground(c.quiet).Background(c.backing),
	}
}

// Badge 状态徽标样式；录音为红色，进行中为琥珀色，完成为绿色
// Badge styles the state badge: red while live or failed, amber while busy, green when done
func (t Theme) Badge(state string) lipgloss.Style {
	bg := t.colors.quiet
	switch state {
	case "recording", "failed":
		bg = t.colors.live
	case "paused", "processing", "uploading":
		bg = t.colors.busy
	case "ready", "uploaded":
		bg = t.colors.good
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(bg).Bold(true).Padding(0, 1)
}
