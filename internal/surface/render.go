package surface

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"callsync/internal/i18n"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}

// StateLabel returns the localized name of a session state.
func StateLabel(loc *i18n.I18n, state string) string {
	return loc.T("state." + state)
}

// RenderChecklist 纯文本清单，供 REPL 与 show 命令使用
// RenderChecklist renders the checklist as plain text lines for line-oriented output
func RenderChecklist(loc *i18n.I18n, items []ChecklistEntry) string {
	var b strings.Builder
	done := 0
	for _, it := range items {
		mark := "[ ]"
		if it.Checked {
			mark = "[x]"
			done++
		}
		line := fmt.Sprintf("  %s %-20s %s", mark, it.ID, it.Label)
		if it.Manual {
			line += " (" + loc.T("checklist.manual") + ")"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("  " + loc.T("checklist.progress", done, len(items)))
	return b.String()
}
