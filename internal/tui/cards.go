package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/devportal/internal/content"
	"github.com/pders01/devportal/internal/preview"
)

// DefaultSocialImage is shown for video results without an image.
const DefaultSocialImage = "/images/social/social-card-default.jpeg"

// renderCard draws one result item. The site badge is only shown for items
// coming from a named index; video items get an image line.
func renderCard(item preview.ResultItem, width, descLimit int, selected bool) string {
	if width < 20 {
		width = 20
	}
	inner := width - 2

	title := HeaderStyle.Render(truncateEnd(oneLine(item.Name), inner))
	badges := []string{}
	if item.Type != "" {
		badges = append(badges, BadgeStyle.Render(item.Type))
	}
	if item.IndexName != "" && item.SiteName != "" {
		badges = append(badges, SiteBadgeStyle.Render(item.SiteName))
	}

	rows := []string{title}
	if len(badges) > 0 {
		rows = append(rows, strings.Join(badges, " "))
	}
	if desc := oneLine(item.Description); desc != "" {
		desc = preview.Truncate(desc, descLimit, true)
		rows = append(rows, lipgloss.NewStyle().Foreground(TextColor).Width(inner).Render(desc))
	}
	if item.Type == content.TypeVideo {
		img := item.ImageURL
		if img == "" {
			img = DefaultSocialImage
		}
		rows = append(rows, renderMuted("▶ "+truncateMiddle(img, inner-2)))
	}
	if item.URL != "" {
		rows = append(rows, TimeStyle.Render(truncateMiddle(item.URL, inner)))
	}

	style := CardStyle
	if selected {
		style = SelectedCardStyle
	}
	return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderTriggers draws the suggestion group headings and their triggers.
func renderTriggers(menu preview.Menu, width int) string {
	if len(menu.Groups) == 0 {
		return ""
	}
	var rows []string
	panels := menu.Triggers()
	i := 0
	for _, g := range menu.Groups {
		rows = append(rows, renderMuted(g.Title))
		var line []string
		for range g.Candidates {
			if i >= len(panels) {
				break
			}
			p := panels[i]
			i++
			style := TriggerStyle
			if p.Active {
				style = ActiveTriggerStyle
			}
			line = append(line, style.Render(p.Trigger))
		}
		rows = append(rows, lipgloss.NewStyle().Width(width).Render(strings.Join(line, " ")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
