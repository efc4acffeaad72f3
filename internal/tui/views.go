package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/sift/internal/domain"
	"github.com/mmcdole/sift/internal/tui/styles"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.mode {
	case ModeFilterPick:
		body = m.viewFilterPick()
	case ModeReview:
		body = m.viewReview()
	case ModeMemories:
		body = m.viewMemories()
	case ModeSearch:
		body = m.viewSearch()
	case ModeConfirmPurge:
		body = m.viewConfirmPurge()
	default:
		body = m.viewTriage()
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.viewHeader(), body, m.viewFooter())
}

func (m Model) viewHeader() string {
	title := styles.TitleStyle.Render("sift")

	filter := "no filter"
	if m.snap.HasFilter {
		filter = m.snap.Filter.Label()
	}
	parts := []string{title, styles.AccentStyle.Render(filter)}

	if m.snap.HasFilter && m.snap.Progress.Total > 0 {
		parts = append(parts, styles.SubtitleStyle.Render(fmt.Sprintf(
			"%d left of %d (%.0f%%)",
			m.snap.Progress.RemainingPending,
			m.snap.Progress.Total,
			m.snap.Progress.PercentComplete,
		)))
	}
	if m.snap.Complete {
		parts = append(parts, styles.SavedStyle.Render("complete"))
	}
	if m.snap.Ingesting {
		parts = append(parts, m.spinner.View()+styles.DimStyle.Render("loading library"))
	}

	return strings.Join(parts, "  ")
}

func (m Model) viewTriage() string {
	a := m.current()
	if a == nil {
		msg := "Nothing to triage here."
		if len(m.snap.Buckets) > 0 {
			msg += " Press f to pick another month."
		}
		return styles.CardBorder.Render(styles.DimStyle.Render(msg))
	}

	var lines []string
	lines = append(lines, styles.TitleStyle.Render(a.FormattedDate()))

	kind := "Photo"
	if a.MediaType == domain.MediaTypeVideo {
		kind = "Video " + a.FormattedDuration()
	}
	lines = append(lines, styles.SubtitleStyle.Render(kind))

	if a.Location != nil {
		label := a.LocationLabel
		if label == "" {
			label = "locating..."
		}
		lines = append(lines, styles.SubtitleStyle.Render("📍 "+label))
	}

	lines = append(lines, "")
	lines = append(lines, m.viewArtifact())
	lines = append(lines, "")
	lines = append(lines, styles.DimStyle.Render(fmt.Sprintf(
		"%d of %d in %s", m.index+1, len(m.snap.View), m.snap.Filter.Label())))

	return styles.CardBorder.Render(strings.Join(lines, "\n"))
}

// viewArtifact describes the fetch state of the displayed asset. The
// terminal shows bytes and quality rather than pixels.
func (m Model) viewArtifact() string {
	if m.loading && len(m.artifact.Data) == 0 {
		return m.spinner.View() + styles.DimStyle.Render(" fetching")
	}
	switch m.artifact.Placeholder {
	case domain.PlaceholderCloud:
		return styles.ErrorStyle.Render("☁ unavailable (offloaded or offline)")
	case domain.PlaceholderRetry:
		return styles.ErrorStyle.Render("⏱ timed out, press r to retry")
	case domain.PlaceholderBroken:
		return styles.ErrorStyle.Render("✗ could not load")
	}
	quality := ""
	if m.artifact.Quality == domain.QualityDegraded {
		quality = styles.DimStyle.Render(" (preview)")
	}
	return styles.SavedStyle.Render(fmt.Sprintf("■ %d KB loaded", len(m.artifact.Data)/1024)) + quality
}

func (m Model) viewFilterPick() string {
	options := m.filterOptions()
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Pick a filter") + "\n\n")
	for i, opt := range options {
		label := opt.Label()
		if opt.Kind == domain.FilterMonthYear {
			p := m.catalog.Progress(opt)
			label = fmt.Sprintf("%s  %s", label,
				styles.DimStyle.Render(fmt.Sprintf("%d left", p.RemainingPending)))
		}
		if i == m.filterCursor {
			b.WriteString(styles.HighlightStyle.Render(label) + "\n")
		} else {
			b.WriteString("  " + label + "\n")
		}
	}
	return styles.PanelBorder.Render(b.String())
}

func (m Model) viewReview() string {
	title := "Saved"
	mark := styles.SavedMark
	if m.reviewStatus == domain.StatusDeleted {
		title = "Deleted"
		mark = styles.DeletedMark
	}

	groups := m.catalog.GroupedByMonth(m.reviewStatus)
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(title) + styles.DimStyle.Render("  (tab to switch)") + "\n")

	row := 0
	for _, g := range groups {
		b.WriteString("\n" + styles.AccentStyle.Render(g.Label) + "\n")
		for _, a := range g.Assets {
			line := fmt.Sprintf("%s %s", mark, a.FormattedDate())
			if a.LocationLabel != "" {
				line += styles.DimStyle.Render("  " + a.LocationLabel)
			}
			if row == m.reviewCursor {
				line = styles.HighlightStyle.Render(line)
			}
			b.WriteString(line + "\n")
			row++
		}
	}
	if row == 0 {
		b.WriteString("\n" + styles.DimStyle.Render("nothing here yet") + "\n")
	}

	if m.reviewStatus == domain.StatusDeleted && m.catalog.CanDelete() && row > 0 {
		b.WriteString("\n" + styles.DimStyle.Render("u restore · X purge all"))
	}
	return styles.PanelBorder.Render(b.String())
}

func (m Model) viewMemories() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("On This Day") + "\n\n")
	if len(m.memories) == 0 {
		b.WriteString(styles.DimStyle.Render("no saved memories for today") + "\n")
	}
	for _, a := range m.memories {
		line := styles.SavedMark + " " + a.FormattedDate()
		if a.LocationLabel != "" {
			line += styles.DimStyle.Render("  " + a.LocationLabel)
		}
		b.WriteString(line + "\n")
	}
	return styles.PanelBorder.Render(b.String())
}

func (m Model) viewSearch() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Search") + "\n")
	b.WriteString(m.searchInput.View() + "\n\n")

	for i, r := range m.results {
		if i >= 15 {
			b.WriteString(styles.DimStyle.Render(fmt.Sprintf("… %d more", len(m.results)-i)) + "\n")
			break
		}
		a := r.Asset
		line := a.FormattedDate()
		if a.LocationLabel != "" {
			line += "  " + a.LocationLabel
		}
		b.WriteString(line + "  " + statusMark(a.Status) + "\n")
	}
	if len(m.results) == 0 && !m.searchInput.Focused() {
		b.WriteString(styles.DimStyle.Render("no matches") + "\n")
	}
	return styles.PanelBorder.Render(b.String())
}

func (m Model) viewConfirmPurge() string {
	count := len(m.catalog.ByStatus(domain.StatusDeleted))
	msg := fmt.Sprintf("Permanently delete %d assets from the library? (y/n)", count)
	return styles.PanelBorder.Render(styles.ErrorStyle.Render(msg))
}

func (m Model) viewFooter() string {
	var help string
	switch m.mode {
	case ModeTriage:
		help = "s/→ save · d/← delete · n skip · r reload · f filter · tab review · m memories · / search · q quit"
	case ModeFilterPick:
		help = "j/k move · enter select · esc cancel"
	case ModeReview:
		help = "j/k move · tab switch · h back · q quit"
	default:
		help = "esc back · q quit"
	}
	footer := styles.DimStyle.Render(help)
	if m.status != "" {
		footer = m.status + "  " + footer
	}
	return footer
}

func statusMark(s domain.Status) string {
	switch s {
	case domain.StatusSaved:
		return styles.SavedMark
	case domain.StatusDeleted:
		return styles.DeletedMark
	default:
		return styles.PendingMark
	}
}
