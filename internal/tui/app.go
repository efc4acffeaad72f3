package tui

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/sift/internal/artifact"
	"github.com/mmcdole/sift/internal/catalog"
	"github.com/mmcdole/sift/internal/domain"
	"github.com/mmcdole/sift/internal/search"
	"github.com/mmcdole/sift/internal/tui/styles"
)

// Mode is the active screen.
type Mode int

const (
	ModeTriage Mode = iota
	ModeFilterPick
	ModeReview
	ModeMemories
	ModeSearch
	ModeConfirmPurge
)

// displaySize is the artifact size requested for the card view. The terminal
// renders metadata, not pixels, so one size keeps the cache warm and deduped.
var displaySize = domain.Size{Width: 1024, Height: 1024}

// Model is the main Bubble Tea model for the application
type Model struct {
	keys   KeyMap
	logger *slog.Logger

	catalog *catalog.Catalog
	pipe    *artifact.Pipeline
	finder  *search.Service
	updates <-chan catalog.Snapshot

	snap  catalog.Snapshot
	index int // cursor into snap.View

	// Artifact state for the displayed asset
	artifactID string
	artifact   domain.Artifact
	loading    bool

	mode         Mode
	filterCursor int
	reviewStatus domain.Status // StatusSaved or StatusDeleted
	reviewCursor int
	memories     []*domain.Asset
	searchInput  textinput.Model
	results      []search.Result

	spinner  spinner.Model
	status   string // transient footer message
	width    int
	height   int
	quitting bool
}

// NewModel wires the engine into the UI.
func NewModel(cat *catalog.Catalog, pipe *artifact.Pipeline, finder *search.Service, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentStyle

	ti := textinput.New()
	ti.Placeholder = "search by place or month"
	ti.CharLimit = 64

	snap := *cat.Snapshot()
	m := Model{
		keys:         DefaultKeyMap(),
		logger:       logger,
		catalog:      cat,
		pipe:         pipe,
		finder:       finder,
		updates:      cat.Subscribe(),
		snap:         snap,
		index:        resumeIndex(snap.View, cat.ResumePosition()),
		reviewStatus: domain.StatusSaved,
		searchInput:  ti,
		spinner:      sp,
	}
	// Prime the loading state here: Init's value receiver cannot carry
	// mutations into the first render.
	if a := m.current(); a != nil {
		m.loading = true
		m.artifactID = a.ID
	}
	return m
}

// resumeIndex picks the starting cursor for a returning session: the first
// asset older than the last one the user acted on. Zero position or no older
// asset means start at the top.
func resumeIndex(view []*domain.Asset, last time.Time) int {
	if last.IsZero() {
		return 0
	}
	for i, a := range view {
		if a.CreationDate.Before(last) {
			return i
		}
	}
	return 0
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		WaitForSnapshotCmd(m.updates),
		m.resolveCurrent(),
	)
}

// current returns the asset under the triage cursor.
func (m *Model) current() *domain.Asset {
	if m.index < 0 || m.index >= len(m.snap.View) {
		return nil
	}
	return m.snap.View[m.index]
}

// resolveCurrent kicks off artifact resolution for the displayed asset.
func (m *Model) resolveCurrent() tea.Cmd {
	a := m.current()
	if a == nil {
		m.loading = false
		return nil
	}
	if m.artifactID == a.ID && !m.artifact.IsPlaceholder() && len(m.artifact.Data) > 0 {
		return nil
	}
	m.loading = true
	m.artifactID = a.ID
	m.artifact = domain.Artifact{}
	m.catalog.ResolveLocation(a.ID)
	return ResolveArtifactCmd(m.pipe, a, displaySize)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SnapshotMsg:
		m.snap = msg.Snapshot
		if m.index >= len(m.snap.View) {
			m.index = 0
		}
		return m, tea.Batch(WaitForSnapshotCmd(m.updates), m.resolveCurrent())

	case ArtifactMsg:
		if a := m.current(); a != nil && a.ID == msg.AssetID {
			m.artifact = msg.Artifact
			m.loading = false
		}
		return m, nil

	case ArtifactProgressMsg:
		if a := m.current(); a != nil && a.ID == msg.AssetID {
			m.artifact = msg.Artifact
		}
		// Keep draining even when the cursor moved on, so the stream's
		// terminal update (and its context) is released.
		return m, msg.next

	case VideoURLMsg:
		if msg.OK {
			m.status = "video: " + msg.URL
		} else {
			m.status = "video unavailable"
		}
		return m, nil

	case PurgeDoneMsg:
		m.mode = ModeReview
		if msg.Err != nil {
			m.status = styles.ErrorStyle.Render("purge failed: " + msg.Err.Error())
		} else {
			m.status = styles.SavedStyle.Render("purged")
			m.reviewCursor = 0
		}
		return m, nil

	case ErrMsg:
		m.status = styles.ErrorStyle.Render(msg.Context + ": " + msg.Err.Error())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == ModeSearch && m.searchInput.Focused() {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.mode = ModeTriage
			m.searchInput.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			m.results = m.finder.Query(m.searchInput.Value())
			m.searchInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.searchInput, cmd = m.searchInput.Update(msg)
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if err := m.catalog.SaveState(); err != nil {
			m.logger.Error("failed to save state on quit", "error", err)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.mode = ModeTriage
		m.status = ""
		return m, m.resolveCurrent()
	}

	switch m.mode {
	case ModeTriage:
		return m.handleTriageKey(msg)
	case ModeFilterPick:
		return m.handleFilterKey(msg)
	case ModeReview:
		return m.handleReviewKey(msg)
	case ModeMemories, ModeSearch:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeTriage
		}
		return m, nil
	case ModeConfirmPurge:
		if msg.String() == "y" {
			m.status = "purging..."
			return m, PurgeDeletedCmd(m.catalog)
		}
		m.mode = ModeReview
		return m, nil
	}
	return m, nil
}

func (m Model) handleTriageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		return m.transition(domain.StatusSaved)

	case key.Matches(msg, m.keys.Delete):
		return m.transition(domain.StatusDeleted)

	case key.Matches(msg, m.keys.Skip):
		if m.index < len(m.snap.View)-1 {
			m.index++
		}
		return m, m.resolveCurrent()

	case key.Matches(msg, m.keys.Prev):
		if m.index > 0 {
			m.index--
		}
		return m, m.resolveCurrent()

	case key.Matches(msg, m.keys.Reload):
		if a := m.current(); a != nil {
			m.loading = true
			m.artifactID = a.ID
			return m, ReloadArtifactCmd(m.pipe, a, displaySize)
		}
		return m, nil

	case key.Matches(msg, m.keys.Play):
		if a := m.current(); a != nil && a.MediaType == domain.MediaTypeVideo {
			return m, ResolveVideoURLCmd(m.pipe, a)
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.mode = ModeFilterPick
		m.filterCursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Review):
		m.mode = ModeReview
		m.reviewCursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Memory):
		m.memories = m.catalog.OnThisDay()
		m.mode = ModeMemories
		return m, nil

	case key.Matches(msg, m.keys.Search):
		pool := append(m.catalog.ByStatus(domain.StatusPending),
			m.catalog.ByStatus(domain.StatusSaved)...)
		m.finder.Rebuild(pool)
		m.results = nil
		m.searchInput.SetValue("")
		m.mode = ModeSearch
		return m, m.searchInput.Focus()
	}
	return m, nil
}

// transition applies a swipe to the current asset. The cursor stays put so
// the next asset in the recomputed view slides into place.
func (m Model) transition(status domain.Status) (tea.Model, tea.Cmd) {
	a := m.current()
	if a == nil {
		return m, nil
	}
	if err := m.catalog.Transition(a.ID, status); err != nil {
		m.status = styles.ErrorStyle.Render(err.Error())
		return m, nil
	}
	if status == domain.StatusSaved {
		m.status = styles.SavedStyle.Render("saved")
	} else {
		m.status = styles.DeletedStyle.Render("deleted")
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	options := m.filterOptions()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.filterCursor > 0 {
			m.filterCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.filterCursor < len(options)-1 {
			m.filterCursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.filterCursor < len(options) {
			m.catalog.SetFilter(options[m.filterCursor])
			m.index = 0
		}
		m.mode = ModeTriage
		return m, m.resolveCurrent()
	}
	return m, nil
}

// filterOptions lists the selectable filters: this week, All, then every
// available month bucket newest first.
func (m Model) filterOptions() []domain.FilterSpec {
	options := []domain.FilterSpec{domain.ThisWeekFilter(), domain.AllFilter()}
	for _, b := range m.snap.Buckets {
		options = append(options, domain.MonthFilter(b))
	}
	return options
}

func (m Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	assets := m.catalog.ByStatus(m.reviewStatus)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.reviewCursor > 0 {
			m.reviewCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.reviewCursor < len(assets)-1 {
			m.reviewCursor++
		}
	case key.Matches(msg, m.keys.Review):
		if m.reviewStatus == domain.StatusSaved {
			m.reviewStatus = domain.StatusDeleted
		} else {
			m.reviewStatus = domain.StatusSaved
		}
		m.reviewCursor = 0
	case key.Matches(msg, m.keys.Restore):
		if m.reviewStatus == domain.StatusDeleted && m.reviewCursor < len(assets) {
			if err := m.catalog.Restore(assets[m.reviewCursor].ID); err != nil {
				m.status = styles.ErrorStyle.Render(err.Error())
			}
		}
	case key.Matches(msg, m.keys.Purge):
		if m.reviewStatus == domain.StatusDeleted && m.catalog.CanDelete() && len(assets) > 0 {
			m.mode = ModeConfirmPurge
		}
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeTriage
		return m, m.resolveCurrent()
	}
	return m, nil
}
