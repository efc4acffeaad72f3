package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/sift/internal/catalog"
	"github.com/mmcdole/sift/internal/domain"
)

// Messages flowing into the Bubble Tea update loop

// SnapshotMsg carries a freshly published catalog snapshot.
type SnapshotMsg struct {
	Snapshot catalog.Snapshot
}

// ArtifactMsg delivers a resolved artifact for the asset being displayed.
type ArtifactMsg struct {
	AssetID  string
	Artifact domain.Artifact
}

// ArtifactProgressMsg delivers a degraded preview ahead of the final artifact.
// next re-arms the stream so the terminal update still arrives.
type ArtifactProgressMsg struct {
	AssetID  string
	Artifact domain.Artifact
	next     tea.Cmd
}

// VideoURLMsg carries a resolved playback URL.
type VideoURLMsg struct {
	AssetID string
	URL     string
	OK      bool
}

// PurgeDoneMsg reports the outcome of a permanent delete.
type PurgeDoneMsg struct {
	Count int
	Err   error
}

// ErrMsg reports a failed async operation.
type ErrMsg struct {
	Err     error
	Context string
}
