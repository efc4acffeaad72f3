package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/sift/internal/artifact"
	"github.com/mmcdole/sift/internal/catalog"
	"github.com/mmcdole/sift/internal/domain"
)

// Command factories for async operations

// WaitForSnapshotCmd blocks on the catalog's subscription channel and
// re-arms itself after every delivery.
func WaitForSnapshotCmd(updates <-chan catalog.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// ResolveArtifactCmd opens the pipeline's update stream for an asset. Degraded
// previews arrive as ArtifactProgressMsg, the terminal result as ArtifactMsg.
// Dedup and timeouts live in the pipeline; this command just relays.
func ResolveArtifactCmd(pipe *artifact.Pipeline, asset *domain.Asset, size domain.Size) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		updates := pipe.ResolveUpdates(ctx, asset, size)
		return awaitArtifact(asset.ID, updates, cancel)
	}
}

// awaitArtifact turns the next stream emission into a message. The cancel
// func releases the stream context once the terminal update lands.
func awaitArtifact(assetID string, updates <-chan domain.FetchUpdate, cancel context.CancelFunc) tea.Msg {
	u, ok := <-updates
	if !ok {
		cancel()
		return ArtifactMsg{AssetID: assetID, Artifact: domain.Placeholder(assetID, domain.PlaceholderRetry)}
	}
	if u.Final {
		cancel()
		return ArtifactMsg{AssetID: assetID, Artifact: u.Artifact}
	}
	return ArtifactProgressMsg{
		AssetID:  assetID,
		Artifact: u.Artifact,
		next: func() tea.Msg {
			return awaitArtifact(assetID, updates, cancel)
		},
	}
}

// ReloadArtifactCmd forces a fresh fetch past the cache.
func ReloadArtifactCmd(pipe *artifact.Pipeline, asset *domain.Asset, size domain.Size) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		art := pipe.ForceReload(ctx, asset, size)
		return ArtifactMsg{AssetID: asset.ID, Artifact: art}
	}
}

// ResolveVideoURLCmd resolves a playable URL for a video asset.
func ResolveVideoURLCmd(pipe *artifact.Pipeline, asset *domain.Asset) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		url, ok := pipe.ResolveVideoURL(ctx, asset)
		return VideoURLMsg{AssetID: asset.ID, URL: url, OK: ok}
	}
}

// PurgeDeletedCmd permanently removes all deleted assets from the source.
func PurgeDeletedCmd(cat *catalog.Catalog) tea.Cmd {
	return func() tea.Msg {
		deleted := cat.ByStatus(domain.StatusDeleted)
		ids := make([]string, len(deleted))
		for i, a := range deleted {
			ids[i] = a.ID
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := cat.PermanentlyDelete(ctx, ids); err != nil {
			return PurgeDoneMsg{Err: err}
		}
		return PurgeDoneMsg{Count: len(ids)}
	}
}
