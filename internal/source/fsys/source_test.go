package fsys

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/sift/internal/domain"
)

func writeFile(t *testing.T, root, name string, data []byte) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestEnumerateClassifiesAndOrders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.jpg", []byte("img"))
	writeFile(t, root, "trips/new.mp4", []byte("vid"))
	writeFile(t, root, "notes.txt", []byte("skip me"))

	writeFile(t, root, "old.jpg.meta.json",
		[]byte(`{"createdAt":"2023-06-01T10:00:00Z"}`))
	writeFile(t, root, "trips/new.mp4.meta.json",
		[]byte(`{"createdAt":"2024-02-01T10:00:00Z"}`))

	src := New(root, nil)
	handles, err := src.Enumerate(context.Background(), domain.EnumeratePredicate{})
	require.NoError(t, err)

	require.Len(t, handles, 2, "non-media and sidecar files are skipped")
	assert.Equal(t, "trips/new.mp4", handles[0].ID, "newest first")
	assert.Equal(t, domain.MediaTypeVideo, handles[0].MediaType)
	assert.Equal(t, "old.jpg", handles[1].ID)
	assert.Equal(t, domain.MediaTypePhoto, handles[1].MediaType)
}

func TestEnumerateAppliesPredicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.jpg", []byte("img"))
	writeFile(t, root, "new.jpg", []byte("img"))
	writeFile(t, root, "old.jpg.meta.json", []byte(`{"createdAt":"2020-01-01T00:00:00Z"}`))
	writeFile(t, root, "new.jpg.meta.json", []byte(`{"createdAt":"2024-02-01T00:00:00Z"}`))

	src := New(root, nil)
	handles, err := src.Enumerate(context.Background(), domain.EnumeratePredicate{
		CreatedAfter: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, "new.jpg", handles[0].ID)
}

func TestSidecarCoordinate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "geo.jpg", []byte("img"))
	writeFile(t, root, "geo.jpg.meta.json",
		[]byte(`{"createdAt":"2024-01-01T00:00:00Z","latitude":38.72225,"longitude":-9.13934}`))

	src := New(root, nil)
	handles, err := src.Enumerate(context.Background(), domain.EnumeratePredicate{})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	require.NotNil(t, handles[0].Location)
	assert.InDelta(t, 38.72225, handles[0].Location.Latitude, 1e-9)
}

func drainUpdates(t *testing.T, ch <-chan domain.FetchUpdate) []domain.FetchUpdate {
	t.Helper()
	var updates []domain.FetchUpdate
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return updates
			}
			updates = append(updates, u)
		case <-deadline:
			t.Fatal("fetch stream never closed")
		}
	}
}

func TestFetchImagePreviewThenFull(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pic.jpg", []byte("full bytes"))
	writeFile(t, root, "pic.jpg.preview.jpg", []byte("tiny"))

	src := New(root, nil)
	updates := drainUpdates(t, src.FetchImage(context.Background(),
		domain.AssetHandle{ID: "pic.jpg"}, domain.Size{Width: 100, Height: 100}))

	require.Len(t, updates, 2)
	assert.Equal(t, domain.QualityDegraded, updates[0].Artifact.Quality)
	assert.Equal(t, []byte("tiny"), updates[0].Artifact.Data)
	assert.False(t, updates[0].Final)
	assert.True(t, updates[1].Final)
	assert.Equal(t, []byte("full bytes"), updates[1].Artifact.Data)
}

func TestFetchImageMissingIsCloudFailure(t *testing.T) {
	src := New(t.TempDir(), nil)
	updates := drainUpdates(t, src.FetchImage(context.Background(),
		domain.AssetHandle{ID: "ghost.jpg"}, domain.Size{Width: 100, Height: 100}))

	require.Len(t, updates, 1)
	require.True(t, updates[0].Final)
	require.Error(t, updates[0].Err)
	assert.Equal(t, domain.FailureCloud, domain.ClassOf(updates[0].Err))
}

func TestFetchVideoThumb(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clip.mp4", []byte("vid"))
	writeFile(t, root, "clip.mp4.thumb.jpg", []byte("poster"))

	src := New(root, nil)
	updates := drainUpdates(t, src.FetchVideoThumb(context.Background(),
		domain.AssetHandle{ID: "clip.mp4"}, domain.Size{Width: 100, Height: 100}))
	require.Len(t, updates, 1)
	assert.Equal(t, []byte("poster"), updates[0].Artifact.Data)

	// No poster frame reports a decode failure.
	writeFile(t, root, "bare.mp4", []byte("vid"))
	updates = drainUpdates(t, src.FetchVideoThumb(context.Background(),
		domain.AssetHandle{ID: "bare.mp4"}, domain.Size{Width: 100, Height: 100}))
	require.Len(t, updates, 1)
	assert.Equal(t, domain.FailureDecode, domain.ClassOf(updates[0].Err))
}

func TestDeleteAssetsRemovesFilesAndSidecars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doomed.jpg", []byte("img"))
	writeFile(t, root, "doomed.jpg.meta.json", []byte(`{}`))
	writeFile(t, root, "doomed.jpg.preview.jpg", []byte("tiny"))

	src := New(root, nil)
	require.NoError(t, src.DeleteAssets(context.Background(), []string{"doomed.jpg"}))

	for _, name := range []string{"doomed.jpg", "doomed.jpg.meta.json", "doomed.jpg.preview.jpg"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.True(t, os.IsNotExist(err), "%s should be gone", name)
	}
}

func TestFetchVideoURL(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clip.mp4", []byte("vid"))

	src := New(root, nil)
	url, err := src.FetchVideoURL(context.Background(), domain.AssetHandle{ID: "clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(root, "clip.mp4"), url)

	_, err = src.FetchVideoURL(context.Background(), domain.AssetHandle{ID: "ghost.mp4"})
	require.Error(t, err)
}
