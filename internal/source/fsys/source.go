// Package fsys implements the asset source over a local directory tree.
// Media files are enumerated by extension; an optional sidecar next to each
// file supplies capture metadata the filesystem cannot. Sidecar conventions:
//
//	photo.jpg.meta.json   capture time and GPS coordinate
//	photo.jpg.preview.jpg low-resolution preview, streamed before the full file
//	video.mp4.thumb.jpg   poster frame for videos
package fsys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/sift/internal/domain"
)

const (
	metaSuffix    = ".meta.json"
	previewSuffix = ".preview.jpg"
	thumbSuffix   = ".thumb.jpg"
)

var photoExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".heif": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true,
	".avi": true, ".mkv": true, ".webm": true,
}

// sidecarMeta is the on-disk metadata format.
type sidecarMeta struct {
	CreatedAt time.Time `json:"createdAt"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
}

// Source serves assets from a directory tree. Asset IDs are paths relative
// to the root, so they stay stable across runs.
type Source struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{root: root, logger: logger}
}

// Enumerate walks the tree and returns lightweight handles, newest first.
// Unreadable files and directories are skipped, never fatal.
func (s *Source) Enumerate(ctx context.Context, pred domain.EnumeratePredicate) ([]domain.AssetHandle, error) {
	var handles []domain.AssetHandle

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		mt, ok := mediaTypeFor(path)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warn("skipping file without stat info", "path", path, "error", err)
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}

		h := domain.AssetHandle{
			ID:               filepath.ToSlash(rel),
			MediaType:        mt,
			CreationDate:     info.ModTime(),
			ModificationDate: info.ModTime(),
		}
		s.applyMeta(path, &h)

		if !matchesPredicate(h, pred) {
			return nil
		}
		handles = append(handles, h)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}

	sort.SliceStable(handles, func(i, j int) bool {
		return handles[i].CreationDate.After(handles[j].CreationDate)
	})
	return handles, nil
}

// applyMeta overlays sidecar metadata onto a handle when present.
func (s *Source) applyMeta(path string, h *domain.AssetHandle) {
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		return
	}
	var meta sidecarMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("malformed sidecar metadata", "path", path, "error", err)
		return
	}
	if !meta.CreatedAt.IsZero() {
		h.CreationDate = meta.CreatedAt
	}
	if meta.Latitude != nil && meta.Longitude != nil {
		h.Location = &domain.Coordinate{
			Latitude:  *meta.Latitude,
			Longitude: *meta.Longitude,
		}
	}
}

func matchesPredicate(h domain.AssetHandle, pred domain.EnumeratePredicate) bool {
	if !pred.CreatedAfter.IsZero() && h.CreationDate.Before(pred.CreatedAfter) {
		return false
	}
	if len(pred.MediaTypes) > 0 {
		found := false
		for _, mt := range pred.MediaTypes {
			if mt == h.MediaType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FetchImage streams the asset's bytes. When a preview sidecar exists it is
// emitted first as a degraded result, then the full file follows as the
// final update. The returned channel always closes after the final update.
func (s *Source) FetchImage(ctx context.Context, handle domain.AssetHandle, size domain.Size) <-chan domain.FetchUpdate {
	out := make(chan domain.FetchUpdate, 2)
	go func() {
		defer close(out)
		path := s.abs(handle.ID)

		if preview, err := os.ReadFile(path + previewSuffix); err == nil {
			update := domain.FetchUpdate{
				Artifact: domain.Artifact{
					AssetID: handle.ID,
					Data:    preview,
					Quality: domain.QualityDegraded,
				},
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			out <- domain.FetchUpdate{Final: true, Err: classifyReadError(err)}
			return
		}
		out <- domain.FetchUpdate{
			Artifact: domain.Artifact{AssetID: handle.ID, Data: data, Quality: domain.QualityFull},
			Final:    true,
		}
	}()
	return out
}

// FetchVideoThumb returns the poster frame sidecar for a video.
func (s *Source) FetchVideoThumb(ctx context.Context, handle domain.AssetHandle, size domain.Size) <-chan domain.FetchUpdate {
	out := make(chan domain.FetchUpdate, 1)
	go func() {
		defer close(out)
		data, err := os.ReadFile(s.abs(handle.ID) + thumbSuffix)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = domain.NewFetchError(domain.FailureDecode,
					fmt.Errorf("no poster frame for %s", handle.ID))
			} else {
				err = classifyReadError(err)
			}
			out <- domain.FetchUpdate{Final: true, Err: err}
			return
		}
		out <- domain.FetchUpdate{
			Artifact: domain.Artifact{AssetID: handle.ID, Data: data, Quality: domain.QualityFull},
			Final:    true,
		}
	}()
	return out
}

// FetchVideoURL returns a playable URL for a video asset.
func (s *Source) FetchVideoURL(ctx context.Context, handle domain.AssetHandle) (string, error) {
	path := s.abs(handle.ID)
	if _, err := os.Stat(path); err != nil {
		return "", classifyReadError(err)
	}
	return "file://" + path, nil
}

// DeleteAssets removes the files and their sidecars. Partial failure stops
// at the first error so callers never see phantom removals.
func (s *Source) DeleteAssets(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path := s.abs(id)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		for _, suffix := range []string{metaSuffix, previewSuffix, thumbSuffix} {
			os.Remove(path + suffix)
		}
		s.logger.Info("deleted asset", "id", id)
	}
	return nil
}

func (s *Source) abs(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id))
}

func mediaTypeFor(path string) (domain.MediaType, bool) {
	if strings.HasSuffix(path, metaSuffix) ||
		strings.HasSuffix(path, previewSuffix) ||
		strings.HasSuffix(path, thumbSuffix) {
		return 0, false
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case photoExts[ext]:
		return domain.MediaTypePhoto, true
	case videoExts[ext]:
		return domain.MediaTypeVideo, true
	default:
		return 0, false
	}
}

// classifyReadError maps filesystem failures to fetch failure classes.
// Missing bytes for a known asset look like offloaded storage, so they
// report as a cloud failure; everything else is generic.
func classifyReadError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewFetchError(domain.FailureCloud, err)
	}
	return domain.NewFetchError(domain.FailureGeneric, err)
}
