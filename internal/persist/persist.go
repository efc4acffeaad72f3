package persist

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mmcdole/sift/internal/domain"
)

const (
	stateKey      = "triage:state"
	schemaVersion = "1.0"
)

// state is the durable snapshot: classification IDs plus the resume
// position. Nothing else about an asset is persisted.
type state struct {
	SchemaVersion string   `json:"schemaVersion"`
	SavedIDs      []string `json:"savedIds"`
	DeletedIDs    []string `json:"deletedIds"`
	LastPosition  int64    `json:"lastPosition,omitempty"` // unix seconds
}

// Classification is the result of restoring durable state against the
// currently-enumerable handles.
type Classification struct {
	// Statuses maps asset ID to saved/deleted for IDs that are still
	// enumerable. Pending is the implicit default and never stored.
	Statuses map[string]domain.Status

	// LastPosition is the creation date of the asset the user last viewed,
	// zero when unknown.
	LastPosition time.Time
}

// Sync snapshots and restores the minimal durable classification state.
type Sync struct {
	kv     domain.KVStore
	logger *slog.Logger
}

// New creates a new Sync over a durable key-value store.
func New(kv domain.KVStore, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{kv: kv, logger: logger}
}

// Snapshot writes the classification state as a single atomic replace.
func (s *Sync) Snapshot(savedIDs, deletedIDs []string, lastPosition time.Time) error {
	st := state{
		SchemaVersion: schemaVersion,
		SavedIDs:      savedIDs,
		DeletedIDs:    deletedIDs,
	}
	if !lastPosition.IsZero() {
		st.LastPosition = lastPosition.Unix()
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.kv.Set(stateKey, data); err != nil {
		s.logger.Error("failed to persist triage state", "error", err)
		return err
	}
	s.logger.Debug("persisted triage state",
		"saved", len(savedIDs), "deleted", len(deletedIDs))
	return nil
}

// Restore reads durable state and maps stored IDs onto the given handles.
// A missing or schema-mismatched snapshot yields an empty classification
// (cold start); stored IDs that are no longer enumerable are dropped.
func (s *Sync) Restore(handles []domain.AssetHandle) Classification {
	cls := Classification{Statuses: make(map[string]domain.Status)}

	data, ok := s.kv.Get(stateKey)
	if !ok {
		return cls
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("discarding unreadable triage state", "error", err)
		return cls
	}
	if st.SchemaVersion != schemaVersion {
		s.logger.Warn("discarding triage state with unexpected schema",
			"got", st.SchemaVersion, "want", schemaVersion)
		return cls
	}

	present := make(map[string]bool, len(handles))
	for _, h := range handles {
		present[h.ID] = true
	}

	for _, id := range st.SavedIDs {
		if present[id] {
			cls.Statuses[id] = domain.StatusSaved
		}
	}
	for _, id := range st.DeletedIDs {
		if present[id] {
			cls.Statuses[id] = domain.StatusDeleted
		}
	}
	if st.LastPosition != 0 {
		cls.LastPosition = time.Unix(st.LastPosition, 0)
	}

	s.logger.Debug("restored triage state", "classified", len(cls.Statuses))
	return cls
}
