package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotCorrupt  = errors.New("snapshot is corrupt")
)

// snapshotKeyPrefix is shared with clients that read resume state directly.
const snapshotKeyPrefix = "examStatus_"

// SnapshotRepository persists resume snapshots keyed by session id.
type SnapshotRepository interface {
	// Load returns ErrSnapshotNotFound when nothing is stored and
	// ErrSnapshotCorrupt when the stored bytes do not decode.
	Load(ctx context.Context, sessionID string) (*models.Snapshot, error)
	Save(ctx context.Context, snapshot *models.Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// SnapshotKey is the storage key of a session's snapshot.
func SnapshotKey(sessionID string) string {
	return snapshotKeyPrefix + sessionID
}

// EncodeSnapshot is the canonical byte form shared by every backend.
func EncodeSnapshot(snapshot *models.Snapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("encode snapshot: nil snapshot")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snapshot.SessionID, err)
	}
	return data, nil
}

// DecodeSnapshot parses stored bytes, reporting any failure as
// ErrSnapshotCorrupt.
func DecodeSnapshot(sessionID string, data []byte) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, sessionID, err)
	}
	if snapshot.SessionID != "" && snapshot.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %s: belongs to session %s", ErrSnapshotCorrupt, sessionID, snapshot.SessionID)
	}
	return &snapshot, nil
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound)
}

func IsCorruptError(err error) bool {
	return errors.Is(err, ErrSnapshotCorrupt)
}
