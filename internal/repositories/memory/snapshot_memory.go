package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
)

// SnapshotMemory keeps encoded snapshots in process memory. It backs tests
// and single-node development.
type SnapshotMemory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewSnapshotMemory() *SnapshotMemory {
	return &SnapshotMemory{data: make(map[string][]byte)}
}

func (m *SnapshotMemory) Load(_ context.Context, sessionID string) (*models.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.data[repositories.SnapshotKey(sessionID)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrSnapshotNotFound, sessionID)
	}
	return repositories.DecodeSnapshot(sessionID, data)
}

func (m *SnapshotMemory) Save(_ context.Context, snapshot *models.Snapshot) error {
	data, err := repositories.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[repositories.SnapshotKey(snapshot.SessionID)] = data
	m.mu.Unlock()
	return nil
}

func (m *SnapshotMemory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.data, repositories.SnapshotKey(sessionID))
	m.mu.Unlock()
	return nil
}

// Raw returns a copy of the stored bytes for sessionID.
func (m *SnapshotMemory) Raw(sessionID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[repositories.SnapshotKey(sessionID)]
	return slices.Clone(data), ok
}

// Put stores raw bytes as-is, bypassing encoding.
func (m *SnapshotMemory) Put(sessionID string, data []byte) {
	m.mu.Lock()
	m.data[repositories.SnapshotKey(sessionID)] = slices.Clone(data)
	m.mu.Unlock()
}
