package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
)

// DefaultSnapshotTTL outlives any realistic practice test.
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotCache stores resume snapshots in the cache under
// examStatus_{sessionId}.
type SnapshotCache struct {
	cache CacheService
	ttl   time.Duration
}

func NewSnapshotCache(cache CacheService, ttl time.Duration) repositories.SnapshotRepository {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotCache{cache: cache, ttl: ttl}
}

func (s *SnapshotCache) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	var data []byte
	if err := s.cache.Get(ctx, repositories.SnapshotKey(sessionID), &data); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", repositories.ErrSnapshotNotFound, sessionID)
		}
		return nil, err
	}
	return repositories.DecodeSnapshot(sessionID, data)
}

func (s *SnapshotCache) Save(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := repositories.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, repositories.SnapshotKey(snapshot.SessionID), data, s.ttl)
}

func (s *SnapshotCache) Delete(ctx context.Context, sessionID string) error {
	return s.cache.Delete(ctx, repositories.SnapshotKey(sessionID))
}
