package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SnapshotPostgreSQL struct {
	db *gorm.DB
}

func NewSnapshotPostgreSQL(db *gorm.DB) repositories.SnapshotRepository {
	return &SnapshotPostgreSQL{db: db}
}

// Migrate creates the snapshot table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.SessionSnapshot{})
}

func (s *SnapshotPostgreSQL) Load(ctx context.Context, sessionID string) (*models.Snapshot, error) {
	var row models.SessionSnapshot
	err := s.db.WithContext(ctx).
		Where("key = ?", repositories.SnapshotKey(sessionID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", repositories.ErrSnapshotNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return repositories.DecodeSnapshot(sessionID, row.Payload)
}

// Save upserts the row; the payload column is plain json so the stored
// bytes come back unchanged.
func (s *SnapshotPostgreSQL) Save(ctx context.Context, snapshot *models.Snapshot) error {
	data, err := repositories.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	row := models.SessionSnapshot{
		Key:       repositories.SnapshotKey(snapshot.SessionID),
		SessionID: snapshot.SessionID,
		Payload:   datatypes.JSON(data),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotPostgreSQL) Delete(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).
		Where("key = ?", repositories.SnapshotKey(sessionID)).
		Delete(&models.SessionSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
