package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/pkg/database"
)

// GormMessageRepository implements MessageRepository over a relational
// database (sqlite, postgres, or mysql via the shared database package).
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates the repository and runs migrations.
func NewGormMessageRepository(db *gorm.DB) (*GormMessageRepository, error) {
	if err := database.AutoMigrate(db, &MessageModel{}, &RoomSummaryModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate message tables: %w", err)
	}
	return &GormMessageRepository{db: db}, nil
}

func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message, participants [2]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(MessageToModel(msg)).Error; err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		summary := &RoomSummaryModel{
			RoomID:       msg.RoomID,
			ParticipantA: participants[0],
			ParticipantB: participants[1],
			LastMsgID:    msg.ID,
			LastSeq:      msg.Seq,
			LastFromID:   msg.FromID,
			LastFromName: msg.FromName,
			LastText:     msg.Text,
			UpdatedAt:    msg.Timestamp,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_msg_id", "last_seq", "last_from_id", "last_from_name", "last_text", "updated_at",
			}),
		}).Create(summary).Error; err != nil {
			return fmt.Errorf("failed to upsert room summary: %w", err)
		}

		return nil
	})
}

func (r *GormMessageRepository) ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where("room_id = ? AND seq > ?", roomID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []MessageModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]domain.Message, len(models))
	for i := range models {
		messages[i] = models[i].ToDomain()
	}
	return messages, nil
}

func (r *GormMessageRepository) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	var models []RoomSummaryModel
	err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]domain.ConversationSummary, len(models))
	for i := range models {
		summaries[i] = models[i].toSummary(userID)
	}
	return summaries, nil
}

func (r *GormMessageRepository) LatestSeq(ctx context.Context, roomID string) (int64, error) {
	var model MessageModel
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query latest seq: %w", err)
	}
	return model.Seq, nil
}

func (r *GormMessageRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
