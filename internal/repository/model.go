package repository

import (
	"time"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

// MessageModel is the GORM model for the messages table.
type MessageModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	RoomID    string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_room_seq,priority:1;index:idx_room_ts"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_room_seq,priority:2"`
	FromID    string    `gorm:"type:varchar(128);not null"`
	FromName  string    `gorm:"type:varchar(100)"`
	Text      string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_room_ts"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Seq:       m.Seq,
		FromID:    m.FromID,
		FromName:  m.FromName,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

func MessageToModel(msg *domain.Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		Seq:       msg.Seq,
		FromID:    msg.FromID,
		FromName:  msg.FromName,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
}

// RoomSummaryModel is the materialized last-message-per-room index used
// for conversation listing. One row per room, upserted with every append
// in the same transaction as the message insert.
type RoomSummaryModel struct {
	RoomID       string    `gorm:"type:varchar(255);primaryKey"`
	ParticipantA string    `gorm:"type:varchar(128);not null;index"`
	ParticipantB string    `gorm:"type:varchar(128);not null;index"`
	LastMsgID    string    `gorm:"type:varchar(36);not null"`
	LastSeq      int64     `gorm:"not null"`
	LastFromID   string    `gorm:"type:varchar(128);not null"`
	LastFromName string    `gorm:"type:varchar(100)"`
	LastText     string    `gorm:"type:text"`
	UpdatedAt    time.Time `gorm:"not null;index"`
}

func (RoomSummaryModel) TableName() string {
	return "room_summaries"
}

func (m *RoomSummaryModel) toSummary(viewerID string) domain.ConversationSummary {
	otherID := m.ParticipantA
	if otherID == viewerID {
		otherID = m.ParticipantB
	}

	// The display name is only known here when the other party sent the
	// last message; the service layer fills the gap from the profile
	// directory or the presence registry.
	otherName := ""
	if m.LastFromID == otherID {
		otherName = m.LastFromName
	}

	return domain.ConversationSummary{
		RoomID:    m.RoomID,
		OtherID:   otherID,
		OtherName: otherName,
		LastMsg: domain.Message{
			ID:        m.LastMsgID,
			RoomID:    m.RoomID,
			Seq:       m.LastSeq,
			FromID:    m.LastFromID,
			FromName:  m.LastFromName,
			Text:      m.LastText,
			Timestamp: m.UpdatedAt,
		},
		UpdatedAt: m.UpdatedAt,
	}
}
