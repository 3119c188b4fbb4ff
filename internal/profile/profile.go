// Package profile is the optional directory lookup from a user id to
// display data. Messaging never depends on it: every caller tolerates a
// nil directory and a missed lookup.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dhruvin2968/facebook-messaging/pkg/database"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is the display data kept for a user.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Directory resolves user ids to profiles.
type Directory interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Upserter is implemented by directories that can record display names
// observed at announce time.
type Upserter interface {
	Upsert(ctx context.Context, p *Profile) error
}

// ProfileModel is the GORM model for the profiles table.
type ProfileModel struct {
	UserID      string    `gorm:"type:varchar(128);primaryKey"`
	DisplayName string    `gorm:"type:varchar(100);not null"`
	AvatarURL   string    `gorm:"type:varchar(512)"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ProfileModel) TableName() string {
	return "profiles"
}

// GormDirectory implements Directory over the relational database.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) (*GormDirectory, error) {
	if err := database.AutoMigrate(db, &ProfileModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate profiles table: %w", err)
	}
	return &GormDirectory{db: db}, nil
}

func (d *GormDirectory) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var model ProfileModel
	err := d.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &Profile{
		UserID:      model.UserID,
		DisplayName: model.DisplayName,
		AvatarURL:   model.AvatarURL,
	}, nil
}

// Upsert records the latest known display name for a user. Called with
// the name carried by each announce so the directory stays warm without
// an external profile service.
func (d *GormDirectory) Upsert(ctx context.Context, p *Profile) error {
	return d.db.WithContext(ctx).Save(&ProfileModel{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}).Error
}
