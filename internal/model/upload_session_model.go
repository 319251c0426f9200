package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UploadSession struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId         *uuid.UUID     `gorm:"type:uuid;index"`
	Status          string         `gorm:"type:varchar(20);not null;default:'uploading';index"`
	SourceFilenames datatypes.JSON `gorm:"type:jsonb"`
	TotalChunks     int            `gorm:"not null"`
	TotalSize       int64          `gorm:"type:bigint;not null"`
	ContentRef      string         `gorm:"type:varchar(500)"`
	RetryCount      int            `gorm:"not null;default:0"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	LastUsedAt      *time.Time     `gorm:"index"`
}

func (UploadSession) TableName() string {
	return "upload_sessions"
}
