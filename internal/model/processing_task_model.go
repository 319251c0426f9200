package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProcessingTask struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID      `gorm:"type:uuid;not null;index"`
	TaskType  string         `gorm:"type:varchar(50);not null"`
	Status    string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (ProcessingTask) TableName() string {
	return "processing_tasks"
}
