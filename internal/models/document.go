package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Document is metadata for an uploaded file. The bytes live in the blob store at FilePath.
type Document struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Filename         string                         `gorm:"uniqueIndex;not null" json:"filename"`
	OriginalFilename string                         `gorm:"not null" json:"original_filename"`
	FilePath         string                         `gorm:"not null" json:"file_path"`
	FileSize         int64                          `gorm:"not null" json:"file_size"`
	FileType         string                         `gorm:"type:text" json:"file_type"`
	ContentType      string                         `gorm:"type:text" json:"content_type"`
	Checksum         string                         `gorm:"type:char(64)" json:"checksum"`
	UserID           uuid.UUID                      `gorm:"type:uuid;index;not null" json:"user_id"`
	RFPID            *uuid.UUID                     `gorm:"type:uuid;index" json:"rfp_id,omitempty"`
	ResponseID       *string                        `gorm:"index" json:"response_id,omitempty"`
	IsPublic         bool                           `gorm:"not null;default:false" json:"is_public"`
	Version          int                            `gorm:"not null;default:1" json:"version"`
	PreviousVersions datatypes.JSONSlice[uuid.UUID] `gorm:"type:jsonb" json:"previous_versions"`
	CreatedAt        time.Time                      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                      `json:"updated_at"`
}
