package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentType string

const (
	DocumentRequirement DocumentType = "requirement"
	DocumentEvidence    DocumentType = "evidence"
	DocumentTemplate    DocumentType = "template"
)

type Document struct {
	ID               uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	Filename         string       `gorm:"type:text" json:"filename"`
	OriginalFileName string       `gorm:"type:text" json:"original_filename"`
	FileType         DocumentType `gorm:"type:text" json:"file_type"`
	MIMEType         string       `gorm:"type:text" json:"mime_type"`
	FilePath         string       `gorm:"type:text" json:"file_path"`
	Size             int64        `json:"size"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (d *Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
