package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EvaluationStatus string

const (
	StatusQueued     EvaluationStatus = "queued"
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

type ResponseMode string

const (
	ModeMarkdown   ResponseMode = "markdown"
	ModeStructured ResponseMode = "structured"
)

// Evaluation is one asynchronous compliance check of a candidate against a
// requirement set.
type Evaluation struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	CandidateName      string           `gorm:"type:text" json:"nombre"`
	CandidateID        string           `gorm:"type:text" json:"identificacion"`
	RequirementsText   string           `gorm:"type:text" json:"requisitos"`
	Mode               ResponseMode     `gorm:"type:text;not null;default:'markdown'" json:"mode"`
	Status             EvaluationStatus `gorm:"type:text;not null;default:'queued';index" json:"status"`
	TemplateDocumentID *uuid.UUID       `gorm:"type:uuid" json:"template_document_id,omitempty"`
	Analysis           *string          `gorm:"type:text" json:"analisis,omitempty"`
	ResultJSON         *string          `gorm:"type:text" json:"-"`
	Verdict            *string          `gorm:"type:text" json:"concepto_final,omitempty"`
	VerdictPositive    *bool            `json:"verdict_positive,omitempty"`
	ErrorMessage       *string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`

	// Relations
	Documents []EvaluationDocument `gorm:"foreignKey:EvaluationID" json:"-"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

func (e *Evaluation) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// EvaluationDocument links an evaluation to one of its uploaded files.
// Position keeps the order in which the files were submitted.
type EvaluationDocument struct {
	EvaluationID uuid.UUID    `gorm:"type:uuid;primaryKey" json:"evaluation_id"`
	DocumentID   uuid.UUID    `gorm:"type:uuid;primaryKey" json:"document_id"`
	Role         DocumentType `gorm:"type:text;not null" json:"role"`
	Position     int          `json:"position"`

	Document Document `gorm:"foreignKey:DocumentID" json:"-"`
}

func (EvaluationDocument) TableName() string {
	return "evaluation_documents"
}
