package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

type Candidate struct {
	Name           string
	Identification string
}

// UploadedFile is a file as received from a form or read from disk.
type UploadedFile struct {
	Name     string
	MIMEType string
	Data     []byte
}

type CollectRequest struct {
	Candidate        Candidate
	RequirementsText string
	RequirementPDFs  []UploadedFile
	Evidence         []UploadedFile
	Mode             models.ResponseMode
}

type EvidenceKind string

const (
	EvidencePDF   EvidenceKind = "pdf"
	EvidenceImage EvidenceKind = "image"
)

type EvidenceDocument struct {
	Name     string
	Kind     EvidenceKind
	Text     string
	MIMEType string
	Data     []byte
}

// EvaluationInput is everything the prompt builder needs for one candidate.
type EvaluationInput struct {
	Candidate    Candidate
	Requirements string
	Evidence     []EvidenceDocument
	Mode         models.ResponseMode
}

type InputCollector interface {
	Collect(ctx context.Context, req *CollectRequest) (*EvaluationInput, error)
}

type inputCollector struct {
	pdfParser      PDFParserService
	imageOptimizer ImageOptimizer
}

func NewInputCollector(pdfParser PDFParserService, imageOptimizer ImageOptimizer) InputCollector {
	return &inputCollector{
		pdfParser:      pdfParser,
		imageOptimizer: imageOptimizer,
	}
}

// ValidateRequest rejects a request with no evidence or no requirements.
// It runs before any file is read and before any model call.
func ValidateRequest(req *CollectRequest) error {
	if req == nil || len(req.Evidence) == 0 {
		return ErrMissingEvidence
	}
	if strings.TrimSpace(req.RequirementsText) == "" && len(req.RequirementPDFs) == 0 {
		return ErrMissingRequirements
	}
	return nil
}

func (c *inputCollector) Collect(ctx context.Context, req *CollectRequest) (*EvaluationInput, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, newStageError(StageCollect, err)
	}

	input := &EvaluationInput{
		Candidate: Candidate{
			Name:           strings.TrimSpace(req.Candidate.Name),
			Identification: strings.TrimSpace(req.Candidate.Identification),
		},
		Mode: req.Mode,
	}
	if input.Mode == "" {
		input.Mode = models.ModeMarkdown
	}

	var requirements strings.Builder
	for _, file := range req.RequirementPDFs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if DetectKind(file.Name, file.MIMEType) != EvidencePDF {
			return nil, newStageError(StageCollect, errors.Wrapf(ErrUnsupportedFile, "requisitos: %s", file.Name))
		}
		text := c.pdfParser.ExtractTextOrPlaceholder(file.Name, file.Data)
		fmt.Fprintf(&requirements, "\n--- REQUISITOS (Desde PDF: %s) ---\n%s\n", file.Name, text)
	}
	if text := strings.TrimSpace(req.RequirementsText); text != "" {
		fmt.Fprintf(&requirements, "\n--- REQUISITOS (Texto Adicional) ---\n%s\n", text)
	}
	input.Requirements = requirements.String()

	if strings.TrimSpace(input.Requirements) == "" {
		return nil, newStageError(StageCollect, ErrMissingRequirements)
	}

	for _, file := range req.Evidence {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := c.collectEvidence(file)
		if err != nil {
			return nil, newStageError(StageCollect, err)
		}
		input.Evidence = append(input.Evidence, *doc)
	}

	log.WithFields(log.Fields{
		"candidate": input.Candidate.Name,
		"evidence":  len(input.Evidence),
		"mode":      input.Mode,
	}).Info("Inputs collected")

	return input, nil
}

func (c *inputCollector) collectEvidence(file UploadedFile) (*EvidenceDocument, error) {
	switch DetectKind(file.Name, file.MIMEType) {
	case EvidencePDF:
		return &EvidenceDocument{
			Name:     file.Name,
			Kind:     EvidencePDF,
			Text:     c.pdfParser.ExtractTextOrPlaceholder(file.Name, file.Data),
			MIMEType: "application/pdf",
		}, nil
	case EvidenceImage:
		data, mimeType, err := c.imageOptimizer.Optimize(file.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "imagen %s", file.Name)
		}
		return &EvidenceDocument{
			Name:     file.Name,
			Kind:     EvidenceImage,
			MIMEType: mimeType,
			Data:     data,
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFile, "%s", file.Name)
	}
}

// DetectKind classifies a file by extension, falling back to its declared
// MIME type. Unknown files return an empty kind.
func DetectKind(name, mimeType string) EvidenceKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return EvidencePDF
	case ".jpg", ".jpeg", ".png", ".webp":
		return EvidenceImage
	}

	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "application/pdf"):
		return EvidencePDF
	case strings.HasPrefix(mimeType, "image/jpeg"), strings.HasPrefix(mimeType, "image/png"), strings.HasPrefix(mimeType, "image/webp"):
		return EvidenceImage
	}
	return ""
}
