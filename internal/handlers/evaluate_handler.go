package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

type EvaluationHandler struct {
	evalRepo    repositories.EvaluationRepository
	docRepo     repositories.DocumentRepository
	worker      services.Worker
	defaultMode models.ResponseMode
}

func NewEvaluationHandler(
	evalRepo repositories.EvaluationRepository,
	docRepo repositories.DocumentRepository,
	worker services.Worker,
	defaultMode models.ResponseMode,
) *EvaluationHandler {
	if defaultMode == "" {
		defaultMode = models.ModeMarkdown
	}
	return &EvaluationHandler{
		evalRepo:    evalRepo,
		docRepo:     docRepo,
		worker:      worker,
		defaultMode: defaultMode,
	}
}

// HandleEvaluate handles POST /api/v1/evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req models.EvaluateRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if len(req.EvidenceDocumentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": services.ErrMissingEvidence.Error(),
		})
	}
	if strings.TrimSpace(req.Requirements) == "" && len(req.RequirementDocumentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": services.ErrMissingRequirements.Error(),
		})
	}

	mode := h.defaultMode
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "":
	case string(models.ModeMarkdown):
		mode = models.ModeMarkdown
	case string(models.ModeStructured):
		mode = models.ModeStructured
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be 'markdown' or 'structured'",
		})
	}

	requirementIDs, err := parseIDs(req.RequirementDocumentIDs)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid requirement_document_ids format",
		})
	}
	evidenceIDs, err := parseIDs(req.EvidenceDocumentIDs)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid evidence_document_ids format",
		})
	}

	evaluation := &models.Evaluation{
		CandidateName:    strings.TrimSpace(req.CandidateName),
		CandidateID:      strings.TrimSpace(req.CandidateID),
		RequirementsText: req.Requirements,
		Mode:             mode,
		Status:           models.StatusQueued,
	}

	// Verify documents exist and keep submission order: requirements first.
	// A document only serves the role it was uploaded for, so an id listed
	// under both roles is rejected here.
	position := 0
	seen := make(map[uuid.UUID]bool)
	for _, group := range []struct {
		ids  []uuid.UUID
		role models.DocumentType
	}{
		{requirementIDs, models.DocumentRequirement},
		{evidenceIDs, models.DocumentEvidence},
	} {
		docs, err := h.docRepo.FindByIDs(group.ids)
		if err != nil {
			return documentLookupError(c, err)
		}
		for _, doc := range docs {
			if doc.FileType != group.role {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("document %s is a %s, not a %s", doc.ID, doc.FileType, group.role),
				})
			}
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			evaluation.Documents = append(evaluation.Documents, models.EvaluationDocument{
				DocumentID: doc.ID,
				Role:       group.role,
				Position:   position,
			})
			position++
		}
	}

	if req.TemplateDocumentID != "" {
		templateID, err := uuid.Parse(req.TemplateDocumentID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid template_document_id format",
			})
		}
		template, err := h.docRepo.FindByID(templateID)
		if err != nil {
			return documentLookupError(c, err)
		}
		if template.FileType != models.DocumentTemplate {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "template_document_id must reference an uploaded plantilla",
			})
		}
		evaluation.TemplateDocumentID = &templateID
	}

	if err := h.evalRepo.Create(evaluation); err != nil {
		log.WithError(err).Error("Failed to create evaluation job")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create evaluation job",
		})
	}

	h.worker.EnqueueJob(evaluation.ID)

	return c.Status(fiber.StatusAccepted).JSON(models.EvaluateResponse{
		ID:     evaluation.ID.String(),
		Status: string(models.StatusQueued),
	})
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func documentLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}
	log.WithError(err).Error("Failed to load documents")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load documents",
	})
}
