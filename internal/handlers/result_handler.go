package handlers

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

type ResultHandler struct {
	evalRepo repositories.EvaluationRepository
	docRepo  repositories.DocumentRepository
	storage  services.StorageService
	excel    *services.ExcelFiller
	renderer *services.ReportRenderer
}

func NewResultHandler(
	evalRepo repositories.EvaluationRepository,
	docRepo repositories.DocumentRepository,
	storage services.StorageService,
	excel *services.ExcelFiller,
) *ResultHandler {
	return &ResultHandler{
		evalRepo: evalRepo,
		docRepo:  docRepo,
		storage:  storage,
		excel:    excel,
		renderer: services.NewReportRenderer(),
	}
}

// HandleGetResult handles GET /api/v1/result/:id
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	evaluation, err := h.load(c)
	if err != nil {
		return errorResponse(c, err)
	}

	response := models.ResultResponse{
		ID:     evaluation.ID.String(),
		Status: string(evaluation.Status),
	}

	if evaluation.Status == models.StatusCompleted {
		data := &models.EvaluationData{
			CandidateName: evaluation.CandidateName,
			CandidateID:   evaluation.CandidateID,
			Mode:          string(evaluation.Mode),
			Analysis:      deref(evaluation.Analysis),
			Verdict:       deref(evaluation.Verdict),
		}
		if evaluation.VerdictPositive != nil {
			data.VerdictPositive = *evaluation.VerdictPositive
		}
		if stored, err := storedResult(evaluation); err == nil && stored != nil {
			data.Structured = stored.Result
			data.Experience = stored.Experience
		}
		response.Result = data
	}

	if evaluation.Status == models.StatusFailed && evaluation.ErrorMessage != nil {
		response.ErrorMessage = evaluation.ErrorMessage
	}

	return c.JSON(response)
}

// HandleExport handles GET /api/v1/result/:id/export. Only completed
// structured evaluations can be exported.
func (h *ResultHandler) HandleExport(c *fiber.Ctx) error {
	evaluation, err := h.load(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if evaluation.Status != models.StatusCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Evaluation is not completed",
		})
	}

	stored, err := storedResult(evaluation)
	if err != nil {
		log.WithError(err).WithField("evaluation_id", evaluation.ID).Error("Stored result is corrupt")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read evaluation result",
		})
	}
	if stored == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Export requires an evaluation in structured mode",
		})
	}

	var data []byte
	if evaluation.TemplateDocumentID != nil {
		data, err = h.fillStoredTemplate(*evaluation.TemplateDocumentID, stored)
	} else {
		data, err = h.excel.Fill(stored.Result, stored.Experience)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return sendWorkbook(c, stored.Result.Name, data)
}

// HandleReport handles GET /api/v1/result/:id/report and renders the
// analysis as an HTML page.
func (h *ResultHandler) HandleReport(c *fiber.Ctx) error {
	evaluation, err := h.load(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if evaluation.Status != models.StatusCompleted || evaluation.Analysis == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Evaluation is not completed",
		})
	}

	page, err := h.renderer.HTML("Idoneidad - "+evaluation.CandidateName, *evaluation.Analysis)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Type("html", "utf-8")
	return c.Send(page)
}

func (h *ResultHandler) load(c *fiber.Ctx) (*models.Evaluation, error) {
	evalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid evaluation ID format")
	}

	evaluation, err := h.evalRepo.FindByID(evalID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Evaluation not found")
		}
		return nil, errors.Wrap(err, "failed to load evaluation")
	}

	return evaluation, nil
}

func (h *ResultHandler) fillStoredTemplate(id uuid.UUID, stored *models.StoredResult) ([]byte, error) {
	doc, err := h.docRepo.FindByID(id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load template")
	}
	template, err := h.storage.ReadFile(doc.FilePath)
	if err != nil {
		return nil, errors.Wrapf(services.ErrTemplateNotFound, "Plantilla '%s' no encontrada.", doc.OriginalFileName)
	}
	return h.excel.FillFrom(bytes.NewReader(template), stored.Result, stored.Experience)
}

// storedResult decodes the structured result of an evaluation. It returns
// nil without error for Markdown evaluations.
func storedResult(evaluation *models.Evaluation) (*models.StoredResult, error) {
	if evaluation.ResultJSON == nil || *evaluation.ResultJSON == "" {
		return nil, nil
	}
	var stored models.StoredResult
	if err := json.Unmarshal([]byte(*evaluation.ResultJSON), &stored); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored result")
	}
	if stored.Result == nil {
		return nil, nil
	}
	return &stored, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
