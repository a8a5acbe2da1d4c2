package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

// Multipart field names accepted by the validation endpoints.
const (
	fieldName         = "nombre"
	fieldID           = "identificacion"
	fieldRequirements = "requisitos"
	fieldRequirePDF   = "requisitos_pdf"
	fieldEvidence     = "soportes"
	fieldTemplate     = "plantilla"
)

// ComplianceHandler serves the synchronous validation endpoints. Each
// request makes at most one model call.
type ComplianceHandler struct {
	evaluator   services.EvaluatorService
	excel       *services.ExcelFiller
	maxFileSize int64
}

func NewComplianceHandler(
	evaluator services.EvaluatorService,
	excel *services.ExcelFiller,
	maxFileSize int64,
) *ComplianceHandler {
	return &ComplianceHandler{
		evaluator:   evaluator,
		excel:       excel,
		maxFileSize: maxFileSize,
	}
}

// HandleValidate handles POST /api/validar-contratacion and
// POST /api/v1/validate.
func (h *ComplianceHandler) HandleValidate(c *fiber.Ctx) error {
	outcome, err := h.evaluate(c, models.ModeMarkdown)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(models.ValidationResponse{Analysis: outcome.Analysis})
}

// HandleValidateStructured handles POST /api/v1/validate/structured.
func (h *ComplianceHandler) HandleValidateStructured(c *fiber.Ctx) error {
	outcome, err := h.evaluate(c, models.ModeStructured)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(models.StructuredValidationResponse{
		Result:          outcome.Result,
		Experience:      outcome.Experience,
		VerdictPositive: outcome.VerdictPositive,
		Markdown:        outcome.Analysis,
	})
}

// HandleExport handles POST /api/v1/validate/export. An uploaded plantilla
// replaces the configured template.
func (h *ComplianceHandler) HandleExport(c *fiber.Ctx) error {
	form, err := parseForm(c)
	if err != nil {
		return errorResponse(c, err)
	}

	// The uploaded template is checked before the model call is made.
	var template []byte
	if templates, err := h.readFiles(form.File[fieldTemplate]); err != nil {
		return errorResponse(c, err)
	} else if len(templates) > 0 {
		template = templates[0].Data
		if err := services.ValidateTemplate(bytes.NewReader(template)); err != nil {
			return errorResponse(c, err)
		}
	}

	outcome, err := h.evaluateForm(c, form, models.ModeStructured)
	if err != nil {
		return errorResponse(c, err)
	}

	var data []byte
	if template != nil {
		data, err = h.excel.FillFrom(bytes.NewReader(template), outcome.Result, outcome.Experience)
	} else {
		data, err = h.excel.Fill(outcome.Result, outcome.Experience)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return sendWorkbook(c, outcome.Result.Name, data)
}

func parseForm(c *fiber.Ctx) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "failed to parse multipart form")
	}
	return form, nil
}

func (h *ComplianceHandler) evaluate(c *fiber.Ctx, mode models.ResponseMode) (*services.EvaluationOutcome, error) {
	form, err := parseForm(c)
	if err != nil {
		return nil, err
	}
	return h.evaluateForm(c, form, mode)
}

func (h *ComplianceHandler) evaluateForm(c *fiber.Ctx, form *multipart.Form, mode models.ResponseMode) (*services.EvaluationOutcome, error) {
	var err error
	req := &services.CollectRequest{
		Candidate: services.Candidate{
			Name:           formValue(form, fieldName),
			Identification: formValue(form, fieldID),
		},
		RequirementsText: formValue(form, fieldRequirements),
		Mode:             mode,
	}

	if req.RequirementPDFs, err = h.readFiles(form.File[fieldRequirePDF]); err != nil {
		return nil, err
	}
	if req.Evidence, err = h.readFiles(form.File[fieldEvidence]); err != nil {
		return nil, err
	}

	return h.evaluator.Evaluate(c.UserContext(), req)
}

func (h *ComplianceHandler) readFiles(headers []*multipart.FileHeader) ([]services.UploadedFile, error) {
	files := make([]services.UploadedFile, 0, len(headers))
	for _, header := range headers {
		if header.Filename == "" {
			continue
		}
		if h.maxFileSize > 0 && header.Size > h.maxFileSize {
			return nil, fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("%s is too large. Max size: %d bytes", header.Filename, h.maxFileSize))
		}
		file, err := services.ReadMultipart(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// errorResponse maps input problems to 400 and everything else to 500.
func errorResponse(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := services.UserMessage(err)

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else if services.IsValidationError(err) {
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func sendWorkbook(c *fiber.Ctx, candidateName string, data []byte) error {
	c.Attachment(services.ExportFilename(candidateName))
	c.Set(fiber.HeaderContentType, services.XLSXContentType)
	return c.Send(data)
}
