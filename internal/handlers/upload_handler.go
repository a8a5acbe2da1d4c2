package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
	"alfredoptarigan/idoneidad-checker/internal/services"
)

type UploadHandler struct {
	docRepo        repositories.DocumentRepository
	storageService services.StorageService
	pdfParser      services.PDFParserService
	maxFileSize    int64
}

func NewUploadHandler(
	docRepo repositories.DocumentRepository,
	storageService services.StorageService,
	pdfParser services.PDFParserService,
	maxFileSize int64,
) *UploadHandler {
	return &UploadHandler{
		docRepo:        docRepo,
		storageService: storageService,
		pdfParser:      pdfParser,
		maxFileSize:    maxFileSize,
	}
}

var uploadFields = []struct {
	field    string
	fileType models.DocumentType
}{
	{fieldRequirePDF, models.DocumentRequirement},
	{fieldEvidence, models.DocumentEvidence},
	{fieldTemplate, models.DocumentTemplate},
}

// HandleUpload handles POST /api/v1/upload. Every file in requisitos_pdf,
// soportes and plantilla is stored and returned with its document id. The
// upload is all or nothing: files are checked before any is stored, and a
// failure while storing removes the documents already saved.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to parse multipart form",
		})
	}

	type pending struct {
		file     *multipart.FileHeader
		fileType models.DocumentType
	}
	var files []pending
	for _, upload := range uploadFields {
		for _, file := range form.File[upload.field] {
			if err := h.check(file, upload.fileType); err != nil {
				return uploadError(c, file, err)
			}
			files = append(files, pending{file, upload.fileType})
		}
	}

	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No valid files uploaded. Please upload 'requisitos_pdf', 'soportes' and/or 'plantilla'.",
		})
	}

	var stored []*models.Document
	for _, p := range files {
		doc, err := h.store(p.file, p.fileType)
		if err != nil {
			h.rollback(stored)
			return uploadError(c, p.file, err)
		}
		stored = append(stored, doc)
	}

	responses := make([]models.UploadResponse, 0, len(stored))
	for _, doc := range stored {
		responses = append(responses, models.UploadResponse{
			ID:           doc.ID.String(),
			Filename:     doc.Filename,
			OriginalName: doc.OriginalFileName,
			FileType:     string(doc.FileType),
			Pages:        h.pageCount(doc),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Files uploaded successfully",
		"documents": responses,
	})
}

// check rejects a file before anything is written: size, extension and,
// for templates, whether the workbook opens.
func (h *UploadHandler) check(file *multipart.FileHeader, fileType models.DocumentType) error {
	if file.Size > h.maxFileSize {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("%s is too large. Max size: %d bytes", file.Filename, h.maxFileSize))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !services.IsAllowedExtension(fileType, ext) {
		return errors.Wrapf(services.ErrUnsupportedFile, "invalid file extension %q for %s", ext, fileType)
	}

	if fileType == models.DocumentTemplate {
		upload, err := services.ReadMultipart(file)
		if err != nil {
			return err
		}
		return services.ValidateTemplate(bytes.NewReader(upload.Data))
	}
	return nil
}

func (h *UploadHandler) rollback(docs []*models.Document) {
	for _, doc := range docs {
		if err := h.docRepo.Delete(doc.ID); err != nil {
			log.WithError(err).WithField("document_id", doc.ID).Warn("Failed to remove document after failed upload")
		}
		if err := h.storageService.DeleteFile(doc.Filename); err != nil {
			log.WithError(err).WithField("file", doc.Filename).Warn("Failed to clean up upload")
		}
	}
}

func uploadError(c *fiber.Ctx, file *multipart.FileHeader, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
	}

	status := fiber.StatusInternalServerError
	if services.IsValidationError(err) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fmt.Sprintf("failed to save %s: %s", file.Filename, services.UserMessage(err)),
	})
}

func (h *UploadHandler) store(file *multipart.FileHeader, fileType models.DocumentType) (*models.Document, error) {
	filename, filePath, err := h.storageService.SaveFile(file, fileType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		Filename:         filename,
		OriginalFileName: file.Filename,
		FileType:         fileType,
		MIMEType:         file.Header.Get(fiber.HeaderContentType),
		FilePath:         filePath,
		Size:             file.Size,
	}

	if err := h.docRepo.Create(doc); err != nil {
		if delErr := h.storageService.DeleteFile(filename); delErr != nil {
			log.WithError(delErr).WithField("file", filename).Warn("Failed to clean up upload")
		}
		return nil, err
	}

	return doc, nil
}

// pageCount reads a stored PDF once so unreadable files show up at upload
// time. The document is kept either way: evaluation substitutes a
// placeholder for text it cannot read.
func (h *UploadHandler) pageCount(doc *models.Document) int {
	if h.pdfParser == nil || !strings.EqualFold(filepath.Ext(doc.Filename), ".pdf") {
		return 0
	}

	content, err := h.pdfParser.ExtractTextWithMetaData(doc.FilePath)
	if err != nil {
		log.WithError(err).WithField("document_id", doc.ID).Warn("Uploaded PDF is not readable")
		return 0
	}
	return content.PageCount
}
