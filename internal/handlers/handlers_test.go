package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/idoneidad-checker/internal/config"
	"alfredoptarigan/idoneidad-checker/internal/models"
	"alfredoptarigan/idoneidad-checker/internal/repositories"
	"alfredoptarigan/idoneidad-checker/internal/services"
	"alfredoptarigan/idoneidad-checker/internal/testutil"
)

const structuredAnswer = `{
  "nombre": "Ana Perez",
  "cedula": "1075",
  "concepto_final": "CUMPLE",
  "idoneidad_texto": "CONCLUSIÓN: CUMPLE.",
  "formacion_texto": "Ingeniera Electricista",
  "experiencia_lista": [
    {"empresa": "Electrohuila", "fecha_inicio": "01/01/2020", "fecha_fin": "31/12/2020", "meses": 12, "dias": 0, "validada": "SI"}
  ],
  "analisis_detallado_markdown": "Todo en orden"
}`

type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []*services.Prompt
}

func (f *fakeModel) Generate(ctx context.Context, prompt *services.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeModel) GenerateWithRetry(ctx context.Context, prompt *services.Prompt, maxAttempts int) (string, error) {
	return f.Generate(ctx, prompt)
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeWorker struct {
	enqueued []uuid.UUID
}

func (w *fakeWorker) Start(ctx context.Context) {}
func (w *fakeWorker) Stop()                     {}
func (w *fakeWorker) EnqueueJob(id uuid.UUID) bool {
	w.enqueued = append(w.enqueued, id)
	return true
}

type testServer struct {
	app       *fiber.App
	model     *fakeModel
	worker    *fakeWorker
	evaluator services.EvaluatorService
	evalRepo  repositories.EvaluationRepository
}

func newTestServer(t *testing.T, response string) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	storage := services.NewStorageService(filepath.Join(dir, "uploads"))
	require.NoError(t, storage.EnsureUploadDir())

	docRepo := repositories.NewDocumentRepository(db)
	evalRepo := repositories.NewEvaluationRepository(db)
	model := &fakeModel{response: response}
	collector := services.NewInputCollector(services.NewPDFParserService(), services.NewImageOptimizer(services.DefaultMaxImageSide))
	evaluator := services.NewEvaluatorService(evalRepo, storage, collector, model, 1)
	excel := services.NewExcelFiller("")
	worker := &fakeWorker{}

	app := fiber.New()
	Routes{
		Compliance: NewComplianceHandler(evaluator, excel, 1<<20),
		Upload:     NewUploadHandler(docRepo, storage, services.NewPDFParserService(), 1<<20),
		Evaluate:   NewEvaluationHandler(evalRepo, docRepo, worker, models.ModeMarkdown),
		Result:     NewResultHandler(evalRepo, docRepo, storage, excel),
	}.Register(app)

	return &testServer{app: app, model: model, worker: worker, evaluator: evaluator, evalRepo: evalRepo}
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

var (
	requirementPDF = formFile{"requisitos_pdf", "perfil.pdf", testutil.MinimalPDF("Ingeniero Electricista")}
	evidencePDF    = formFile{"soportes", "diploma.pdf", testutil.MinimalPDF("Diploma Ingeniera Electricista")}
	candidate      = map[string]string{"nombre": "Ana Perez", "identificacion": "1075"}
)

func TestValidateMarkdown(t *testing.T) {
	for _, path := range []string{"/api/validar-contratacion", "/api/v1/validate"} {
		t.Run(path, func(t *testing.T) {
			s := newTestServer(t, "## Conclusión Final\nEl candidato es APTO.")
			resp, body := s.do(t, multipartRequest(t, path, candidate, requirementPDF, evidencePDF))

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, "## Conclusión Final\nEl candidato es APTO.", decode(t, body)["analisis"])
			require.Equal(t, 1, s.model.calls())
			assert.Contains(t, s.model.prompts[0].Text(), "Ingeniero Electricista")
			assert.Contains(t, s.model.prompts[0].Text(), "Diploma Ingeniera Electricista")
		})
	}
}

func TestValidateRejectsMissingInput(t *testing.T) {
	tests := []struct {
		name  string
		files []formFile
		want  string
	}{
		{name: "no evidence", files: []formFile{requirementPDF}, want: services.ErrMissingEvidence.Error()},
		{name: "no requirements", files: []formFile{evidencePDF}, want: services.ErrMissingRequirements.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "APTO")
			resp, body := s.do(t, multipartRequest(t, "/api/validar-contratacion", candidate, tt.files...))

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			out := decode(t, body)
			assert.Equal(t, tt.want, out["error"])
			assert.Equal(t, float64(fiber.StatusBadRequest), out["code"])
			assert.Equal(t, 0, s.model.calls())
		})
	}
}

func TestValidateRejectsUnsupportedEvidence(t *testing.T) {
	s := newTestServer(t, "APTO")
	resp, _ := s.do(t, multipartRequest(t, "/api/v1/validate", candidate, requirementPDF,
		formFile{"soportes", "hoja.docx", []byte("x")}))

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, s.model.calls())
}

func TestValidateNotMultipart(t *testing.T) {
	s := newTestServer(t, "APTO")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := s.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestValidateModelFailure(t *testing.T) {
	s := newTestServer(t, "")
	s.model.err = errors.New("quota exceeded")

	resp, body := s.do(t, multipartRequest(t, "/api/v1/validate", candidate, requirementPDF, evidencePDF))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	out := decode(t, body)
	assert.Contains(t, out["error"], "quota exceeded")
	assert.Equal(t, float64(fiber.StatusInternalServerError), out["code"])
}

func TestValidateStructured(t *testing.T) {
	s := newTestServer(t, structuredAnswer)
	resp, body := s.do(t, multipartRequest(t, "/api/v1/validate/structured", candidate, requirementPDF, evidencePDF))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out models.StructuredValidationResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.VerdictPositive)
	require.NotNil(t, out.Result)
	assert.Equal(t, "Ana Perez", out.Result.Name)
	require.NotNil(t, out.Experience)
	assert.Equal(t, 12, out.Experience.TotalMonths)
	assert.Contains(t, out.Markdown, "Concepto de idoneidad")
}

func readWorkbook(t *testing.T, data []byte) (*excelize.File, string) {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, f.GetSheetName(f.GetActiveSheetIndex())
}

func TestValidateExport(t *testing.T) {
	template, err := services.WorkbookBytes(services.DefaultTemplate())
	require.NoError(t, err)

	tests := []struct {
		name  string
		files []formFile
	}{
		{name: "default template", files: []formFile{requirementPDF, evidencePDF}},
		{name: "uploaded template", files: []formFile{requirementPDF, evidencePDF, {"plantilla", "plantilla.xlsx", template}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, structuredAnswer)
			resp, body := s.do(t, multipartRequest(t, "/api/v1/validate/export", candidate, tt.files...))

			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, services.XLSXContentType, resp.Header.Get(fiber.HeaderContentType))
			assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "IDONEIDAD_Ana_Perez.xlsx")

			f, sheet := readWorkbook(t, body)
			v, err := f.GetCellValue(sheet, "D6")
			require.NoError(t, err)
			assert.Equal(t, "NOMBRE: Ana Perez", v)
			v, err = f.GetCellValue(sheet, "D21")
			require.NoError(t, err)
			assert.Equal(t, "Electrohuila", v)
			assert.Equal(t, 1, s.model.calls())
		})
	}
}

func TestValidateExportRejectsBrokenTemplateBeforeModel(t *testing.T) {
	s := newTestServer(t, structuredAnswer)
	resp, body := s.do(t, multipartRequest(t, "/api/v1/validate/export", candidate,
		requirementPDF, evidencePDF, formFile{"plantilla", "plantilla.xlsx", []byte("not a workbook")}))

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, services.ErrInvalidTemplate.Error(), decode(t, body)["error"])
	assert.Equal(t, 0, s.model.calls())
}

func uploadDocuments(t *testing.T, s *testServer, files ...formFile) map[string]string {
	t.Helper()
	resp, body := s.do(t, multipartRequest(t, "/api/v1/upload", nil, files...))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Documents []models.UploadResponse `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(body, &out))

	ids := make(map[string]string)
	for _, doc := range out.Documents {
		ids[doc.OriginalName] = doc.ID
	}
	return ids
}

func jsonRequest(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAsyncEvaluationFlow(t *testing.T) {
	s := newTestServer(t, structuredAnswer)
	ids := uploadDocuments(t, s, requirementPDF, evidencePDF)
	require.Len(t, ids, 2)

	resp, body := s.do(t, jsonRequest(t, "/api/v1/evaluate", models.EvaluateRequest{
		CandidateName:          "Ana Perez",
		CandidateID:            "1075",
		RequirementDocumentIDs: []string{ids["perfil.pdf"]},
		EvidenceDocumentIDs:    []string{ids["diploma.pdf"]},
		Mode:                   "structured",
	}))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, string(body))

	var accepted models.EvaluateResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.Equal(t, string(models.StatusQueued), accepted.Status)
	require.Len(t, s.worker.enqueued, 1)
	assert.Equal(t, accepted.ID, s.worker.enqueued[0].String())

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+accepted.ID+"/export", nil))
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	require.NoError(t, s.evaluator.EvaluateCandidate(context.Background(), s.worker.enqueued[0]))
	require.Equal(t, 1, s.model.calls())

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+accepted.ID, nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result models.ResultResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, string(models.StatusCompleted), result.Status)
	require.NotNil(t, result.Result)
	assert.Equal(t, "CUMPLE", result.Result.Verdict)
	assert.True(t, result.Result.VerdictPositive)
	require.NotNil(t, result.Result.Structured)
	assert.Equal(t, "Ana Perez", result.Result.Structured.Name)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+accepted.ID+"/export", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	f, sheet := readWorkbook(t, body)
	v, err := f.GetCellValue(sheet, "D7")
	require.NoError(t, err)
	assert.Equal(t, "CÉDULA: 1075", v)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+accepted.ID+"/report", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, string(body), "Concepto de idoneidad")
}

func TestAsyncMarkdownCannotExport(t *testing.T) {
	s := newTestServer(t, "El candidato es NO APTO.")
	ids := uploadDocuments(t, s, evidencePDF)

	resp, body := s.do(t, jsonRequest(t, "/api/v1/evaluate", models.EvaluateRequest{
		CandidateName:       "Ana Perez",
		Requirements:        "Ingeniero Electricista",
		EvidenceDocumentIDs: []string{ids["diploma.pdf"]},
	}))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode, string(body))
	require.NoError(t, s.evaluator.EvaluateCandidate(context.Background(), s.worker.enqueued[0]))

	id := s.worker.enqueued[0].String()
	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+id, nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result models.ResultResponse
	require.NoError(t, json.Unmarshal(body, &result))
	require.NotNil(t, result.Result)
	assert.Equal(t, "NO APTO", result.Result.Verdict)
	assert.False(t, result.Result.VerdictPositive)
	assert.Nil(t, result.Result.Structured)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+id+"/export", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAsyncFailureIsReported(t *testing.T) {
	s := newTestServer(t, "")
	s.model.err = errors.New("quota exceeded")
	ids := uploadDocuments(t, s, evidencePDF)

	resp, _ := s.do(t, jsonRequest(t, "/api/v1/evaluate", models.EvaluateRequest{
		Requirements:        "Ingeniero",
		EvidenceDocumentIDs: []string{ids["diploma.pdf"]},
	}))
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Error(t, s.evaluator.EvaluateCandidate(context.Background(), s.worker.enqueued[0]))

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+s.worker.enqueued[0].String(), nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result models.ResultResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, string(models.StatusFailed), result.Status)
	require.NotNil(t, result.ErrorMessage)
	assert.Contains(t, *result.ErrorMessage, "quota exceeded")
}

func templateBytes(t *testing.T) []byte {
	t.Helper()
	data, err := services.WorkbookBytes(services.DefaultTemplate())
	require.NoError(t, err)
	return data
}

func TestEvaluateValidation(t *testing.T) {
	s := newTestServer(t, "APTO")
	ids := uploadDocuments(t, s, evidencePDF, requirementPDF, formFile{"plantilla", "plantilla.xlsx", templateBytes(t)})

	tests := []struct {
		name string
		req  models.EvaluateRequest
		code int
	}{
		{name: "same document in both roles", req: models.EvaluateRequest{RequirementDocumentIDs: []string{ids["diploma.pdf"]}, EvidenceDocumentIDs: []string{ids["diploma.pdf"]}}, code: fiber.StatusBadRequest},
		{name: "requirement passed as evidence", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{ids["perfil.pdf"]}}, code: fiber.StatusBadRequest},
		{name: "plantilla passed as evidence", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{ids["plantilla.xlsx"]}}, code: fiber.StatusBadRequest},
		{name: "no evidence", req: models.EvaluateRequest{Requirements: "x"}, code: fiber.StatusBadRequest},
		{name: "no requirements", req: models.EvaluateRequest{EvidenceDocumentIDs: []string{ids["diploma.pdf"]}}, code: fiber.StatusBadRequest},
		{name: "bad mode", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{ids["diploma.pdf"]}, Mode: "xml"}, code: fiber.StatusBadRequest},
		{name: "bad id", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{"nope"}}, code: fiber.StatusBadRequest},
		{name: "unknown document", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{uuid.NewString()}}, code: fiber.StatusNotFound},
		{name: "template is not a plantilla", req: models.EvaluateRequest{Requirements: "x", EvidenceDocumentIDs: []string{ids["diploma.pdf"]}, TemplateDocumentID: ids["diploma.pdf"]}, code: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := s.do(t, jsonRequest(t, "/api/v1/evaluate", tt.req))
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
	assert.Empty(t, s.worker.enqueued)
}

func TestUploadReportsPDFPages(t *testing.T) {
	s := newTestServer(t, "APTO")

	resp, body := s.do(t, multipartRequest(t, "/api/v1/upload", nil,
		formFile{"requisitos_pdf", "perfil.pdf", testutil.MinimalPDF("uno", "dos")},
		formFile{"soportes", "roto.pdf", []byte("not a pdf")},
	))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Documents []models.UploadResponse `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Documents, 2)
	assert.Equal(t, 2, out.Documents[0].Pages)
	assert.Equal(t, 0, out.Documents[1].Pages)
}

type failingDocRepo struct {
	repositories.DocumentRepository
	failOn string
}

func (r *failingDocRepo) Create(doc *models.Document) error {
	if doc.OriginalFileName == r.failOn {
		return errors.New("disk full")
	}
	return r.DocumentRepository.Create(doc)
}

func TestUploadRemovesStoredFilesOnFailure(t *testing.T) {
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	uploadDir := filepath.Join(dir, "uploads")
	storage := services.NewStorageService(uploadDir)
	require.NoError(t, storage.EnsureUploadDir())

	repo := &failingDocRepo{DocumentRepository: repositories.NewDocumentRepository(db), failOn: "diploma.pdf"}
	app := fiber.New()
	app.Post("/upload", NewUploadHandler(repo, storage, nil, 1<<20).HandleUpload)

	resp, err := app.Test(multipartRequest(t, "/upload", nil, requirementPDF, evidencePDF), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Document{}).Count(&count).Error)
	assert.Zero(t, count)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	s := newTestServer(t, "APTO")

	resp, body := s.do(t, multipartRequest(t, "/api/v1/upload", nil, requirementPDF,
		formFile{"plantilla", "plantilla.xlsx", []byte("not a workbook")}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode(t, body)["error"], services.ErrInvalidTemplate.Error())

	resp, _ := s.do(t, multipartRequest(t, "/api/v1/upload", nil, formFile{"plantilla", "plantilla.pdf", []byte("x")}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, multipartRequest(t, "/api/v1/upload", map[string]string{"nombre": "x"}))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestResultLookupErrors(t *testing.T) {
	s := newTestServer(t, "APTO")

	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/not-a-uuid", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+uuid.NewString(), nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Evaluation not found", decode(t, body)["error"])

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/result/"+uuid.NewString()+"/report", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, "APTO")

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "POST /api/v1/upload")

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode(t, body)["status"])
}
