package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	cellName            = "D6"
	cellIdentification  = "D7"
	cellSuitability     = "D10"
	cellEducation       = "D13"
	experienceStartRow  = 21
	maxExperienceRows   = 16
	defaultTemplateName = "IDONEIDAD"
)

// ExcelFiller writes a compliance result into fixed cells of an idoneidad
// workbook template.
type ExcelFiller struct {
	templatePath string
}

func NewExcelFiller(templatePath string) *ExcelFiller {
	return &ExcelFiller{templatePath: templatePath}
}

// Fill loads the configured template, or the built-in layout when none is
// configured, and returns the filled workbook.
func (x *ExcelFiller) Fill(result *models.ComplianceResult, experience *models.ExperienceSummary) ([]byte, error) {
	if x.templatePath == "" {
		return fillWorkbook(DefaultTemplate(), result, experience)
	}

	if _, err := os.Stat(x.templatePath); err != nil {
		return nil, errors.Wrapf(ErrTemplateNotFound, "Plantilla '%s' no encontrada.", x.templatePath)
	}

	f, err := excelize.OpenFile(x.templatePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open template")
	}
	defer f.Close()

	return fillWorkbook(f, result, experience)
}

// FillFrom fills a template read from r, such as an uploaded file.
func (x *ExcelFiller) FillFrom(r io.Reader, result *models.ComplianceResult, experience *models.ExperienceSummary) ([]byte, error) {
	f, err := openTemplate(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return fillWorkbook(f, result, experience)
}

// ValidateTemplate reports ErrInvalidTemplate when r is not a readable
// workbook.
func ValidateTemplate(r io.Reader) error {
	f, err := openTemplate(r)
	if err != nil {
		return err
	}
	return f.Close()
}

func openTemplate(r io.Reader) (*excelize.File, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTemplate, err.Error())
	}
	return f, nil
}

func fillWorkbook(f *excelize.File, result *models.ComplianceResult, experience *models.ExperienceSummary) ([]byte, error) {
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	w := &sheetWriter{f: f, sheet: sheet}

	w.appendToLabel(cellName, result.Name)
	w.appendToLabel(cellIdentification, result.Identification)

	w.setWrapped(cellSuitability, result.SuitabilityText)
	w.setWrapped(cellEducation, result.EducationText)

	for i, entry := range exportRows(result, experience) {
		if i >= maxExperienceRows {
			break
		}
		if len(entry.StartDate) != 10 || len(entry.EndDate) != 10 {
			continue
		}

		row := experienceStartRow + i
		w.set(fmt.Sprintf("D%d", row), entry.Employer)
		w.set(fmt.Sprintf("E%d", row), entry.StartDate)
		w.set(fmt.Sprintf("F%d", row), entry.EndDate)
		w.set(fmt.Sprintf("I%d", row), entry.Validated)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}
	return buf.Bytes(), nil
}

// exportRows prefers locally verified entries. The exported validity is the
// local verdict; the model's own flag is used when no verification ran.
func exportRows(result *models.ComplianceResult, experience *models.ExperienceSummary) []models.ExperienceEntry {
	if experience == nil {
		rows := make([]models.ExperienceEntry, len(result.Experience))
		for i, e := range result.Experience {
			if e.Validated == "" {
				e.Validated = "NO"
			}
			rows[i] = e
		}
		return rows
	}

	rows := make([]models.ExperienceEntry, len(experience.Entries))
	for i, e := range experience.Entries {
		row := e.ExperienceEntry
		row.Validated = "NO"
		if e.Valid {
			row.Validated = "SI"
		}
		rows[i] = row
	}
	return rows
}

// sheetWriter logs and skips cells that cannot be written.
type sheetWriter struct {
	f     *excelize.File
	sheet string
}

func (w *sheetWriter) set(cell string, value any) bool {
	if err := w.f.SetCellValue(w.sheet, cell, value); err != nil {
		log.WithError(err).WithFields(log.Fields{"sheet": w.sheet, "cell": cell}).Warn("Skipping template cell")
		return false
	}
	return true
}

func (w *sheetWriter) appendToLabel(cell, value string) {
	if value == "" {
		return
	}
	label, err := w.f.GetCellValue(w.sheet, cell)
	if err != nil || strings.TrimSpace(label) == "" {
		return
	}
	w.set(cell, label+" "+value)
}

func (w *sheetWriter) setWrapped(cell, value string) {
	if !w.set(cell, value) {
		return
	}

	style := &excelize.Style{}
	if id, err := w.f.GetCellStyle(w.sheet, cell); err == nil && id != 0 {
		if existing, err := w.f.GetStyle(id); err == nil && existing != nil {
			style = existing
		}
	}
	if style.Alignment == nil {
		style.Alignment = &excelize.Alignment{}
	}
	style.Alignment.WrapText = true
	style.Alignment.Vertical = "top"

	id, err := w.f.NewStyle(style)
	if err != nil {
		log.WithError(err).WithField("cell", cell).Warn("Failed to create wrap style")
		return
	}
	if err := w.f.SetCellStyle(w.sheet, cell, cell, id); err != nil {
		log.WithError(err).WithField("cell", cell).Warn("Failed to apply wrap style")
	}
}

// DefaultTemplate builds a workbook with the idoneidad layout: labels in D6
// and D7, text blocks in D10 and D13, and the experience table from row 21.
func DefaultTemplate() *excelize.File {
	f := excelize.NewFile()
	sheet := defaultTemplateName
	_ = f.SetSheetName("Sheet1", sheet)

	header, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"39A900"}},
	})
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	cells := map[string]string{
		"B2":  "FORMATO DE VERIFICACIÓN DE IDONEIDAD",
		"D6":  "NOMBRE:",
		"D7":  "CÉDULA:",
		"B10": "IDONEIDAD",
		"B13": "FORMACIÓN",
		"D20": "EMPRESA",
		"E20": "FECHA INICIO",
		"F20": "FECHA FIN",
		"I20": "VALIDADA",
	}
	for cell, value := range cells {
		_ = f.SetCellStr(sheet, cell, value)
	}

	_ = f.SetCellStyle(sheet, "B2", "B2", bold)
	_ = f.SetCellStyle(sheet, "B10", "B13", bold)
	_ = f.SetCellStyle(sheet, "D20", "I20", header)
	_ = f.SetColWidth(sheet, "D", "D", 60)
	_ = f.SetColWidth(sheet, "E", "F", 14)
	_ = f.SetColWidth(sheet, "I", "I", 12)

	return f
}

// ExportFilename returns the download name for a candidate's workbook.
func ExportFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "CANDIDATO"
	}
	return fmt.Sprintf("IDONEIDAD_%s.xlsx", strings.ReplaceAll(name, " ", "_"))
}

// WorkbookBytes serializes a workbook, closing it afterwards.
func WorkbookBytes(f *excelize.File) ([]byte, error) {
	defer f.Close()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "failed to write workbook")
	}
	return buf.Bytes(), nil
}
